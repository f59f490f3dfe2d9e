package models

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactFromPrincipal(t *testing.T) {
	tests := []struct {
		name     string
		principal Principal
		expected Contact
	}{
		{
			name: "derives display name from last and first name",
			principal: Principal{
				LastName:  "Nagy",
				FirstName: "Ilona",
				Email:     "inagy@example.net",
				UnitID:    "unit-1",
				Profile:   ProfileGuardian,
				Classes:   []string{"5A"},
			},
			expected: Contact{
				LastName:    "Nagy",
				FirstName:   "Ilona",
				DisplayName: "Nagy, Ilona",
				Email:       "inagy@example.net",
				UnitID:      "unit-1",
				Profile:     "guardian",
				Classes:     "5A",
			},
		},
		{
			name: "keeps an explicit display name",
			principal: Principal{
				LastName:    "Nagy",
				FirstName:   "Ilona",
				DisplayName: "Dr. Nagy Ilona",
				Profile:     ProfileStaff,
			},
			expected: Contact{
				LastName:    "Nagy",
				FirstName:   "Ilona",
				DisplayName: "Dr. Nagy Ilona",
				Profile:     "staff",
			},
		},
		{
			name: "falls back to last name alone",
			principal: Principal{
				LastName: "Nagy",
				Profile:  ProfileGuest,
			},
			expected: Contact{
				LastName:    "Nagy",
				DisplayName: "Nagy",
				Profile:     "guest",
			},
		},
		{
			name: "falls back to first name alone",
			principal: Principal{
				FirstName: "Ilona",
				Profile:   ProfileGuest,
			},
			expected: Contact{
				FirstName:   "Ilona",
				DisplayName: "Ilona",
				Profile:     "guest",
			},
		},
		{
			name: "joins multiple classes and functions",
			principal: Principal{
				LastName:  "Kiss",
				FirstName: "Pál",
				Profile:   ProfileStudent,
				Classes:   []string{"5A", "5B"},
				Functions: []string{"librarian", "monitor"},
			},
			expected: Contact{
				LastName:    "Kiss",
				FirstName:   "Pál",
				DisplayName: "Kiss, Pál",
				Profile:     "student",
				Classes:     "5A 5B",
				Functions:   "librarian monitor",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContactFromPrincipal(tt.principal))
		})
	}
}

func TestLessContactOrdering(t *testing.T) {
	contacts := []Contact{
		{LastName: "Nagy", FirstName: "Ilona", Email: "b@example.net"},
		{LastName: "Kiss", FirstName: "Pál", Email: "kp@example.net"},
		{LastName: "Nagy", FirstName: "Ilona", Email: "a@example.net"},
		{LastName: "Nagy", FirstName: "Anna", Email: "na@example.net"},
	}

	sort.Slice(contacts, func(i, j int) bool {
		return LessContact(contacts[i], contacts[j])
	})

	assert.Equal(t, "Kiss", contacts[0].LastName)
	assert.Equal(t, "Anna", contacts[1].FirstName)
	assert.Equal(t, "a@example.net", contacts[2].Email)
	assert.Equal(t, "b@example.net", contacts[3].Email)
}

func TestProfileKnown(t *testing.T) {
	assert.True(t, ProfileStaff.Known())
	assert.True(t, ProfileGuardian.Known())
	assert.False(t, Profile("alumni").Known())
	assert.False(t, Profile("").Known())
}
