package models

import "strings"

// Profile is the role tag a principal carries in the directory.
// The set below is closed for classification purposes, but unknown labels
// coming from the directory are preserved so display names stay intact.
type Profile string

const (
	ProfileStaff    Profile = "staff"
	ProfileTeacher  Profile = "teacher"
	ProfileStudent  Profile = "student"
	ProfileGuardian Profile = "guardian"
	ProfileGuest    Profile = "guest"
)

// Known reports whether the profile is one of the recognized values.
func (p Profile) Known() bool {
	switch p {
	case ProfileStaff, ProfileTeacher, ProfileStudent, ProfileGuardian, ProfileGuest:
		return true
	}
	return false
}

// Principal is a user entry from the authoritative directory.
// It is read-only to every component downstream of the snapshot loader.
type Principal struct {
	ID          string   `json:"id"`
	UnitID      string   `json:"unit_id"`
	Login       string   `json:"login"`
	LastName    string   `json:"last_name"`
	FirstName   string   `json:"first_name"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Profile     Profile  `json:"profile"`
	Classes     []string `json:"classes,omitempty"`
	Functions   []string `json:"functions,omitempty"`
}

// Group is a group entry from the authoritative directory.
type Group struct {
	ID      string  `json:"id"`
	UnitID  string  `json:"unit_id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Profile Profile `json:"profile"`
}

// Contact is the normalized address-book view of a directory entry.
type Contact struct {
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	UnitID      string `json:"unit_id"`
	Profile     string `json:"profile"`
	Classes     string `json:"classes,omitempty"`
	Functions   string `json:"functions,omitempty"`
}

// ContactFromPrincipal derives the address-book contact for a principal.
// The display name is "LastName, FirstName" when both parts are present.
func ContactFromPrincipal(p Principal) Contact {
	display := p.DisplayName
	if display == "" {
		switch {
		case p.LastName != "" && p.FirstName != "":
			display = p.LastName + ", " + p.FirstName
		case p.LastName != "":
			display = p.LastName
		default:
			display = p.FirstName
		}
	}
	return Contact{
		LastName:    p.LastName,
		FirstName:   p.FirstName,
		DisplayName: display,
		Email:       p.Email,
		UnitID:      p.UnitID,
		Profile:     string(p.Profile),
		Classes:     strings.Join(p.Classes, " "),
		Functions:   strings.Join(p.Functions, " "),
	}
}

// LessContact orders contacts by (last name, first name, email), each tie
// broken by the next field.
func LessContact(a, b Contact) bool {
	if a.LastName != b.LastName {
		return a.LastName < b.LastName
	}
	if a.FirstName != b.FirstName {
		return a.FirstName < b.FirstName
	}
	return a.Email < b.Email
}
