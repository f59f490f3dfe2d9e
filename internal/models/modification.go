package models

import (
	"fmt"
	"time"
)

// ModificationKind classifies a pending directory-to-mail-server change.
type ModificationKind int

const (
	ModificationUnknown ModificationKind = iota
	ModificationCreate
	ModificationModify
	ModificationDelete
)

func (k ModificationKind) String() string {
	switch k {
	case ModificationCreate:
		return "CREATE"
	case ModificationModify:
		return "MODIFY"
	case ModificationDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseModificationKind maps the persisted string form back to a kind.
// Unrecognized strings yield ModificationUnknown and an error; the
// synchronizer treats such records as fatally misconfigured.
func ParseModificationKind(s string) (ModificationKind, error) {
	switch s {
	case "CREATE":
		return ModificationCreate, nil
	case "MODIFY":
		return ModificationModify, nil
	case "DELETE":
		return ModificationDelete, nil
	default:
		return ModificationUnknown, fmt.Errorf("unknown modification kind %q", s)
	}
}

// RecordStatus is the processing status of a modification record.
type RecordStatus int

const (
	RecordTodo RecordStatus = iota
	RecordInProgress
	RecordDone
	RecordError
	RecordCancelled
)

func (s RecordStatus) String() string {
	switch s {
	case RecordTodo:
		return "TODO"
	case RecordInProgress:
		return "IN_PROGRESS"
	case RecordDone:
		return "DONE"
	case RecordError:
		return "ERROR"
	case RecordCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ParseRecordStatus maps the persisted string form back to a status.
func ParseRecordStatus(s string) (RecordStatus, error) {
	switch s {
	case "TODO":
		return RecordTodo, nil
	case "IN_PROGRESS":
		return RecordInProgress, nil
	case "DONE":
		return RecordDone, nil
	case "ERROR":
		return RecordError, nil
	case "CANCELLED":
		return RecordCancelled, nil
	default:
		return RecordTodo, fmt.Errorf("unknown record status %q", s)
	}
}

// ModificationRecord is one pending change for one principal. Records are
// inserted by directory change detection, claimed by the account
// synchronizer, and left in a terminal status afterwards.
// Address is the principal's canonical mail address as known at insertion
// time; DELETE records rely on it because the directory entry may already
// be gone when the record is processed.
type ModificationRecord struct {
	ID          int64            `json:"id"`
	PrincipalID string           `json:"principal_id"`
	UnitID      string           `json:"unit_id"`
	Address     string           `json:"address"`
	Kind        ModificationKind `json:"kind"`
	Status      RecordStatus     `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
