package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus is the processing status of a queued task. It shares its
// vocabulary with RecordStatus but is persisted independently.
type TaskStatus int

const (
	TaskTodo TaskStatus = iota
	TaskInProgress
	TaskDone
	TaskError
	TaskCancelled
)

func (s TaskStatus) String() string {
	switch s {
	case TaskTodo:
		return "TODO"
	case TaskInProgress:
		return "IN_PROGRESS"
	case TaskDone:
		return "DONE"
	case TaskError:
		return "ERROR"
	case TaskCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ParseTaskStatus maps the persisted string form back to a status.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch s {
	case "TODO":
		return TaskTodo, nil
	case "IN_PROGRESS":
		return TaskInProgress, nil
	case "DONE":
		return TaskDone, nil
	case "ERROR":
		return TaskError, nil
	case "CANCELLED":
		return TaskCancelled, nil
	default:
		return TaskTodo, fmt.Errorf("unknown task status %q", s)
	}
}

// TaskKind identifies which handler a task is dispatched to.
type TaskKind int

const (
	TaskKindUnknown TaskKind = iota
	TaskKindRecallMail
	TaskKindCalendarRequest
)

func (k TaskKind) String() string {
	switch k {
	case TaskKindRecallMail:
		return "RECALL_MAIL"
	case TaskKindCalendarRequest:
		return "CALENDAR_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// ParseTaskKind maps the persisted string form back to a kind.
func ParseTaskKind(s string) (TaskKind, error) {
	switch s {
	case "RECALL_MAIL":
		return TaskKindRecallMail, nil
	case "CALENDAR_REQUEST":
		return TaskKindCalendarRequest, nil
	default:
		return TaskKindUnknown, fmt.Errorf("unknown task kind %q", s)
	}
}

// ActionType classifies the triggering event an action was created from.
type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionRecallMail
	ActionCalendarRequest
)

func (t ActionType) String() string {
	switch t {
	case ActionRecallMail:
		return "RECALL_MAIL"
	case ActionCalendarRequest:
		return "CALENDAR_REQUEST"
	default:
		return "UNKNOWN"
	}
}

// ParseActionType maps the persisted string form back to an action type.
func ParseActionType(s string) (ActionType, error) {
	switch s {
	case "RECALL_MAIL":
		return ActionRecallMail, nil
	case "CALENDAR_REQUEST":
		return ActionCalendarRequest, nil
	default:
		return ActionUnknown, fmt.Errorf("unknown action type %q", s)
	}
}

// Task is one unit of queued background work. The payload is kind-specific
// and stored opaquely; use the typed accessors to decode it.
type Task struct {
	ID       string          `json:"id"`
	ActionID string          `json:"action_id"`
	Kind     TaskKind        `json:"kind"`
	Status   TaskStatus      `json:"status"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// RecallPayload is the payload of a TaskKindRecallMail task: recall one
// message from one recipient's mailbox on behalf of the requester.
type RecallPayload struct {
	RequesterAddress string `json:"requester_address"`
	RecipientAddress string `json:"recipient_address"`
	MessageID        string `json:"message_id"`
	Comment          string `json:"comment,omitempty"`
}

// CalendarPayload is the payload of a TaskKindCalendarRequest task.
type CalendarPayload struct {
	RequesterAddress string `json:"requester_address"`
	Body             string `json:"body"`
}

// RecallPayload decodes the task payload as a recall-mail payload.
func (t Task) RecallPayload() (RecallPayload, error) {
	var p RecallPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return RecallPayload{}, fmt.Errorf("failed to decode recall payload: %w", err)
	}
	return p, nil
}

// CalendarPayload decodes the task payload as a calendar-request payload.
func (t Task) CalendarPayload() (CalendarPayload, error) {
	var p CalendarPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return CalendarPayload{}, fmt.Errorf("failed to decode calendar payload: %w", err)
	}
	return p, nil
}

// Action groups the tasks created from a single triggering event.
// Tasks are unique within one action and never shared across actions.
type Action struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      ActionType `json:"type"`
	Approved  bool       `json:"approved"`
	CreatedAt time.Time  `json:"created_at"`
	Tasks     []Task     `json:"tasks,omitempty"`
}

// AddTask appends a task to the action, ignoring duplicates by id.
func (a *Action) AddTask(t Task) {
	for _, existing := range a.Tasks {
		if existing.ID == t.ID {
			return
		}
	}
	a.Tasks = append(a.Tasks, t)
}

// RemoveTask removes a task by id. Removing an absent task is a no-op.
func (a *Action) RemoveTask(id string) {
	for i, existing := range a.Tasks {
		if existing.ID == id {
			a.Tasks = append(a.Tasks[:i], a.Tasks[i+1:]...)
			return
		}
	}
}

// WorkerStatus is the lifecycle state of a queue worker.
type WorkerStatus int

const (
	WorkerNotStarted WorkerStatus = iota
	WorkerRunning
	WorkerPaused
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerRunning:
		return "RUNNING"
	case WorkerPaused:
		return "PAUSED"
	default:
		return "NOT_STARTED"
	}
}
