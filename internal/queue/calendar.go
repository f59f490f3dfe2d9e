package queue

import (
	"context"
	"fmt"

	"github.com/scolarite/mailsync/internal/models"
	"github.com/scolarite/mailsync/internal/protocol"
)

// CalendarSender is the slice of the protocol client the calendar handler
// uses.
type CalendarSender interface {
	Delegate(account string) protocol.Session
	SendCalendarRequest(ctx context.Context, sess protocol.Session, content string) error
}

// CalendarHandler processes calendar-request tasks as the requesting user.
type CalendarHandler struct {
	remote CalendarSender
}

// NewCalendarHandler creates the handler for calendar-request tasks.
func NewCalendarHandler(remote CalendarSender) *CalendarHandler {
	return &CalendarHandler{remote: remote}
}

func (h *CalendarHandler) Kind() models.TaskKind {
	return models.TaskKindCalendarRequest
}

func (h *CalendarHandler) Handle(ctx context.Context, task models.Task) error {
	payload, err := task.CalendarPayload()
	if err != nil {
		return err
	}
	if payload.RequesterAddress == "" {
		return fmt.Errorf("calendar task %s is missing the requester address", task.ID)
	}

	sess := h.remote.Delegate(payload.RequesterAddress)
	if err := h.remote.SendCalendarRequest(ctx, sess, payload.Body); err != nil {
		return fmt.Errorf("failed to send calendar request for %s: %w", payload.RequesterAddress, err)
	}
	return nil
}
