package queue

import (
	"context"
	"fmt"

	"github.com/scolarite/mailsync/internal/models"
	"github.com/scolarite/mailsync/internal/protocol"
)

// RecallSender is the slice of the protocol client the recall handler uses.
type RecallSender interface {
	Delegate(account string) protocol.Session
	RecallMessage(ctx context.Context, sess protocol.Session, messageID, comment string) error
}

// RecallHandler processes recall-mail tasks: each task recalls one message
// from one recipient's mailbox, acting as that recipient through a
// delegated session.
type RecallHandler struct {
	remote RecallSender
}

// NewRecallHandler creates the handler for recall-mail tasks.
func NewRecallHandler(remote RecallSender) *RecallHandler {
	return &RecallHandler{remote: remote}
}

func (h *RecallHandler) Kind() models.TaskKind {
	return models.TaskKindRecallMail
}

func (h *RecallHandler) Handle(ctx context.Context, task models.Task) error {
	payload, err := task.RecallPayload()
	if err != nil {
		return err
	}
	if payload.RecipientAddress == "" || payload.MessageID == "" {
		return fmt.Errorf("recall task %s is missing recipient or message id", task.ID)
	}

	sess := h.remote.Delegate(payload.RecipientAddress)
	if err := h.remote.RecallMessage(ctx, sess, payload.MessageID, payload.Comment); err != nil {
		return fmt.Errorf("failed to recall message %s from %s: %w", payload.MessageID, payload.RecipientAddress, err)
	}
	return nil
}
