package models

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"

	// StatusUnresolved is reported when the poll budget runs out before the
	// gateway settles. It is never a stored transaction state.
	StatusUnresolved Status = "UNRESOLVED"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// IsTerminal reports whether the gateway has settled the payment.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusInitiated:
		return to == StatusPending
	case StatusPending:
		return to == StatusSuccess || to == StatusFailed
	default:
		return false
	}
}

type Transaction struct {
	ID        string    `json:"transaction_id"`
	Amount    int64     `json:"amount"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func NewTransaction(id string, amount int64) *Transaction {
	return &Transaction{
		ID:        id,
		Amount:    amount,
		Status:    StatusInitiated,
		CreatedAt: time.Now(),
	}
}

func (t *Transaction) Transition(to Status) error {
	if !t.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w from %s to %s for transaction %s", ErrInvalidTransition, t.Status, to, t.ID)
	}
	t.Status = to
	return nil
}
