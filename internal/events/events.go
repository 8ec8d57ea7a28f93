// Package events publishes underwriting decisions to audit sinks.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"loan-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DecisionEvent records a verdict reached on a session.
type DecisionEvent struct {
	EventID        string          `json:"event_id"`
	ThreadID       string          `json:"thread_id"`
	Phone          string          `json:"phone,omitempty"`
	Status         models.Decision `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	TenureMonths   int             `json:"tenure_months,omitempty"`
	EMI            decimal.Decimal `json:"emi"`
	SanctionLetter string          `json:"sanction_letter,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NewDecisionEvent stamps an event id on a decision.
func NewDecisionEvent(threadID string, status models.Decision, at time.Time) DecisionEvent {
	return DecisionEvent{
		EventID:    uuid.NewString(),
		ThreadID:   threadID,
		Status:     status,
		Amount:     decimal.Zero,
		EMI:        decimal.Zero,
		OccurredAt: at,
	}
}

// Publisher delivers decision events.
type Publisher interface {
	Publish(ctx context.Context, evt DecisionEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, DecisionEvent) error { return nil }

// Multi fans an event out to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt DecisionEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []DecisionEvent
}

func (r *Recorder) Publish(_ context.Context, evt DecisionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []DecisionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DecisionEvent(nil), r.events...)
}
