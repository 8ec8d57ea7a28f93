package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSessionNotFound is returned by session stores for unknown thread ids.
var ErrSessionNotFound = errors.New("session not found")

// Speaker tags who produced a transcript message.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerSystem    Speaker = "system"
)

// Message is one entry of the conversation transcript.
type Message struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Session is the per-thread conversation state.
type Session struct {
	ThreadID       string          `json:"thread_id"`
	Stage          Stage           `json:"stage"`
	Messages       []Message       `json:"messages"`
	Customer       *Customer       `json:"customer,omitempty"`
	LoanAmount     decimal.Decimal `json:"loan_amount"`
	TenureMonths   int             `json:"tenure_months,omitempty"`
	Decision       Decision        `json:"decision,omitempty"`
	SanctionLetter string          `json:"sanction_letter,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewSession starts a thread in the sales stage.
func NewSession(threadID string, now time.Time) *Session {
	return &Session{
		ThreadID:   threadID,
		Stage:      StageSales,
		LoanAmount: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AmountLocked reports whether the customer has committed to a loan amount.
func (s *Session) AmountLocked() bool {
	return s.LoanAmount.IsPositive()
}

// Append adds a message to the transcript.
func (s *Session) Append(speaker Speaker, text string, at time.Time) {
	s.Messages = append(s.Messages, Message{Speaker: speaker, Text: text, At: at})
}

// LastReply returns the newest assistant message, or "" if there is none.
func (s *Session) LastReply() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Speaker == SpeakerAssistant {
			return s.Messages[i].Text
		}
	}
	return ""
}

// Clone deep-copies the session so a turn can be applied without touching stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.Customer = s.Customer.Clone()
	return &cp
}
