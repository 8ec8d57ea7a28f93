package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/metrics"
	"loan-assistant/internal/common/observability"
	"loan-assistant/internal/events"
	"loan-assistant/internal/models"
	"loan-assistant/internal/notify"
	"loan-assistant/internal/session"
	"loan-assistant/internal/underwriting"

	"go.opentelemetry.io/otel/attribute"
)

// Notifier is told about every issued sanction letter.
type Notifier interface {
	SanctionIssued(ctx context.Context, s notify.Sanction) error
}

// TurnResult is what a chat turn returns to the host.
type TurnResult struct {
	Reply          string           `json:"response"`
	Stage          models.Stage     `json:"next_stage"`
	Customer       *models.Customer `json:"user_data,omitempty"`
	SanctionLetter string           `json:"sanction_letter,omitempty"`
	Decision       models.Decision  `json:"decision,omitempty"`
}

// UploadResult is what a document submission returns. Processed is false
// when the session was not waiting for a document.
type UploadResult struct {
	Processed      bool            `json:"processed"`
	Decision       models.Decision `json:"decision,omitempty"`
	Reply          string          `json:"bot_reply"`
	SanctionLetter string          `json:"sanction_letter,omitempty"`
	Stage          models.Stage    `json:"stage"`
}

// Service serializes turns per thread, persists the outcome and fans out
// decisions once they are stored.
type Service struct {
	machine  *Machine
	store    session.Store
	locker   session.Locker
	events   events.Publisher
	notifier Notifier
	obs      *observability.Observability
	now      func() time.Time
	logger   logger.Logger
}

type Option func(*Service)

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(machine *Machine, store session.Store, locker session.Locker, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		machine: machine,
		store:   store,
		locker:  locker,
		events:  events.Nop{},
		now:     time.Now,
		logger:  logger.ForComponent(log, "conversation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessTurn applies one inbound message. On error the stored session is
// left exactly as it was.
func (s *Service) ProcessTurn(ctx context.Context, threadID, text string) (*TurnResult, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, apperrors.NewInvalidRequestError("thread_id is required")
	}

	ctx, span := s.obs.StartSpan(ctx, "conversation.ProcessTurn", attribute.String("thread.id", threadID))
	defer span.End()

	start := s.now()
	unlock, err := s.locker.Lock(ctx, threadID)
	if err != nil {
		stdErr := apperrors.NewSessionBusyError(threadID, err)
		observability.FailSpan(span, stdErr)
		return nil, stdErr
	}
	defer unlock()

	current, err := s.load(ctx, threadID, start)
	if err != nil {
		return nil, err
	}
	before := current.Stage

	working := current.Clone()
	out, err := s.machine.Step(ctx, working, text, s.now())
	if err != nil {
		s.recordTurn(ctx, before, "failed", start)
		stdErr := apperrors.AsStandard(err)
		s.logger.Error("turn failed", map[string]interface{}{
			"threadId":  threadID,
			"stage":     before.String(),
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		observability.FailSpan(span, stdErr)
		return nil, stdErr
	}

	if err := s.store.Put(ctx, working); err != nil {
		s.recordTurn(ctx, before, "failed", start)
		stdErr := apperrors.NewSessionStoreError(err)
		observability.FailSpan(span, stdErr)
		return nil, stdErr
	}
	s.recordTurn(ctx, before, "ok", start)
	span.SetAttributes(
		attribute.String("stage.from", before.String()),
		attribute.String("stage.to", working.Stage.String()),
	)

	s.logger.Info("turn processed", map[string]interface{}{
		"threadId": threadID,
		"from":     before.String(),
		"to":       working.Stage.String(),
	})
	s.afterDecision(ctx, working, out)

	return &TurnResult{
		Reply:          out.Reply,
		Stage:          working.Stage,
		Customer:       working.Customer.Clone(),
		SanctionLetter: working.SanctionLetter,
		Decision:       working.Decision,
	}, nil
}

// ResolveUpload reviews a salary slip for a session waiting in UPLOAD.
func (s *Service) ResolveUpload(ctx context.Context, threadID string, doc Document) (*UploadResult, error) {
	ctx, span := s.obs.StartSpan(ctx, "conversation.ResolveUpload", attribute.String("thread.id", threadID))
	defer span.End()

	start := s.now()
	unlock, err := s.locker.Lock(ctx, threadID)
	if err != nil {
		return nil, apperrors.NewSessionBusyError(threadID, err)
	}
	defer unlock()

	current, err := s.store.Get(ctx, threadID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, apperrors.NewSessionNotFoundError(threadID)
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreError(err)
	}

	if current.Stage != models.StageUpload {
		return &UploadResult{Reply: replyNotExpectingFiles, Stage: current.Stage}, nil
	}

	working := current.Clone()
	out, err := s.machine.ResolveUpload(ctx, working, doc, s.now())
	if err != nil {
		s.recordTurn(ctx, models.StageUpload, "failed", start)
		stdErr := apperrors.AsStandard(err)
		observability.FailSpan(span, stdErr)
		return nil, stdErr
	}
	if err := s.store.Put(ctx, working); err != nil {
		s.recordTurn(ctx, models.StageUpload, "failed", start)
		return nil, apperrors.NewSessionStoreError(err)
	}
	s.recordTurn(ctx, models.StageUpload, "ok", start)

	s.logger.Info("salary slip reviewed", map[string]interface{}{
		"threadId": threadID,
		"decision": string(working.Decision),
		"document": doc.Name,
	})
	s.afterDecision(ctx, working, out)

	return &UploadResult{
		Processed:      true,
		Decision:       working.Decision,
		Reply:          out.Reply,
		SanctionLetter: working.SanctionLetter,
		Stage:          working.Stage,
	}, nil
}

// ResetSession forgets a thread. Unknown threads are not an error.
func (s *Service) ResetSession(ctx context.Context, threadID string) error {
	unlock, err := s.locker.Lock(ctx, threadID)
	if err != nil {
		return apperrors.NewSessionBusyError(threadID, err)
	}
	defer unlock()

	if err := s.store.Delete(ctx, threadID); err != nil {
		return apperrors.NewSessionStoreError(err)
	}
	metrics.SessionsReset.Inc()
	s.logger.Info("session reset", map[string]interface{}{"threadId": threadID})
	return nil
}

// Session returns a copy of the stored state.
func (s *Service) Session(ctx context.Context, threadID string) (*models.Session, error) {
	sess, err := s.store.Get(ctx, threadID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, apperrors.NewSessionNotFoundError(threadID)
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreError(err)
	}
	return sess, nil
}

func (s *Service) load(ctx context.Context, threadID string, now time.Time) (*models.Session, error) {
	sess, err := s.store.Get(ctx, threadID)
	if errors.Is(err, models.ErrSessionNotFound) {
		return models.NewSession(threadID, now), nil
	}
	if err != nil {
		return nil, apperrors.NewSessionStoreError(err)
	}
	return sess, nil
}

func (s *Service) recordTurn(ctx context.Context, stage models.Stage, outcome string, start time.Time) {
	elapsed := s.now().Sub(start)
	metrics.TurnsTotal.WithLabelValues(stage.String(), outcome).Inc()
	metrics.TurnDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
	s.obs.RecordTurn(ctx, stage.String(), outcome, elapsed)
}

// afterDecision publishes the verdict and notifies the customer. Both are
// best effort; the turn has already been stored.
func (s *Service) afterDecision(ctx context.Context, sess *models.Session, out Outcome) {
	if out.Verdict == nil {
		return
	}
	metrics.DecisionsTotal.WithLabelValues(string(out.Verdict.Status)).Inc()

	evt := events.NewDecisionEvent(sess.ThreadID, out.Verdict.Status, s.now())
	evt.Reason = out.Verdict.Reason
	evt.Amount = sess.LoanAmount
	evt.TenureMonths = sess.TenureMonths
	evt.EMI = out.Verdict.EMI
	evt.SanctionLetter = out.Letter
	if sess.Customer != nil {
		evt.Phone = sess.Customer.Phone
	}

	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("decision event not delivered", map[string]interface{}{
			"threadId": sess.ThreadID,
			"eventId":  evt.EventID,
			"error":    err.Error(),
		})
	}

	if out.Letter == "" {
		return
	}
	metrics.SanctionLettersTotal.Inc()

	if s.notifier == nil || sess.Customer == nil {
		return
	}
	err := s.notifier.SanctionIssued(ctx, notify.Sanction{
		Name:         sess.Customer.Name,
		Phone:        sess.Customer.Phone,
		Email:        sess.Customer.Email,
		Amount:       sess.LoanAmount,
		TenureMonths: sess.TenureMonths,
		EMI:          underwriting.MonthlyEMI(sess.LoanAmount, underwriting.StandardRate, sess.TenureMonths),
		Letter:       out.Letter,
	})
	if err != nil {
		s.logger.Warn("sanction notice not delivered", map[string]interface{}{
			"threadId": sess.ThreadID,
			"error":    err.Error(),
		})
	}
}
