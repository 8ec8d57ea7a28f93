// Package conversation drives a loan application chat through its stages.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "loan-assistant/internal/common/errors"
	"loan-assistant/internal/models"
	"loan-assistant/internal/sales"
	"loan-assistant/internal/sanction"
	"loan-assistant/internal/underwriting"
	"loan-assistant/pkg/customerfile"

	"github.com/shopspring/decimal"
)

// Replies sent by the machine.
const (
	replyPhonePrompt       = "Let's get started. Please type your 10-digit registered phone number."
	replyHandoff           = "Great! Let's get started. Please type your 10-digit phone number."
	replyNotFound          = "Number not found. Try 9999999901."
	replyBadPhone          = "Please enter a valid 10-digit phone number."
	replyBadAmount         = "Please enter a valid numeric amount (e.g. 500000)."
	replyAwaitingUpload    = "I still need your Salary Slip to confirm the EMI. Please upload it to continue."
	replyClosed            = "Your application is complete. Reset the chat to start a new application."
	replyUploadApproved    = "Received your Salary Slip. Everything looks good! Your loan is APPROVED. ✅"
	replyUploadRejected    = "I reviewed your slip. Unfortunately, your EMI burden is too high."
	replyNotExpectingFiles = "I am not expecting a file right now. Let's chat first."
)

// SalesAgent produces the free-form pitch of the sales stage.
type SalesAgent interface {
	Reply(ctx context.Context, history []models.Message) (string, error)
}

// Directory resolves a phone number to a customer record.
type Directory interface {
	Lookup(ctx context.Context, phone string) (*models.Customer, error)
}

// LetterRenderer persists a sanction letter and returns its handle.
type LetterRenderer interface {
	Render(ctx context.Context, l sanction.Letter) (string, error)
}

// Outcome is what a single step produced besides the session mutations.
type Outcome struct {
	Reply   string
	Verdict *underwriting.Verdict
	Letter  string
}

type phase int

const (
	phaseSales phase = iota
	phaseVerification
	phaseAmount
	phaseTenure
	phaseUpload
	phaseEnd
)

func (p phase) String() string {
	return [...]string{"sales", "verification", "amount", "tenure", "upload", "end"}[p]
}

type inputClass int

const (
	inputFreeText inputClass = iota
	inputPhone
	inputAmount
	inputTenure
)

// turn is the working state of one step.
type turn struct {
	session *models.Session
	text    string
	amount  decimal.Decimal
	tenure  int
	out     Outcome
}

type action func(m *Machine, ctx context.Context, t *turn) error

// transitions maps phase x input class to an action. Every phase has a
// free-text entry, which is used for any class the phase does not list.
var transitions = map[phase]map[inputClass]action{
	phaseSales: {
		inputPhone:    (*Machine).shortcutToVerification,
		inputFreeText: (*Machine).pitch,
	},
	phaseVerification: {
		inputPhone:    (*Machine).verifyPhone,
		inputFreeText: (*Machine).rejectPhone,
	},
	phaseAmount: {
		inputAmount:   (*Machine).lockAmount,
		inputFreeText: (*Machine).rejectAmount,
	},
	phaseTenure: {
		inputTenure:   (*Machine).decide,
		inputFreeText: (*Machine).repromptTenure,
	},
	phaseUpload: {
		inputFreeText: (*Machine).awaitUpload,
	},
	phaseEnd: {
		inputFreeText: (*Machine).closed,
	},
}

// Machine applies chat input to a session. It mutates the session it is
// given, so callers that need all-or-nothing turns pass a copy.
type Machine struct {
	sales         SalesAgent
	directory     Directory
	renderer      LetterRenderer
	defaultSalary decimal.Decimal
}

func NewMachine(agent SalesAgent, dir Directory, renderer LetterRenderer, defaultSalary decimal.Decimal) *Machine {
	return &Machine{
		sales:         agent,
		directory:     dir,
		renderer:      renderer,
		defaultSalary: defaultSalary,
	}
}

func phaseOf(s *models.Session) phase {
	if s.Stage.Terminal() {
		return phaseEnd
	}
	switch s.Stage {
	case models.StageVerification:
		return phaseVerification
	case models.StageUnderwriting:
		if s.AmountLocked() {
			return phaseTenure
		}
		return phaseAmount
	case models.StageUpload:
		return phaseUpload
	default:
		return phaseSales
	}
}

func classify(p phase, t *turn) inputClass {
	text := strings.TrimSpace(t.text)

	switch p {
	case phaseAmount:
		if amount, ok := ParseAmount(text); ok {
			t.amount = amount
			return inputAmount
		}
	case phaseTenure:
		if months, ok := underwriting.BuildOfferTable(t.session.LoanAmount).Accepts(text); ok {
			t.tenure = months
			return inputTenure
		}
	default:
		if customerfile.IsPhoneNumber(text) {
			return inputPhone
		}
	}
	return inputFreeText
}

func dispatch(p phase, c inputClass) action {
	if a, ok := transitions[p][c]; ok {
		return a
	}
	return transitions[p][inputFreeText]
}

// Step records the inbound text, runs the matching action and records the
// reply. Malformed input never fails a step; errors come from collaborators.
func (m *Machine) Step(ctx context.Context, s *models.Session, text string, now time.Time) (Outcome, error) {
	s.Append(models.SpeakerUser, text, now)

	t := &turn{session: s, text: text}
	p := phaseOf(s)
	if err := dispatch(p, classify(p, t))(m, ctx, t); err != nil {
		return Outcome{}, err
	}

	s.Append(models.SpeakerAssistant, t.out.Reply, now)
	s.UpdatedAt = now
	return t.out, nil
}

func (m *Machine) shortcutToVerification(_ context.Context, t *turn) error {
	t.session.Stage = models.StageVerification
	t.out.Reply = replyPhonePrompt
	return nil
}

func (m *Machine) pitch(ctx context.Context, t *turn) error {
	text, err := m.sales.Reply(ctx, t.session.Messages)
	if err != nil {
		if errors.Is(err, sales.ErrSalesTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return apperrors.NewSalesAgentTimeoutError(err)
		}
		return apperrors.NewSalesAgentError(err)
	}

	if strings.Contains(text, sales.HandoffToken) {
		t.session.Stage = models.StageVerification
		t.out.Reply = replyHandoff
		return nil
	}
	t.out.Reply = text
	return nil
}

func (m *Machine) verifyPhone(ctx context.Context, t *turn) error {
	c, err := m.directory.Lookup(ctx, strings.TrimSpace(t.text))
	if errors.Is(err, models.ErrCustomerNotFound) {
		t.out.Reply = replyNotFound
		return nil
	}
	if err != nil {
		return apperrors.NewDirectoryError(err)
	}

	t.session.Customer = c.Clone()
	t.session.Stage = models.StageUnderwriting
	t.out.Reply = fmt.Sprintf("Thanks %s. You are eligible! How much loan do you need?", c.Name)
	return nil
}

func (m *Machine) rejectPhone(_ context.Context, t *turn) error {
	t.out.Reply = replyBadPhone
	return nil
}

func (m *Machine) lockAmount(_ context.Context, t *turn) error {
	t.session.LoanAmount = t.amount
	t.out.Reply = underwriting.BuildOfferTable(t.amount).Markdown()
	return nil
}

func (m *Machine) rejectAmount(_ context.Context, t *turn) error {
	t.out.Reply = replyBadAmount
	return nil
}

func (m *Machine) repromptTenure(_ context.Context, t *turn) error {
	table := underwriting.BuildOfferTable(t.session.LoanAmount)
	t.out.Reply = fmt.Sprintf("Please select a tenure: Type %s.", table.Choices())
	return nil
}

func (m *Machine) decide(ctx context.Context, t *turn) error {
	s := t.session
	if s.Customer == nil {
		return apperrors.NewInternalError(errors.New("tenure chosen without a verified customer"))
	}

	verdict := underwriting.CheckEligibility(s.LoanAmount, s.Customer.PreApprovedLimit, s.Customer.CreditScore)
	s.TenureMonths = t.tenure
	s.Decision = verdict.Status

	switch verdict.Status {
	case models.DecisionApprovedInstant:
		offer, ok := underwriting.BuildOfferTable(s.LoanAmount).Find(t.tenure)
		if !ok {
			return apperrors.NewInternalError(fmt.Errorf("tenure %d not offered for %s", t.tenure, s.LoanAmount))
		}
		verdict.EMI = offer.EMI
		if err := m.issueLetter(ctx, t, verdict.EMI); err != nil {
			return err
		}
		s.Stage = models.StageEnd
		t.out.Reply = fmt.Sprintf("Excellent choice! Your %d-month plan is **INSTANTLY APPROVED**. 🟢\n\n"+
			"I have generated your Sanction Letter. Please download it below.", t.tenure)

	case models.DecisionRequiresSalarySlip:
		s.Stage = models.StageUpload
		t.out.Reply = fmt.Sprintf("Great choice. Since ₹%s is a high amount, I just need your Salary Slip to confirm the EMI. Please upload it.",
			underwriting.FormatAmount(s.LoanAmount.Round(0)))

	default:
		s.Stage = models.StageEnd
		t.out.Reply = "I'm sorry. We cannot approve this amount. Reason: " + verdict.Reason
	}

	t.out.Verdict = &verdict
	return nil
}

func (m *Machine) awaitUpload(_ context.Context, t *turn) error {
	t.out.Reply = replyAwaitingUpload
	return nil
}

func (m *Machine) closed(_ context.Context, t *turn) error {
	t.out.Reply = replyClosed
	return nil
}

func (m *Machine) issueLetter(ctx context.Context, t *turn, emi decimal.Decimal) error {
	s := t.session
	name, err := m.renderer.Render(ctx, sanction.Letter{
		Name:         s.Customer.Name,
		Phone:        s.Customer.Phone,
		Amount:       s.LoanAmount,
		TenureMonths: s.TenureMonths,
		EMI:          emi,
	})
	if err != nil {
		return apperrors.NewSanctionRenderError(err)
	}
	s.SanctionLetter = name
	t.out.Letter = name
	return nil
}

// Document is an uploaded salary slip.
type Document struct {
	Name    string
	Content []byte
}

// ResolveUpload runs the salary slip check for a session waiting in UPLOAD
// and closes it. The caller has already checked the stage.
func (m *Machine) ResolveUpload(ctx context.Context, s *models.Session, doc Document, now time.Time) (Outcome, error) {
	if len(doc.Content) == 0 {
		return Outcome{}, apperrors.NewInvalidDocumentError("uploaded file is empty")
	}
	if s.Customer == nil {
		return Outcome{}, apperrors.NewInternalError(errors.New("upload for a session without a verified customer"))
	}

	s.Append(models.SpeakerUser, "User uploaded: "+doc.Name, now)

	salary := s.Customer.Salary
	if !salary.IsPositive() {
		salary = m.defaultSalary
	}
	verdict := underwriting.VerifySalarySlipDefault(s.LoanAmount, salary)
	s.Decision = verdict.Status

	t := &turn{session: s}
	if verdict.Status == models.DecisionApprovedWithDocs {
		if s.TenureMonths == 0 {
			s.TenureMonths = underwriting.SalarySlipTenureYears * 12
		}
		letterEMI := underwriting.MonthlyEMI(s.LoanAmount, underwriting.StandardRate, s.TenureMonths)
		if err := m.issueLetter(ctx, t, letterEMI); err != nil {
			return Outcome{}, err
		}
		t.out.Reply = replyUploadApproved
	} else {
		t.out.Reply = replyUploadRejected
	}

	s.Stage = models.StageEnd
	t.out.Verdict = &verdict
	s.Append(models.SpeakerAssistant, t.out.Reply, now)
	s.UpdatedAt = now
	return t.out, nil
}

// ParseAmount reads a loan amount such as "500000", "5,00,000" or "500k".
// The amount must be positive and no larger than underwriting.MaxLoanAmount.
func ParseAmount(text string) (decimal.Decimal, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	multiplier := decimal.NewFromInt(1)
	if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
		multiplier = decimal.NewFromInt(1000)
	}
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	d = d.Mul(multiplier).Round(2)
	if !d.IsPositive() || d.GreaterThan(underwriting.MaxLoanAmount) {
		return decimal.Zero, false
	}
	return d, true
}
