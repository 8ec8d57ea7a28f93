package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loan-assistant/internal/models"
	"loan-assistant/internal/sanction"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type stubSales struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	seen  []models.Message
}

func (s *stubSales) Reply(_ context.Context, history []models.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.seen = append([]models.Message(nil), history...)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubSales) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type mapDirectory struct {
	customers map[string]models.Customer
	err       error
}

func (d *mapDirectory) Lookup(_ context.Context, phone string) (*models.Customer, error) {
	if d.err != nil {
		return nil, d.err
	}
	c, ok := d.customers[phone]
	if !ok {
		return nil, models.ErrCustomerNotFound
	}
	return &c, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	letters []sanction.Letter
	err     error
}

func (r *fakeRenderer) Render(_ context.Context, l sanction.Letter) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.letters = append(r.letters, l)
	return fmt.Sprintf("Sanction_Letter_%s_%d.pdf", l.Phone, len(r.letters)), nil
}

func (r *fakeRenderer) Letters() []sanction.Letter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sanction.Letter(nil), r.letters...)
}

func testDirectory() *mapDirectory {
	return &mapDirectory{customers: map[string]models.Customer{
		"9999999901": {
			Name:             "Rahul Sharma",
			Phone:            "9999999901",
			PreApprovedLimit: decimal.NewFromInt(200000),
			CreditScore:      750,
			Salary:           decimal.NewFromInt(100000),
		},
		"9999999902": {
			Name:             "Priya Singh",
			Phone:            "9999999902",
			PreApprovedLimit: decimal.NewFromInt(200000),
			CreditScore:      650,
			Salary:           decimal.NewFromInt(40000),
		},
		"9999999903": {
			Name:             "Amit Verma",
			Phone:            "9999999903",
			PreApprovedLimit: decimal.NewFromInt(200000),
			CreditScore:      720,
			Salary:           decimal.NewFromInt(12000),
		},
		"9999999904": {
			Name:             "Neha Gupta",
			Phone:            "9999999904",
			PreApprovedLimit: decimal.NewFromInt(200000),
			CreditScore:      760,
		},
	}}
}

func verifiedSession(phone string, amount int64) *models.Session {
	s := models.NewSession("thread-1", testNow)
	c := testDirectory().customers[phone]
	s.Customer = &c
	s.Stage = models.StageUnderwriting
	if amount > 0 {
		s.LoanAmount = decimal.NewFromInt(amount)
	}
	return s
}
