package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrCustomerNotFound is returned by directories when no record matches a phone number.
var ErrCustomerNotFound = errors.New("customer not found")

// Customer is a pre-approved applicant record. Sessions hold their own copy.
type Customer struct {
	Name             string          `json:"name" db:"name"`
	Phone            string          `json:"phone" db:"phone"`
	PreApprovedLimit decimal.Decimal `json:"pre_approved_limit" db:"pre_approved_limit"`
	CreditScore      int             `json:"credit_score" db:"credit_score"`
	Salary           decimal.Decimal `json:"salary" db:"salary"`
	Email            string          `json:"email,omitempty" db:"email"`
}

// Clone returns an independent copy of the record.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
