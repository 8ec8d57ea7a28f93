// Package directory resolves phone numbers to pre-approved customer records.
package directory

import (
	"context"

	"loan-assistant/internal/models"
)

// Directory looks customers up by their 10-digit phone number. A miss is
// reported as models.ErrCustomerNotFound; any other error is an outage.
type Directory interface {
	Lookup(ctx context.Context, phone string) (*models.Customer, error)
}
