package directory

import (
	"context"
	"errors"

	"loan-assistant/internal/common/crm"
	"loan-assistant/internal/models"
)

// CRMDirectory looks customers up in the CRM over REST.
type CRMDirectory struct {
	client *crm.Client
}

func NewCRMDirectory(client *crm.Client) *CRMDirectory {
	return &CRMDirectory{client: client}
}

func (d *CRMDirectory) Lookup(ctx context.Context, phone string) (*models.Customer, error) {
	c, err := d.client.GetCustomer(ctx, phone)
	if errors.Is(err, crm.ErrNotFound) {
		return nil, models.ErrCustomerNotFound
	}
	return c, err
}
