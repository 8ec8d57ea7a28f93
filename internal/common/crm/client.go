// Package crm is a REST client for the customer relationship system that
// holds pre-approved applicant records.
package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"loan-assistant/internal/models"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the CRM has no record for the phone number.
var ErrNotFound = errors.New("crm: record not found")

type Client struct {
	client *resty.Client
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	client.SetRetryCount(2)
	client.SetRetryWaitTime(200 * time.Millisecond)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})

	return &Client{client: client}
}

// GetCustomer fetches the record registered for a phone number.
func (c *Client) GetCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	var apiErr apiError

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("phone", phone).
		SetResult(&customer).
		SetError(&apiErr).
		Get("/customers/{phone}")
	if err != nil {
		return nil, fmt.Errorf("crm request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("crm lookup failed (status %d): %s", resp.StatusCode(), apiErr.Message)
	}

	if customer.Phone == "" {
		customer.Phone = phone
	}
	return &customer, nil
}

// UpsertCustomer creates or replaces a record.
func (c *Client) UpsertCustomer(ctx context.Context, customer *models.Customer) error {
	var apiErr apiError

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("phone", customer.Phone).
		SetHeader("Content-Type", "application/json").
		SetBody(customer).
		SetError(&apiErr).
		Put("/customers/{phone}")
	if err != nil {
		return fmt.Errorf("crm request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("crm upsert failed (status %d): %s", resp.StatusCode(), apiErr.Message)
	}
	return nil
}
