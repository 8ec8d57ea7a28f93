// Package customerfile reads the JSON customer list used to seed
// directories and to run without a database.
package customerfile

import (
	"encoding/json"
	"fmt"
	"os"

	"loan-assistant/internal/models"
)

// Load reads a JSON array of customers and validates every record.
func Load(path string) ([]models.Customer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a JSON array of customers.
func Parse(data []byte) ([]models.Customer, error) {
	var customers []models.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}

	seen := make(map[string]bool, len(customers))
	for i, c := range customers {
		if err := Validate(c); err != nil {
			return nil, fmt.Errorf("customer %d: %w", i, err)
		}
		if seen[c.Phone] {
			return nil, fmt.Errorf("customer %d: duplicate phone %s", i, c.Phone)
		}
		seen[c.Phone] = true
	}
	return customers, nil
}

// Validate checks the fields every directory relies on.
func Validate(c models.Customer) error {
	if !IsPhoneNumber(c.Phone) {
		return fmt.Errorf("phone %q is not a 10-digit number", c.Phone)
	}
	if c.Name == "" {
		return fmt.Errorf("name is required for %s", c.Phone)
	}
	if c.PreApprovedLimit.IsNegative() {
		return fmt.Errorf("negative pre-approved limit for %s", c.Phone)
	}
	if c.Salary.IsNegative() {
		return fmt.Errorf("negative salary for %s", c.Phone)
	}
	return nil
}

// IsPhoneNumber reports whether s is exactly ten ASCII digits.
func IsPhoneNumber(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
