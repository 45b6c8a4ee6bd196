// Package caseschema defines the canonical normalized case record handed to
// the case-management consumer, along with its validation rules.
package caseschema

import (
	"fmt"
	"regexp"

	"surplus-backend/lib/caseref"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
var postalPattern = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code,omitempty"`
	CountyCode string `json:"county_code"`
}

type Party struct {
	Role    string `json:"role"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

type Amount struct {
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

type Case struct {
	CaseRef         string         `json:"case_ref"`
	State           string         `json:"state"`
	CountyCode      string         `json:"county_code"`
	SourceSystem    string         `json:"source_system"`
	FiledAt         string         `json:"filed_at"`
	SaleDate        string         `json:"sale_date,omitempty"`
	PropertyAddress *Address       `json:"property_address,omitempty"`
	Parties         []Party        `json:"parties,omitempty"`
	Amounts         []Amount       `json:"amounts,omitempty"`
	Status          string         `json:"status,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
}

var partyRoles = map[string]bool{
	"plaintiff": true,
	"defendant": true,
	"owner":     true,
	"other":     true,
}

var caseStatuses = map[string]bool{
	"open":    true,
	"pending": true,
	"closed":  true,
	"unknown": true,
}

// Validate applies schema defaults in place (status, currency) and returns
// the first violation found.
func (c *Case) Validate() error {
	if !caseref.Validate(c.CaseRef) {
		return fmt.Errorf("invalid case reference %q", c.CaseRef)
	}
	if len(c.State) != 2 {
		return fmt.Errorf("state must be a 2-letter code, got %q", c.State)
	}
	if len(c.CountyCode) < 2 || len(c.CountyCode) > 12 {
		return fmt.Errorf("county code must be 2-12 characters, got %q", c.CountyCode)
	}
	if c.SourceSystem == "" {
		return fmt.Errorf("source system is required")
	}
	if !datePattern.MatchString(c.FiledAt) {
		return fmt.Errorf("filed_at must be YYYY-MM-DD, got %q", c.FiledAt)
	}
	if c.SaleDate != "" && !datePattern.MatchString(c.SaleDate) {
		return fmt.Errorf("sale_date must be YYYY-MM-DD, got %q", c.SaleDate)
	}

	if c.PropertyAddress != nil {
		if err := c.PropertyAddress.validate(); err != nil {
			return fmt.Errorf("property_address: %w", err)
		}
	}

	for i, p := range c.Parties {
		if !partyRoles[p.Role] {
			return fmt.Errorf("parties[%d]: unknown role %q", i, p.Role)
		}
		if p.Name == "" {
			return fmt.Errorf("parties[%d]: name is required", i)
		}
	}

	for i := range c.Amounts {
		a := &c.Amounts[i]
		if a.Type == "" {
			return fmt.Errorf("amounts[%d]: type is required", i)
		}
		if a.Amount < 0 {
			return fmt.Errorf("amounts[%d]: amount must be non-negative", i)
		}
		if a.Currency == "" {
			a.Currency = "USD"
		}
		if len(a.Currency) != 3 {
			return fmt.Errorf("amounts[%d]: currency must be a 3-letter code, got %q", i, a.Currency)
		}
	}

	if c.Status == "" {
		c.Status = "unknown"
	}
	if !caseStatuses[c.Status] {
		return fmt.Errorf("unknown case status %q", c.Status)
	}

	return nil
}

func (a *Address) validate() error {
	if a.Line1 == "" {
		return fmt.Errorf("line1 is required")
	}
	if a.City == "" {
		return fmt.Errorf("city is required")
	}
	if len(a.State) != 2 {
		return fmt.Errorf("state must be a 2-letter code, got %q", a.State)
	}
	if a.PostalCode != "" && !postalPattern.MatchString(a.PostalCode) {
		return fmt.Errorf("malformed postal code %q", a.PostalCode)
	}
	if len(a.CountyCode) < 2 || len(a.CountyCode) > 12 {
		return fmt.Errorf("county code must be 2-12 characters, got %q", a.CountyCode)
	}
	return nil
}
