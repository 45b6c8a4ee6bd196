package caseschema

import (
	"testing"
	"time"

	"surplus-backend/lib/caseref"

	"github.com/stretchr/testify/require"
)

func validCase() Case {
	return Case{
		CaseRef:      caseref.Generate("CA", "ALAM", time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)),
		State:        "CA",
		CountyCode:   "ALAM",
		SourceSystem: "scraper",
		FiledAt:      "2025-01-05",
		PropertyAddress: &Address{
			Line1:      "123 Main St",
			City:       "Oakland",
			State:      "CA",
			CountyCode: "ALAM",
			PostalCode: "94607",
		},
		Parties: []Party{
			{Role: "plaintiff", Name: "County of Alameda"},
			{Role: "defendant", Name: "John Doe"},
		},
		Amounts: []Amount{{Type: "surplus", Amount: 1000}},
		Status:  "open",
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	c := validCase()
	require.NoError(t, c.Validate())
	require.Equal(t, "USD", c.Amounts[0].Currency)

	c = validCase()
	c.Status = ""
	require.NoError(t, c.Validate())
	require.Equal(t, "unknown", c.Status)
}

func TestValidateRejections(t *testing.T) {
	for name, mutate := range map[string]func(*Case){
		"bad case ref":     func(c *Case) { c.CaseRef = "INVALID-REFERENCE" },
		"bad state":        func(c *Case) { c.State = "CAL" },
		"bad county":       func(c *Case) { c.CountyCode = "X" },
		"no source system": func(c *Case) { c.SourceSystem = "" },
		"bad filed_at":     func(c *Case) { c.FiledAt = "01/05/2025" },
		"bad sale_date":    func(c *Case) { c.SaleDate = "yesterday" },
		"bad party role":   func(c *Case) { c.Parties[0].Role = "witness" },
		"negative amount":  func(c *Case) { c.Amounts[0].Amount = -5 },
		"bad currency":     func(c *Case) { c.Amounts[0].Currency = "DOLLARS" },
		"bad status":       func(c *Case) { c.Status = "archived" },
		"bad postal code":  func(c *Case) { c.PropertyAddress.PostalCode = "9460" },
	} {
		t.Run(name, func(t *testing.T) {
			c := validCase()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
