package caseref

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	date := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)

	refs := map[string]bool{}
	for i := 0; i < 2000; i++ {
		ref := Generate("CA", "ALAM", date)
		require.True(t, Validate(ref), "generated ref should validate: %s", ref)
		require.False(t, refs[ref], "duplicate ref generated: %s", ref)
		refs[ref] = true
	}
}

func TestValidateAndParse(t *testing.T) {
	ref := Generate("NY", "KINGS", time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, Validate(ref))

	parts, err := Parse(ref)
	require.NoError(t, err)
	require.Equal(t, "NY", parts.State)
	require.Equal(t, "KINGS", parts.CountyCode)
	require.Equal(t, "20250202", parts.Date)
	require.Len(t, parts.Random, 6)
}

func TestWrongCheckDigit(t *testing.T) {
	ref := Generate("IL", "COOK", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	// flip the check digit to a value the checksum cannot produce for this base
	tampered := ref[:len(ref)-1] + "Z"
	if Validate(tampered) {
		tampered = ref[:len(ref)-1] + "Y"
	}

	require.False(t, Validate(tampered))
	_, err := Parse(tampered)
	require.Error(t, err)
}

func TestExtractFromText(t *testing.T) {
	ref := Generate("CA", "ALAM", time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC))
	subject := fmt.Sprintf("[%s] Status update", ref)

	found, ok := ExtractFromText(subject)
	require.True(t, ok)
	require.Equal(t, ref, found)

	_, ok = ExtractFromText("no reference in here")
	require.False(t, ok)
}
