package redact

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact_EmailAndPhone(t *testing.T) {
	res := Redact("Contact: jane@example.com, 555-123-4567")

	assert.NotContains(t, res.RedactedText, "@")
	// No 10-digit sequence may survive, with or without separators.
	digitsOnly := regexp.MustCompile(`\D`).ReplaceAllString(res.RedactedText, "")
	assert.Less(t, len(digitsOnly), 10)

	assert.Contains(t, res.Categories, CategoryEmail)
	assert.Contains(t, res.Categories, CategoryPhone)
	assert.GreaterOrEqual(t, res.Count, 2)
}

func TestRedact_Categories(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category string
	}{
		{"card number", "Paid with card 4111 1111 1111 1111 thanks", CategoryCreditCard},
		{"ssn", "SSN 123-45-6789 on file", CategoryGovernmentID},
		{"ip address", "submitted from 192.168.10.14 today", CategoryIPAddress},
		{"street address", "Ship to 123 Maple Street before Friday", CategoryStreetAddress},
		{"zip code", "Portland OR 97201", CategoryPostalCode},
		{"name pair", "Billed to Jane Doe", CategoryName},
		{"canadian postal", "Toronto ON M5V 2T6", CategoryPostalCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Redact(tt.input)
			assert.Contains(t, res.Categories, tt.category)
			assert.Contains(t, res.RedactedText, Marker)
		})
	}
}

func TestRedact_OverlapRecordedOncePerCategory(t *testing.T) {
	// Two emails: one category entry, two redactions.
	res := Redact("a@example.com and b@example.com")

	count := 0
	for _, c := range res.Categories {
		if c == CategoryEmail {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 2, strings.Count(res.RedactedText, Marker))
}

func TestRedact_CleanTextUntouched(t *testing.T) {
	input := "ORDER #1842\nhardcover edition $28.99\nthank you"
	res := Redact(input)

	require.Empty(t, res.Categories)
	assert.Zero(t, res.Count)
	assert.Equal(t, input, res.RedactedText)
}

func TestRedact_Deterministic(t *testing.T) {
	input := "Contact: jane@example.com, 555-123-4567, 123 Maple Street"
	first := Redact(input)
	second := Redact(input)
	assert.Equal(t, first, second)
}
