package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFineAmountIsJSONNumber(t *testing.T) {
	fine := Fine{ID: "f1", Amount: decimal.RequireFromString("1.50")}

	data, err := json.Marshal(fine)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount":1.5`)

	var decoded Fine
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, fine.Amount.Equal(decoded.Amount))
}

func TestBookStatusFor(t *testing.T) {
	assert.Equal(t, BookAvailable, BookStatusFor(2))
	assert.Equal(t, BookBorrowed, BookStatusFor(0))
}
