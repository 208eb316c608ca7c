package importer

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)
	return string(data)
}

func TestChaseParser_Parse(t *testing.T) {
	p := &ChaseParser{}
	txns, err := p.Parse(strings.NewReader(readFixture(t)))
	require.NoError(t, err)
	require.Len(t, txns, 6)

	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Description)
	assert.Equal(t, "-4.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, "ACH_DEBIT", txns[0].Type)
	assert.Equal(t, 2025, txns[0].Date.Year())
	assert.Equal(t, 1, int(txns[0].Date.Month()))
	assert.Equal(t, 3, txns[0].Date.Day())

	assert.Equal(t, "ACME CONSULTING INVOICE 1042", txns[3].Description)
	assert.True(t, txns[3].Amount.IsPositive())
	assert.Equal(t, "3500.00", txns[3].Amount.StringFixed(2))
}

func TestChaseParser_EmptyFile(t *testing.T) {
	p := &ChaseParser{}
	txns, err := p.Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	require.NoError(t, err)
	assert.Nil(t, txns)
}

func TestChaseParser_BadDate(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\nDEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n"
	p := &ChaseParser{}
	_, err := p.Parse(strings.NewReader(csv))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing date")
}

func TestMovements_DeterministicIDs(t *testing.T) {
	p := &ChaseParser{}
	txns, err := p.Parse(strings.NewReader(readFixture(t)))
	require.NoError(t, err)

	first := Movements("acct-bank", txns)
	second := Movements("acct-bank", txns)
	require.Len(t, first, 6)

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "re-import must not mint new ids")
		assert.Equal(t, "acct-bank", first[i].Account)
		assert.False(t, first[i].Amount.IsNegative(), "movement amounts are magnitudes")
	}
	assert.Equal(t, "4.00", first[0].Amount.StringFixed(2))

	other := Movements("acct-other", txns)
	assert.NotEqual(t, first[0].ID, other[0].ID)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("chase"))
	assert.NotNil(t, r.Get("CHASE"))
	assert.Nil(t, r.Get("unknown"))

	assert.Panics(t, func() { r.Register(&ChaseParser{}) })
}
