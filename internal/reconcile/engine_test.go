package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ledgerline-dev/ledgerline/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testAccounts maps account IDs to classifications for lookup injection.
type testAccounts map[string]AccountInfo

func (a testAccounts) lookup(id string) (AccountInfo, bool) {
	info, ok := a[id]
	return info, ok
}

var chart = testAccounts{
	"bank":    {Type: model.AccountTypeBank, TracksMovements: true},
	"cash":    {Type: model.AccountTypeCash},
	"rent":    {Type: model.AccountTypeExpense},
	"sales":   {Type: model.AccountTypeRevenue},
	"broker":  {Type: model.AccountTypeInvestment},
	"cc-debt": {Type: model.AccountTypeLiabilities},
}

func tx(amount, from, to string) model.Transaction {
	return model.Transaction{ID: from + "-" + to, Amount: dec(amount), FromAccount: from, ToAccount: to}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name string
		typ  model.ActivityType
		txs  []model.Transaction
		want string
	}{
		{
			name: "revenue sums split postings",
			typ:  model.ActivityTypeRevenue,
			txs:  []model.Transaction{tx("30", "sales", "bank"), tx("20", "sales", "bank")},
			want: "50",
		},
		{
			name: "expense counts the expense leg",
			typ:  model.ActivityTypeExpense,
			txs:  []model.Transaction{tx("50", "bank", "rent")},
			want: "50",
		},
		{
			name: "expense refund subtracts",
			typ:  model.ActivityTypeExpense,
			txs:  []model.Transaction{tx("50", "bank", "rent"), tx("10", "rent", "bank")},
			want: "40",
		},
		{
			name: "investment counts the investment leg",
			typ:  model.ActivityTypeInvestment,
			txs:  []model.Transaction{tx("200", "bank", "broker")},
			want: "200",
		},
		{
			name: "neutral reports gross volume",
			typ:  model.ActivityTypeNeutral,
			txs:  []model.Transaction{tx("75", "bank", "cash"), tx("25", "cash", "bank")},
			want: "100",
		},
		{
			name: "postings without a classifying leg contribute nothing",
			typ:  model.ActivityTypeExpense,
			txs:  []model.Transaction{tx("99", "bank", "cash")},
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Amount(tt.typ, tt.txs, chart.lookup)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestActivityStatus_FutureIsScheduled(t *testing.T) {
	now := date(2025, 6, 1)
	got := ActivityStatus(date(2025, 7, 1), now, []model.Transaction{tx("50", "bank", "rent")}, nil, chart.lookup, noMovements)
	assert.Equal(t, model.StatusScheduled, got)
}

func noMovements(string) (model.Movement, bool) { return model.Movement{}, false }

func TestActivityStatus_TrackedAccountNeedsLinks(t *testing.T) {
	now := date(2025, 6, 1)
	txs := []model.Transaction{tx("50", "bank", "rent")}

	// No linked movement: the bank leg is unreconciled.
	got := ActivityStatus(date(2025, 5, 1), now, txs, nil, chart.lookup, noMovements)
	assert.Equal(t, model.StatusIncomplete, got)

	// Linking a movement on the bank account for the full 50 completes it.
	mov := model.Movement{ID: "m1", Account: "bank", Amount: dec("50")}
	links := []model.Link{{ID: "l1", Movement: "m1", Activity: "a1", Amount: dec("50")}}
	resolve := func(id string) (model.Movement, bool) {
		if id == mov.ID {
			return mov, true
		}
		return model.Movement{}, false
	}
	got = ActivityStatus(date(2025, 5, 1), now, txs, links, chart.lookup, resolve)
	assert.Equal(t, model.StatusCompleted, got)
}

func TestActivityStatus_UntrackedAccountsComplete(t *testing.T) {
	now := date(2025, 6, 1)
	txs := []model.Transaction{tx("10", "cash", "rent")}
	got := ActivityStatus(date(2025, 5, 1), now, txs, nil, chart.lookup, noMovements)
	assert.Equal(t, model.StatusCompleted, got)
}

func TestActivityStatus_PartialLinkIsIncomplete(t *testing.T) {
	now := date(2025, 6, 1)
	txs := []model.Transaction{tx("50", "bank", "rent")}
	mov := model.Movement{ID: "m1", Account: "bank", Amount: dec("50")}
	links := []model.Link{{ID: "l1", Movement: "m1", Activity: "a1", Amount: dec("30")}}
	resolve := func(id string) (model.Movement, bool) { return mov, id == mov.ID }

	got := ActivityStatus(date(2025, 5, 1), now, txs, links, chart.lookup, resolve)
	assert.Equal(t, model.StatusIncomplete, got)
}

func TestMovementStatus(t *testing.T) {
	mov := model.Movement{ID: "m1", Amount: dec("80")}

	assert.Equal(t, model.StatusIncomplete, MovementStatus(mov, nil))

	partial := []model.Link{{Amount: dec("30")}}
	assert.Equal(t, model.StatusIncomplete, MovementStatus(mov, partial))

	full := []model.Link{{Amount: dec("30")}, {Amount: dec("50")}}
	assert.Equal(t, model.StatusCompleted, MovementStatus(mov, full))
}

func TestLiabilityStatus(t *testing.T) {
	owed := model.Liability{ID: "d1", Amount: dec("25"), LinkID: "pair"}

	// No counterpart row yet: nothing to reconcile against.
	assert.Equal(t, model.StatusCompleted, LiabilityStatus(owed, nil))

	match := model.Liability{ID: "d2", Amount: dec("-25"), LinkID: "pair"}
	assert.Equal(t, model.StatusCompleted, LiabilityStatus(owed, &match))

	mismatch := model.Liability{ID: "d3", Amount: dec("-20"), LinkID: "pair"}
	assert.Equal(t, model.StatusIncomplete, LiabilityStatus(owed, &mismatch))
}
