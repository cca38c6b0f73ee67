package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evgsol/telegram-tryon-bot/internal/i18n"
)

func userRow(id, tokens string) []string {
	return []string{id, "alice", "Alice", "Smith", "2024-01-01 10:00:00", tokens}
}

func newTestLedger(t *testing.T, ws Worksheet) *TokenLedger {
	t.Helper()
	mgr, err := i18n.NewManager("en", zap.NewNop())
	require.NoError(t, err)
	return NewTokenLedger(ws, mgr, 10, zap.NewNop())
}

func TestGetBalance(t *testing.T) {
	ws := newFakeWorksheet(
		[]string{"id", "username", "first", "last", "activity", "tokens"},
		userRow("42", "7"),
	)
	ledger := newTestLedger(t, ws)

	tokens, ok := ledger.GetBalance(42)
	require.True(t, ok)
	assert.Equal(t, 7, tokens)
}

func TestGetBalanceUnknownUser(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", "7"))
	ledger := newTestLedger(t, ws)

	_, ok := ledger.GetBalance(99)
	assert.False(t, ok)
	assert.False(t, ledger.HasBalance(99))
}

func TestGetBalanceBackendError(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", "7"))
	ws.findErr = errors.New("sheet unavailable")
	ledger := newTestLedger(t, ws)

	_, ok := ledger.GetBalance(42)
	assert.False(t, ok)
}

func TestGetBalanceNilWorksheet(t *testing.T) {
	ledger := newTestLedger(t, nil)

	_, ok := ledger.GetBalance(42)
	assert.False(t, ok)
	assert.False(t, ledger.Decrement(42))
}

func TestGetBalanceRepairsEmptyCell(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", ""))
	ledger := newTestLedger(t, ws)

	tokens, ok := ledger.GetBalance(42)
	require.True(t, ok)
	assert.Equal(t, 10, tokens, "empty cell is repaired to the initial grant, not treated as zero")
	assert.Equal(t, "10", ws.cell(1, tokensColumn))
}

func TestGetBalanceRepairsGarbageCell(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", "lots"))
	ledger := newTestLedger(t, ws)

	tokens, ok := ledger.GetBalance(42)
	require.True(t, ok)
	assert.Equal(t, 10, tokens)
	assert.Equal(t, "10", ws.cell(1, tokensColumn))
}

func TestGetBalanceRepairWriteFails(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", ""))
	ws.updateErr = errors.New("write refused")
	ledger := newTestLedger(t, ws)

	_, ok := ledger.GetBalance(42)
	assert.False(t, ok)
}

func TestDecrement(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", "3"))
	ledger := newTestLedger(t, ws)

	require.True(t, ledger.Decrement(42))
	assert.Equal(t, "2", ws.cell(1, tokensColumn))
}

func TestDecrementAtZeroIsNoOp(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", "0"))
	ledger := newTestLedger(t, ws)

	assert.False(t, ledger.Decrement(42))
	assert.Equal(t, "0", ws.cell(1, tokensColumn))
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", "2"))
	ledger := newTestLedger(t, ws)

	for i := 0; i < 5; i++ {
		ledger.Decrement(42)
		tokens, ok := ledger.GetBalance(42)
		require.True(t, ok)
		assert.GreaterOrEqual(t, tokens, 0)
	}
	tokens, _ := ledger.GetBalance(42)
	assert.Equal(t, 0, tokens)
}

func TestDecrementUnknownUser(t *testing.T) {
	ws := newFakeWorksheet(userRow("42", "3"))
	ledger := newTestLedger(t, ws)

	assert.False(t, ledger.Decrement(99))
	assert.Equal(t, "3", ws.cell(1, tokensColumn))
}

func TestHasBalance(t *testing.T) {
	ws := newFakeWorksheet(userRow("1", "5"), userRow("2", "0"))
	ledger := newTestLedger(t, ws)

	assert.True(t, ledger.HasBalance(1))
	assert.False(t, ledger.HasBalance(2))
	assert.False(t, ledger.HasBalance(3))
}

func TestBalanceMessageVariants(t *testing.T) {
	ws := newFakeWorksheet(userRow("1", "5"), userRow("2", "0"))
	ledger := newTestLedger(t, ws)

	assert.Contains(t, ledger.BalanceMessage(1, nil), "5")
	assert.Contains(t, ledger.BalanceMessage(2, nil), "run out")
	assert.Contains(t, ledger.BalanceMessage(3, nil), "Could not look up")
}
