package storage

import (
	"errors"
	"strconv"
	"strings"

	"github.com/evgsol/telegram-tryon-bot/internal/i18n"
	"go.uber.org/zap"
)

// Users table layout (1-indexed): A=id, B=username, C=firstName, D=lastName,
// E=lastActivity, F=tokens. The tokens column position is a persisted-state
// contract shared with the spreadsheet.
const (
	idColumn     = 1
	tokensColumn = 6
)

// TokenLedger meters generations against the tokens column of the Users
// sheet. Balances never go negative; a failed lookup degrades to "no tokens
// information" rather than an error.
type TokenLedger struct {
	ws      Worksheet
	i18n    *i18n.Manager
	initial int
	logger  *zap.Logger
}

func NewTokenLedger(ws Worksheet, i18nMgr *i18n.Manager, initialTokens int, logger *zap.Logger) *TokenLedger {
	return &TokenLedger{
		ws:      ws,
		i18n:    i18nMgr,
		initial: initialTokens,
		logger:  logger,
	}
}

// GetBalance returns the user's token balance. The second result is false
// when the user cannot be located or the backend is unavailable.
//
// An empty or non-numeric tokens cell belongs to a row written before token
// metering existed; it is repaired in place to the initial grant and that
// value is returned. Treating it as zero would silently lock such users out.
func (l *TokenLedger) GetBalance(userID int64) (int, bool) {
	if l.ws == nil {
		l.logger.Error("Worksheet not initialized")
		return 0, false
	}

	row, err := l.ws.FindRowByID(strconv.FormatInt(userID, 10))
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			l.logger.Warn("User not found in sheet", zap.Int64("user_id", userID))
		} else {
			l.logger.Error("Failed to look up user row", zap.Int64("user_id", userID), zap.Error(err))
		}
		return 0, false
	}

	raw, err := l.ws.ReadCell(row, tokensColumn)
	if err != nil {
		l.logger.Error("Failed to read tokens cell", zap.Int64("user_id", userID), zap.Error(err))
		return 0, false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		l.logger.Info("User has empty tokens cell, repairing to initial grant",
			zap.Int64("user_id", userID), zap.Int("tokens", l.initial))
		return l.repairTokensCell(userID, row)
	}

	tokens, err := strconv.Atoi(raw)
	if err != nil {
		l.logger.Warn("Invalid tokens value, repairing to initial grant",
			zap.Int64("user_id", userID), zap.String("value", raw))
		return l.repairTokensCell(userID, row)
	}

	l.logger.Debug("User balance read", zap.Int64("user_id", userID), zap.Int("tokens", tokens))
	return tokens, true
}

func (l *TokenLedger) repairTokensCell(userID int64, row int) (int, bool) {
	if err := l.ws.UpdateCell(row, tokensColumn, l.initial); err != nil {
		l.logger.Error("Failed to repair tokens cell", zap.Int64("user_id", userID), zap.Error(err))
		return 0, false
	}
	return l.initial, true
}

// HasBalance reports whether the user can afford one generation.
func (l *TokenLedger) HasBalance(userID int64) bool {
	tokens, ok := l.GetBalance(userID)
	return ok && tokens > 0
}

// Decrement spends one token. It refuses (returns false, no write) when the
// balance is already zero, the user is missing, or the backend errors. Note
// that concurrent decrements for the same user are not serialized here; the
// sheet is treated as a single external system without client-side locking.
func (l *TokenLedger) Decrement(userID int64) bool {
	if l.ws == nil {
		l.logger.Error("Worksheet not initialized")
		return false
	}

	row, err := l.ws.FindRowByID(strconv.FormatInt(userID, 10))
	if err != nil {
		l.logger.Error("User not found when decrementing tokens", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}

	raw, err := l.ws.ReadCell(row, tokensColumn)
	if err != nil {
		l.logger.Error("Failed to read tokens cell", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}

	raw = strings.TrimSpace(raw)
	current := 0
	if raw != "" {
		current, err = strconv.Atoi(raw)
		if err != nil {
			l.logger.Error("Invalid tokens value", zap.Int64("user_id", userID), zap.String("value", raw))
			return false
		}
	}

	if current <= 0 {
		l.logger.Warn("User has no tokens to decrement", zap.Int64("user_id", userID))
		return false
	}

	if err := l.ws.UpdateCell(row, tokensColumn, current-1); err != nil {
		l.logger.Error("Failed to write decremented balance", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}

	l.logger.Info("Decremented tokens",
		zap.Int64("user_id", userID), zap.Int("from", current), zap.Int("to", current-1))
	return true
}

// BalanceMessage renders the user-facing balance summary: lookup failure,
// exhausted, or the remaining count.
func (l *TokenLedger) BalanceMessage(userID int64, lang *string) string {
	tokens, ok := l.GetBalance(userID)
	if !ok {
		return l.i18n.T(lang, "balance_unavailable")
	}
	if tokens == 0 {
		return l.i18n.T(lang, "balance_exhausted")
	}
	return l.i18n.T(lang, "balance_remaining", "Count", tokens)
}
