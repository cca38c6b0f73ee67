package storage

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const activityTimeFormat = "2006-01-02 15:04:05"

// UserStore maintains profile rows in the Users sheet.
type UserStore struct {
	ws      Worksheet
	initial int
	logger  *zap.Logger
}

func NewUserStore(ws Worksheet, initialTokens int, logger *zap.Logger) *UserStore {
	return &UserStore{
		ws:      ws,
		initial: initialTokens,
		logger:  logger,
	}
}

// Upsert writes the profile columns for a user, appending a new row with the
// initial token grant when the user is unseen. For an existing user only the
// range A:E is rewritten; column F holds the live token balance and must not
// be touched here, otherwise an in-flight decrement would be erased.
func (s *UserStore) Upsert(userID int64, username, firstName, lastName string) bool {
	if s.ws == nil {
		s.logger.Error("Worksheet not initialized")
		return false
	}

	id := strconv.FormatInt(userID, 10)
	profile := []interface{}{
		id,
		username,
		firstName,
		lastName,
		time.Now().Format(activityTimeFormat),
	}

	row, err := s.ws.FindRowByID(id)
	switch {
	case err == nil:
		rangeA1 := fmt.Sprintf("A%d:E%d", row, row)
		if err := s.ws.UpdateRange(rangeA1, profile); err != nil {
			s.logger.Error("Failed to update user profile", zap.Int64("user_id", userID), zap.Error(err))
			return false
		}
		s.logger.Info("Updated user profile", zap.Int64("user_id", userID), zap.Int("row", row))
		return true
	case errors.Is(err, ErrRowNotFound):
		if err := s.ws.AppendRow(append(profile, s.initial)); err != nil {
			s.logger.Error("Failed to append new user", zap.Int64("user_id", userID), zap.Error(err))
			return false
		}
		s.logger.Info("Added new user", zap.Int64("user_id", userID), zap.Int("tokens", s.initial))
		return true
	default:
		s.logger.Error("Failed to look up user", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
}

// UserStats summarizes the Users sheet.
type UserStats struct {
	TotalUsers        int
	UsersWithUsername int
}

// Stats counts users below the header row. Usernames are read one row at a
// time, so this is as slow as the sheet is long.
func (s *UserStore) Stats() (UserStats, error) {
	if s.ws == nil {
		return UserStats{}, errors.New("worksheet not initialized")
	}

	count, err := s.ws.RowCount()
	if err != nil {
		return UserStats{}, err
	}

	stats := UserStats{}
	if count > 1 {
		stats.TotalUsers = count - 1
	}
	for row := 2; row <= count; row++ {
		username, err := s.ws.ReadCell(row, 2)
		if err != nil {
			return UserStats{}, err
		}
		if username != "" {
			stats.UsersWithUsername++
		}
	}
	return stats, nil
}
