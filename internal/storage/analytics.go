package storage

import (
	"time"

	"go.uber.org/zap"
)

// Recorder appends one audit row to the Analytics sheet per successful
// generation. Layout: A=id, B=userId, C=person image URL, D=garment image
// URL, E=result URL, F=timestamp. Rows are never updated or deleted.
type Recorder struct {
	ws     Worksheet
	logger *zap.Logger
}

func NewRecorder(ws Worksheet, logger *zap.Logger) *Recorder {
	return &Recorder{
		ws:     ws,
		logger: logger,
	}
}

// LogGeneration appends the audit row. The id is the current row count of the
// sheet, not a persisted counter, so it is only reliable while this process
// is the sole writer. Returns false on any backend error; callers treat the
// write as fire-and-forget.
func (r *Recorder) LogGeneration(userID int64, personURL, garmentURL, resultURL string) bool {
	if r.ws == nil {
		r.logger.Error("Analytics worksheet not initialized")
		return false
	}

	id := r.nextID()
	row := []interface{}{
		id,
		userID,
		personURL,
		garmentURL,
		resultURL,
		time.Now().Format(activityTimeFormat),
	}

	if err := r.ws.AppendRow(row); err != nil {
		r.logger.Error("Failed to log generation", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}

	r.logger.Info("Logged generation", zap.Int64("user_id", userID), zap.Int("id", id))
	return true
}

func (r *Recorder) nextID() int {
	count, err := r.ws.RowCount()
	if err != nil {
		r.logger.Error("Failed to get next analytics id", zap.Error(err))
		return 1
	}
	// Header-only or empty sheet starts at 1.
	if count <= 1 {
		return 1
	}
	return count
}
