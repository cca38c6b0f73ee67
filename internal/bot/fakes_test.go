package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evgsol/telegram-tryon-bot/internal/config"
	"github.com/evgsol/telegram-tryon-bot/internal/i18n"
	"github.com/evgsol/telegram-tryon-bot/internal/storage"
	"github.com/evgsol/telegram-tryon-bot/pkg/falapi"
)

// fakeSender records outgoing texts and chat actions.
type fakeSender struct {
	mu      sync.Mutex
	texts   []string
	actions int
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.texts = append(s.texts, m.Text)
	}
	return tgbotapi.Message{MessageID: len(s.texts)}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *fakeSender) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *fakeSender) actionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions
}

// fakeIntake hands back a preconfigured local path instead of downloading.
type fakeIntake struct {
	path  string
	err   error
	calls int
}

func (f *fakeIntake) Save(message *tgbotapi.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

// fakeTryOn is a TryOnClient with a canned outcome and an optional delay to
// simulate a slow provider.
type fakeTryOn struct {
	mu     sync.Mutex
	delay  time.Duration
	result *falapi.TryOnResult
	err    error
	calls  int
}

func (f *fakeTryOn) TryOn(ctx context.Context, personImagePath, garmentImagePath string) (*falapi.TryOnResult, error) {
	f.mu.Lock()
	f.calls++
	delay, result, err := f.delay, f.result, f.err
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fakeTryOn) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeWS is a minimal in-memory storage.Worksheet.
type fakeWS struct {
	rows [][]string
}

func (f *fakeWS) FindRowByID(id string) (int, error) {
	for i, row := range f.rows {
		if len(row) > 0 && row[0] == id {
			return i + 1, nil
		}
	}
	return 0, storage.ErrRowNotFound
}

func (f *fakeWS) ReadCell(row, col int) (string, error) {
	if row < 1 || row > len(f.rows) {
		return "", nil
	}
	cells := f.rows[row-1]
	if col < 1 || col > len(cells) {
		return "", nil
	}
	return cells[col-1], nil
}

func (f *fakeWS) UpdateCell(row, col int, value interface{}) error {
	for len(f.rows) < row {
		f.rows = append(f.rows, nil)
	}
	cells := f.rows[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = fmt.Sprint(value)
	f.rows[row-1] = cells
	return nil
}

func (f *fakeWS) UpdateRange(rangeA1 string, values []interface{}) error {
	var startCol, endCol byte
	var row, row2 int
	if _, err := fmt.Sscanf(rangeA1, "%c%d:%c%d", &startCol, &row, &endCol, &row2); err != nil {
		return fmt.Errorf("unsupported range %q: %w", rangeA1, err)
	}
	for i, v := range values {
		if err := f.UpdateCell(row, int(startCol-'A')+1+i, v); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeWS) AppendRow(values []interface{}) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeWS) RowCount() (int, error) {
	return len(f.rows), nil
}

// testEnv bundles deps with handles on every fake for assertions.
type testEnv struct {
	deps      BotDeps
	sender    *fakeSender
	intake    *fakeIntake
	generator *fakeTryOn
	users     *fakeWS
	analytics *fakeWS
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	mgr, err := i18n.NewManager("en", log)
	require.NoError(t, err)

	env := &testEnv{
		sender: &fakeSender{},
		intake: &fakeIntake{path: writeValidImage(t)},
		generator: &fakeTryOn{result: &falapi.TryOnResult{
			PersonURL:  "https://files.test/person.jpg",
			GarmentURL: "https://files.test/garment.jpg",
			ResultURL:  "https://res.test/out.png",
		}},
		users:     &fakeWS{rows: [][]string{{"id", "username", "first", "last", "activity", "tokens"}}},
		analytics: &fakeWS{rows: [][]string{{"id", "id_user", "person", "garment", "result", "timestamp"}}},
	}

	env.deps = BotDeps{
		Bot:       env.sender,
		FalClient: env.generator,
		Intake:    env.intake,
		Users:     storage.NewUserStore(env.users, 10, log),
		Ledger:    storage.NewTokenLedger(env.users, mgr, 10, log),
		Analytics: storage.NewRecorder(env.analytics, log),
		Sessions:  NewSessionManager(),
		I18n:      mgr,
		Config:    &config.Config{DefaultLanguage: "en", TempDir: t.TempDir()},
		Logger:    log,
		Version:   "test",
		BuildDate: "test",
	}
	return env
}

func (e *testEnv) addUser(t *testing.T, userID int64, tokens string) {
	t.Helper()
	require.NoError(t, e.users.AppendRow([]interface{}{
		fmt.Sprint(userID), "alice", "Alice", "Smith", "2024-01-01 10:00:00", tokens,
	}))
}

func (e *testEnv) userTokens(t *testing.T, userID int64) string {
	t.Helper()
	row, err := e.users.FindRowByID(fmt.Sprint(userID))
	require.NoError(t, err)
	v, err := e.users.ReadCell(row, 6)
	require.NoError(t, err)
	return v
}

func (e *testEnv) auditRows() int {
	return len(e.analytics.rows) - 1 // minus header
}

func writeValidImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	path := filepath.Join(t.TempDir(), "valid.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func writeCorruptImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corrupt.png")
	require.NoError(t, os.WriteFile(path, []byte("this is not an image"), 0644))
	return path
}

func photoMessage(userID int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:  &tgbotapi.User{ID: userID, UserName: "alice", FirstName: "Alice", LastName: "Smith"},
		Chat:  &tgbotapi.Chat{ID: userID},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}
}

func commandMessage(userID int64, command string) *tgbotapi.Message {
	text := "/" + command
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: "alice", FirstName: "Alice", LastName: "Smith"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		},
	}
}

var errIntakeDown = errors.New("download failed")
