package bot

import (
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// PhotoIntake persists the photo attached to a message and returns its local
// path. Split out so the orchestrator can be driven without Telegram.
type PhotoIntake interface {
	Save(message *tgbotapi.Message) (string, error)
}

// TelegramIntake downloads the highest-resolution variant of a photo into the
// scratch directory.
type TelegramIntake struct {
	bot        *tgbotapi.BotAPI
	tempDir    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewTelegramIntake(bot *tgbotapi.BotAPI, tempDir string, logger *zap.Logger) *TelegramIntake {
	return &TelegramIntake{
		bot:        bot,
		tempDir:    tempDir,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

func (t *TelegramIntake) Save(message *tgbotapi.Message) (string, error) {
	if len(message.Photo) == 0 {
		return "", fmt.Errorf("no photo data in message")
	}
	photo := message.Photo[len(message.Photo)-1] // highest resolution last

	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: photo.FileID})
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}

	if err := os.MkdirAll(t.tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	path := filepath.Join(t.tempDir, scratchName(photo.FileID))

	resp, err := t.httpClient.Get(file.Link(t.bot.Token))
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("file download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	t.logger.Info("Photo saved", zap.String("path", path))
	return path, nil
}

// scratchName derives a filesystem-safe, collision-resistant name from the
// Telegram file id.
func scratchName(fileID string) string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// blake2b.New only fails on bad key sizes; nil key never errors.
		panic(err)
	}
	h.Write([]byte(fileID))
	return hex.EncodeToString(h.Sum(nil)) + ".jpg"
}

// validateImage fully decodes the file; a truncated or corrupt payload fails
// here even when the extension looks right.
func validateImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	if _, _, err := image.Decode(f); err != nil {
		return fmt.Errorf("invalid image %s: %w", path, err)
	}
	return nil
}
