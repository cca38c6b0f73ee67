package bot

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Liveness signal cadence during a blocking generation call.
const (
	typingInterval = 5 * time.Second
	typingCeiling  = 60 * time.Second

	// Short pauses between consecutive messages, so replies read like a
	// conversation instead of a burst.
	afterGreetingPause = 2 * time.Second
	afterBalancePause  = 1 * time.Second
	afterSuccessPause  = 2 * time.Second
	afterFailurePause  = 1 * time.Second
)

// HandleUpdate routes one Telegram update. Panics are recovered here so no
// single conversation can take the polling loop down.
func HandleUpdate(update tgbotapi.Update, deps BotDeps) {
	defer func() {
		if r := recover(); r != nil {
			deps.Logger.Error("Panic recovered in HandleUpdate",
				zap.Any("panic_value", r),
				zap.String("stack", string(debug.Stack())))
			if update.Message != nil {
				lang := deps.DefaultLang()
				deps.send(update.Message.Chat.ID, deps.I18n.T(lang, "generation_failed"))
			}
		}
	}()

	if update.Message != nil {
		HandleMessage(update.Message, deps)
	}
}

func HandleMessage(message *tgbotapi.Message, deps BotDeps) {
	userID := message.From.ID
	chatID := message.Chat.ID
	lang := deps.DefaultLang()

	if message.IsCommand() {
		deps.Sessions.Lock(userID)
		defer deps.Sessions.Unlock(userID)

		switch message.Command() {
		case "start":
			HandleStartCommand(message, deps)
		case "balance":
			deps.send(chatID, deps.Ledger.BalanceMessage(userID, lang))
		case "cancel":
			if _, ok := deps.Sessions.Get(userID); ok {
				deps.Sessions.Clear(userID)
				deps.send(chatID, deps.I18n.T(lang, "cancel_done"))
			} else {
				deps.send(chatID, deps.I18n.T(lang, "cancel_nothing"))
			}
		case "stats":
			stats, err := deps.Users.Stats()
			if err != nil {
				deps.Logger.Error("Failed to read user stats", zap.Error(err))
				deps.send(chatID, deps.I18n.T(lang, "stats_unavailable"))
				return
			}
			deps.send(chatID, deps.I18n.T(lang, "stats",
				"Total", stats.TotalUsers, "Named", stats.UsersWithUsername))
		case "version":
			deps.send(chatID, fmt.Sprintf("Version: %s\nBuild date: %s\nGo: %s",
				deps.Version, deps.BuildDate, runtime.Version()))
		default:
			deps.Logger.Debug("Unknown command", zap.String("command", message.Command()), zap.Int64("user_id", userID))
		}
		return
	}

	if len(message.Photo) > 0 {
		HandlePhotoMessage(message, deps)
		return
	}

	deps.Logger.Debug("Ignoring non-command, non-photo message", zap.Int64("user_id", userID))
}

// HandleStartCommand opens a session: upsert the profile row, greet, show the
// balance, and ask for the person photo.
func HandleStartCommand(message *tgbotapi.Message, deps BotDeps) {
	user := message.From
	chatID := message.Chat.ID
	lang := deps.DefaultLang()

	if !deps.Users.Upsert(user.ID, user.UserName, user.FirstName, user.LastName) {
		// Profile persistence is best-effort; the session still starts.
		deps.Logger.Warn("Failed to upsert user profile", zap.Int64("user_id", user.ID))
	}

	deps.send(chatID, deps.I18n.T(lang, "greeting"))
	time.Sleep(afterGreetingPause)

	deps.send(chatID, deps.Ledger.BalanceMessage(user.ID, lang))
	time.Sleep(afterBalancePause)

	deps.send(chatID, deps.I18n.T(lang, "ask_photo_person"))
	deps.Sessions.Set(user.ID, &Session{
		UserID: user.ID,
		State:  StateAwaitingFirstImage,
	})
}

// HandlePhotoMessage drives the two-image state machine. Handling is held
// under the per-user lock for the full transition, generation included, so a
// second photo sent mid-generation sees the post-generation session state and
// one token never buys two generations.
func HandlePhotoMessage(message *tgbotapi.Message, deps BotDeps) {
	userID := message.From.ID
	chatID := message.Chat.ID
	lang := deps.DefaultLang()

	deps.Sessions.Lock(userID)
	defer deps.Sessions.Unlock(userID)

	session, ok := deps.Sessions.Get(userID)
	if !ok {
		deps.send(chatID, deps.I18n.T(lang, "start_required"))
		return
	}

	path, err := deps.Intake.Save(message)
	if err != nil {
		deps.Logger.Error("Failed to save photo", zap.Int64("user_id", userID), zap.Error(err))
		deps.send(chatID, deps.I18n.T(lang, "error_save_photo"))
		return
	}
	if err := validateImage(path); err != nil {
		deps.Logger.Warn("Rejected invalid image", zap.Int64("user_id", userID), zap.Error(err))
		deps.send(chatID, deps.I18n.T(lang, "error_invalid_image"))
		return
	}

	switch session.State {
	case StateAwaitingFirstImage:
		session.FirstImagePath = path
		session.State = StateAwaitingSecondImage
		deps.Sessions.Set(userID, session)
		deps.send(chatID, deps.I18n.T(lang, "ask_photo_garment"))

	case StateAwaitingSecondImage:
		session.SecondImagePath = path
		runGeneration(chatID, userID, session, deps)

	default:
		deps.Logger.Error("Session in unknown state", zap.Int64("user_id", userID), zap.Int("state", int(session.State)))
		deps.Sessions.Clear(userID)
		deps.send(chatID, deps.I18n.T(lang, "start_required"))
	}
}

// runGeneration performs the balance check, the try-on call with its liveness
// signal, the debit and audit on success, and the loop-or-terminate decision.
func runGeneration(chatID, userID int64, session *Session, deps BotDeps) {
	lang := deps.DefaultLang()

	// Check balance first; an exhausted user never reaches the provider.
	if !deps.Ledger.HasBalance(userID) {
		deps.send(chatID, deps.Ledger.BalanceMessage(userID, lang))
		deps.Sessions.Clear(userID)
		return
	}

	deps.sendTyping(chatID)
	deps.send(chatID, deps.I18n.T(lang, "processing"))

	// The keep-alive must stop on every exit path before anything further is
	// reported, hence both the deferred cancel and the explicit one below.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go typingKeepAlive(ctx, chatID, deps)

	result, err := deps.FalClient.TryOn(ctx, session.FirstImagePath, session.SecondImagePath)
	cancel()

	if err != nil || result == nil {
		// A failed generation never consumes a token.
		deps.Logger.Error("Virtual try-on failed", zap.Int64("user_id", userID), zap.Error(err))
		deps.send(chatID, deps.I18n.T(lang, "generation_failed"))
		deps.send(chatID, deps.Ledger.BalanceMessage(userID, lang))
		time.Sleep(afterFailurePause)
		deps.send(chatID, deps.I18n.T(lang, "ask_photo_person"))
		restartCycle(userID, session, deps)
		return
	}

	if !deps.Ledger.Decrement(userID) {
		deps.Logger.Warn("Failed to decrement tokens after successful generation", zap.Int64("user_id", userID))
	}
	if !deps.Analytics.LogGeneration(userID, result.PersonURL, result.GarmentURL, result.ResultURL) {
		// Audit writes are fire-and-forget as far as the chat is concerned.
		deps.Logger.Warn("Failed to log generation analytics", zap.Int64("user_id", userID))
	}

	deps.send(chatID, deps.I18n.T(lang, "result_ready", "URL", result.ResultURL))
	deps.send(chatID, deps.Ledger.BalanceMessage(userID, lang))

	if deps.Ledger.HasBalance(userID) {
		time.Sleep(afterSuccessPause)
		deps.send(chatID, deps.I18n.T(lang, "ask_photo_person"))
		restartCycle(userID, session, deps)
	} else {
		deps.Sessions.Clear(userID)
	}
}

func restartCycle(userID int64, session *Session, deps BotDeps) {
	session.State = StateAwaitingFirstImage
	session.FirstImagePath = ""
	session.SecondImagePath = ""
	deps.Sessions.Set(userID, session)
}

// typingKeepAlive sends a typing action at the configured cadence until the
// context is cancelled or the ceiling expires.
func typingKeepAlive(ctx context.Context, chatID int64, deps BotDeps) {
	interval, ceiling := deps.typingCadence()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(ceiling)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			deps.sendTyping(chatID)
		}
	}
}
