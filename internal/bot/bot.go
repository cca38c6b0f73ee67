package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/evgsol/telegram-tryon-bot/internal/config"
	"github.com/evgsol/telegram-tryon-bot/internal/i18n"
	"github.com/evgsol/telegram-tryon-bot/internal/logger"
	"github.com/evgsol/telegram-tryon-bot/internal/storage"
	"github.com/evgsol/telegram-tryon-bot/pkg/falapi"
)

// Sender is the slice of the Telegram API the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TryOnClient performs one generation against the provider.
type TryOnClient interface {
	TryOn(ctx context.Context, personImagePath, garmentImagePath string) (*falapi.TryOnResult, error)
}

// BotDeps carries every dependency the handlers need. Built once at startup;
// no ambient globals.
type BotDeps struct {
	Bot       Sender
	FalClient TryOnClient
	Intake    PhotoIntake
	Users     *storage.UserStore
	Ledger    *storage.TokenLedger
	Analytics *storage.Recorder
	Sessions  *SessionManager
	I18n      *i18n.Manager
	Config    *config.Config
	Logger    *zap.Logger
	Version   string
	BuildDate string

	// Keep-alive cadence during a generation; zero values fall back to the
	// production constants.
	TypingInterval time.Duration
	TypingCeiling  time.Duration
}

func (d BotDeps) typingCadence() (time.Duration, time.Duration) {
	interval, ceiling := d.TypingInterval, d.TypingCeiling
	if interval <= 0 {
		interval = typingInterval
	}
	if ceiling <= 0 {
		ceiling = typingCeiling
	}
	return interval, ceiling
}

// DefaultLang is the language every reply is rendered in. Nil lets the i18n
// manager fall back to its bundle default.
func (d BotDeps) DefaultLang() *string {
	if d.Config != nil && d.Config.DefaultLanguage != "" {
		return &d.Config.DefaultLanguage
	}
	return nil
}

func (d BotDeps) send(chatID int64, text string) {
	if _, err := d.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		d.Logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (d BotDeps) sendTyping(chatID int64) {
	if _, err := d.Bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		d.Logger.Debug("Failed to send typing action", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// StartBot wires everything together and runs the update polling loop.
func StartBot(cfg *config.Config, version string, buildDate string) error {
	log, err := logger.InitLogger(cfg.LogConfig.Level, cfg.LogConfig.Format, cfg.LogConfig.File)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting virtual try-on bot", zap.String("version", version), zap.String("buildDate", buildDate))

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal("Failed to create bot", zap.Error(err))
	}
	log.Info("Authorized on account", zap.String("username", botAPI.Self.UserName))

	i18nManager, err := i18n.NewManager(cfg.DefaultLanguage, log)
	if err != nil {
		log.Fatal("Failed to initialize i18n manager", zap.Error(err))
	}

	falClient := falapi.NewClient(
		cfg.FalAI.APIKey,
		cfg.FalAI.TryOnEndpoint,
		cfg.FalAI.StorageEndpoint,
		log.Named("fal_client"),
	)

	// A sheets failure is degraded, not fatal: the stores answer "backend
	// unavailable" and the bot keeps replying.
	var usersSheet, analyticsSheet storage.Worksheet
	svc, err := storage.NewSheetsService(context.Background(), cfg.Sheets.CredentialsFile)
	if err != nil {
		log.Warn("Failed to initialize sheets client, user data won't be saved", zap.Error(err))
	} else {
		usersSheet = storage.NewGoogleWorksheet(svc, cfg.Sheets.UsersSheetID, log.Named("users_sheet"))
		analyticsSheet = storage.NewGoogleWorksheet(svc, cfg.Sheets.AnalyticsSheetID, log.Named("analytics_sheet"))
		log.Info("Sheets client initialized (users + analytics)")
	}

	deps := BotDeps{
		Bot:       botAPI,
		FalClient: falClient,
		Intake:    NewTelegramIntake(botAPI, cfg.TempDir, log.Named("intake")),
		Users:     storage.NewUserStore(usersSheet, cfg.Balance.InitialTokens, log.Named("users")),
		Ledger:    storage.NewTokenLedger(usersSheet, i18nManager, cfg.Balance.InitialTokens, log.Named("ledger")),
		Analytics: storage.NewRecorder(analyticsSheet, log.Named("analytics")),
		Sessions:  NewSessionManager(),
		I18n:      i18nManager,
		Config:    cfg,
		Logger:    log,
		Version:   version,
		BuildDate: buildDate,

		TypingInterval: typingInterval,
		TypingCeiling:  typingCeiling,
	}

	SetBotCommands(botAPI, log, cfg.DefaultLanguage, i18nManager)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)

	log.Info("Bot started, listening for updates...")
	for update := range updates {
		go func(upd tgbotapi.Update) {
			HandleUpdate(upd, deps)
		}(update)
	}

	return nil
}

// SetBotCommands registers the command menu shown by the Telegram client.
func SetBotCommands(bot *tgbotapi.BotAPI, log *zap.Logger, defaultLang string, i18nManager *i18n.Manager) {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: i18nManager.T(&defaultLang, "command_desc_start")},
		{Command: "balance", Description: i18nManager.T(&defaultLang, "command_desc_balance")},
		{Command: "cancel", Description: i18nManager.T(&defaultLang, "command_desc_cancel")},
		{Command: "version", Description: i18nManager.T(&defaultLang, "command_desc_version")},
	}

	commandsConfig := tgbotapi.NewSetMyCommands(commands...)
	if _, err := bot.Request(commandsConfig); err != nil {
		log.Error("Failed to set bot commands", zap.Error(err))
	} else {
		log.Info("Successfully set bot commands")
	}
}
