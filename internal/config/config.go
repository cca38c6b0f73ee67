package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultTryOnEndpoint   = "https://queue.fal.run/fal-ai/fashn/tryon"
	defaultStorageEndpoint = "https://rest.alpha.fal.ai"
	defaultInitialTokens   = 10
	defaultLanguage        = "en"
)

type Config struct {
	BotToken        string        `toml:"botToken"`
	TempDir         string        `toml:"tempDir"`
	DefaultLanguage string        `toml:"defaultLanguage"`
	LogConfig       LogConfig     `toml:"logConfig"`
	FalAI           FalAIConfig   `toml:"falAI"`
	Sheets          SheetsConfig  `toml:"googleSheets"`
	Balance         BalanceConfig `toml:"balance"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type FalAIConfig struct {
	APIKey string `toml:"apiKey"`
	// Queue endpoint of the try-on model, e.g. https://queue.fal.run/fal-ai/fashn/tryon
	TryOnEndpoint string `toml:"tryonEndpoint"`
	// File storage endpoint used to host the two input images.
	StorageEndpoint string `toml:"storageEndpoint"`
}

type SheetsConfig struct {
	CredentialsFile  string `toml:"credentialsFile"`
	UsersSheetID     string `toml:"usersSheetID"`
	AnalyticsSheetID string `toml:"analyticsSheetID"`
}

type BalanceConfig struct {
	// Token grant for users seen for the first time. One token buys one
	// successful generation.
	InitialTokens int `toml:"initialTokens"`
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.FalAI.TryOnEndpoint == "" {
		cfg.FalAI.TryOnEndpoint = defaultTryOnEndpoint
	}
	if cfg.FalAI.StorageEndpoint == "" {
		cfg.FalAI.StorageEndpoint = defaultStorageEndpoint
	}
	if cfg.Balance.InitialTokens == 0 {
		cfg.Balance.InitialTokens = defaultInitialTokens
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = defaultLanguage
	}
	return &cfg, nil
}

func ValidateURL(urlString string) bool {
	if urlString == "" {
		return false
	}
	if _, err := url.Parse(urlString); err != nil {
		return false
	}
	return true
}

func MaskedPrint(str string) string {
	if len(str) <= 4 {
		return strings.Repeat("*", len(str))
	}
	// only show the last 4 characters
	return strings.Repeat("*", len(str)-4) + str[len(str)-4:]
}

func PrintConfig(cfg *Config) {
	fmt.Println()
	fmt.Println("--------------------------------")
	fmt.Println("Config:")
	fmt.Printf("\tBotToken: %s\n", MaskedPrint(cfg.BotToken))
	fmt.Printf("\tTempDir: %s\n", cfg.TempDir)
	fmt.Printf("\tDefaultLanguage: %s\n", cfg.DefaultLanguage)
	fmt.Printf("\tLogConfig: %v\n", cfg.LogConfig)
	fmt.Printf("\tFalAI.APIKey: %s\n", MaskedPrint(cfg.FalAI.APIKey))
	fmt.Printf("\tFalAI.TryOnEndpoint: %s\n", cfg.FalAI.TryOnEndpoint)
	fmt.Printf("\tFalAI.StorageEndpoint: %s\n", cfg.FalAI.StorageEndpoint)
	fmt.Printf("\tSheets.CredentialsFile: %s\n", cfg.Sheets.CredentialsFile)
	fmt.Printf("\tSheets.UsersSheetID: %s\n", cfg.Sheets.UsersSheetID)
	fmt.Printf("\tSheets.AnalyticsSheetID: %s\n", cfg.Sheets.AnalyticsSheetID)
	fmt.Printf("\tBalance: %v\n", cfg.Balance)
	fmt.Println("--------------------------------")
	fmt.Println()
}

// ValidateConfig is the only place where a missing setting is fatal: the bot
// refuses to serve any session without its credentials and sheet ids.
func ValidateConfig(cfg *Config) error {
	PrintConfig(cfg)
	if cfg.BotToken == "" {
		return fmt.Errorf("botToken is required")
	}
	if cfg.FalAI.APIKey == "" {
		return fmt.Errorf("falAI.apiKey is required")
	}
	if !ValidateURL(cfg.FalAI.TryOnEndpoint) {
		return fmt.Errorf("falAI.tryonEndpoint must be a valid URL")
	}
	if !ValidateURL(cfg.FalAI.StorageEndpoint) {
		return fmt.Errorf("falAI.storageEndpoint must be a valid URL")
	}
	if cfg.Sheets.CredentialsFile == "" {
		return fmt.Errorf("googleSheets.credentialsFile is required")
	}
	if cfg.Sheets.UsersSheetID == "" {
		return fmt.Errorf("googleSheets.usersSheetID is required")
	}
	if cfg.Sheets.AnalyticsSheetID == "" {
		return fmt.Errorf("googleSheets.analyticsSheetID is required")
	}
	if cfg.TempDir == "" {
		return fmt.Errorf("tempDir is required")
	}
	if cfg.Balance.InitialTokens < 0 {
		return fmt.Errorf("balance.initialTokens must not be negative")
	}
	if cfg.LogConfig.Level == "" {
		return fmt.Errorf("logConfig.level is required")
	}
	if cfg.LogConfig.Format == "" {
		return fmt.Errorf("logConfig.format is required")
	}
	return nil
}
