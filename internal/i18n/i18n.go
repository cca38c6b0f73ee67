package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed all:locales
var localeFS embed.FS

// Manager holds the message bundle and a localizer per loaded language.
type Manager struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	logger          *zap.Logger
	localizers      map[string]*i18n.Localizer
}

// NewManager loads every locales/active.*.toml file into a bundle rooted at
// the default language.
func NewManager(defaultLang string, logger *zap.Logger) (*Manager, error) {
	defaultTag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language tag %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	m := &Manager{
		bundle:          bundle,
		defaultLanguage: defaultTag,
		logger:          logger.Named("i18n"),
		localizers:      make(map[string]*i18n.Localizer),
	}

	if err := m.loadTranslations(); err != nil {
		return nil, err
	}

	if _, ok := m.localizers[defaultLang]; !ok {
		m.localizers[defaultLang] = i18n.NewLocalizer(m.bundle, defaultLang)
		m.logger.Warn("Default language not found in locale files, added manually", zap.String("lang", defaultLang))
	}

	m.logger.Info("i18n manager initialized",
		zap.String("default_language", defaultLang),
		zap.Int("loaded_languages", len(m.localizers)),
	)
	return m, nil
}

func (m *Manager) loadTranslations() error {
	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return fmt.Errorf("failed to read embedded locales directory: %w", err)
	}

	loaded := 0
	for _, file := range files {
		fileName := file.Name()
		if file.IsDir() || filepath.Ext(fileName) != ".toml" {
			continue
		}
		if _, err := m.bundle.LoadMessageFileFS(localeFS, "locales/"+fileName); err != nil {
			m.logger.Warn("Failed to load translation file", zap.String("file", fileName), zap.Error(err))
			continue
		}
		loaded++

		// Filenames look like active.en.toml; the language code is the last
		// part before the extension.
		baseName := strings.TrimSuffix(fileName, ".toml")
		parts := strings.Split(baseName, ".")
		langCode := parts[len(parts)-1]
		if _, err := language.Parse(langCode); err != nil {
			m.logger.Warn("Cannot parse language code from filename", zap.String("file", fileName), zap.Error(err))
			continue
		}
		m.localizers[langCode] = i18n.NewLocalizer(m.bundle, langCode)
	}

	if loaded == 0 {
		return errors.New("no translation files loaded")
	}
	return nil
}

// T translates a message key. A nil lang falls back to the default language.
// args are alternating template key/value pairs.
func (m *Manager) T(lang *string, key string, args ...interface{}) string {
	langCode := m.defaultLanguage.String()
	if lang != nil && *lang != "" {
		langCode = *lang
	}

	localizer, ok := m.localizers[langCode]
	if !ok {
		localizer = m.localizers[m.defaultLanguage.String()]
		if localizer == nil {
			return key
		}
	}

	cfg := &i18n.LocalizeConfig{MessageID: key}
	if len(args) > 0 {
		templateData := make(map[string]interface{})
		for i := 0; i+1 < len(args); i += 2 {
			name, ok := args[i].(string)
			if !ok {
				m.logger.Warn("Template key is not a string", zap.String("message_id", key))
				continue
			}
			templateData[name] = args[i+1]
		}
		cfg.TemplateData = templateData
	}

	localized, err := localizer.Localize(cfg)
	if err != nil {
		m.logger.Error("Failed to localize message", zap.String("message_id", key), zap.String("lang", langCode), zap.Error(err))
		return key
	}
	return localized
}
