// Package config loads bot configuration from the environment. In prod mode
// the secrets are pulled from AWS SSM instead of plain env vars.
package config

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const encryptionKeySize = 32

type (
	Store struct {
		Backend   string `default:"sqlite" validate:"oneof=sqlite redis"`
		DBPath    string `envconfig:"DB_PATH" default:"school-diary.db"`
		RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	}

	Diary struct {
		BaseURL   string  `envconfig:"BASE_URL" default:"https://school-api.mos.ru" validate:"url"`
		RateLimit float64 `envconfig:"RATE_LIMIT" default:"5"`
	}

	Web struct {
		Addr      string  `default:":8080"`
		RateLimit float64 `envconfig:"RATE_LIMIT" default:"25"`
	}

	Session struct {
		TTL           time.Duration `default:"30m"`
		EvictInterval time.Duration `envconfig:"EVICT_INTERVAL" default:"5m"`
	}

	Bot struct {
		Dev            bool    `default:"false"`
		TelegramToken  string  `envconfig:"TELEGRAM_TOKEN" required:"true" validate:"required"`
		EncryptionKey  string  `envconfig:"ENCRYPTION_KEY" required:"true" validate:"required,base64"`
		AllowedChatIDs []int64 `envconfig:"ALLOWED_CHAT_IDS"`
		Store          Store
		Diary          Diary
		Web            Web
		Session        Session
	}
)

// DecodeEncryptionKey returns the raw 32-byte AES key.
func (b *Bot) DecodeEncryptionKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", encryptionKeySize, len(key))
	}
	return key, nil
}

func GetBot() (*Bot, error) {
	res := &Bot{}
	if err := envconfig.Process("BOT", res); err != nil {
		return nil, fmt.Errorf("parse bot environment: %w", err)
	}

	if !res.Dev {
		if err := setBotProdConfig(res); err != nil {
			return nil, fmt.Errorf("set bot prod config: %w", err)
		}
	}

	return validateBot(res)
}

func validateBot(conf *Bot) (*Bot, error) {
	if err := validator.New().Struct(conf); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	errs := make([]string, 0)
	if _, err := conf.DecodeEncryptionKey(); err != nil {
		errs = append(errs, err.Error())
	}
	if conf.Store.Backend == "sqlite" && conf.Store.DBPath == "" {
		errs = append(errs, "db path is required for sqlite backend")
	}
	if conf.Store.Backend == "redis" && conf.Store.RedisAddr == "" {
		errs = append(errs, "redis addr is required for redis backend")
	}
	if conf.Diary.RateLimit <= 0 {
		errs = append(errs, "diary rate limit must be positive")
	}
	if conf.Session.TTL <= 0 {
		errs = append(errs, "session ttl must be positive")
	}
	if conf.Session.EvictInterval <= 0 {
		errs = append(errs, "session evict interval must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(errs, ", "))
	}

	return conf, nil
}

func setBotProdConfig(target *Bot) error {
	parameters, err := FetchAWSParams(
		"/school-diary-bot/prod/telegram-token",
		"/school-diary-bot/prod/encryption-key",
		"/school-diary-bot/prod/allowed-chat-ids",
	)
	if err != nil {
		return fmt.Errorf("get parameters: %w", err)
	}

	for name, value := range parameters {
		switch name {
		case "/school-diary-bot/prod/telegram-token":
			target.TelegramToken = value
		case "/school-diary-bot/prod/encryption-key":
			target.EncryptionKey = value
		case "/school-diary-bot/prod/allowed-chat-ids":
			target.AllowedChatIDs, err = parseChatIDs(value)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func parseChatIDs(chatIDsStr string) ([]int64, error) {
	if chatIDsStr == "" {
		return nil, nil
	}

	chatIDStrings := strings.Split(chatIDsStr, ",")
	chatIDs := make([]int64, 0, len(chatIDStrings))
	for _, chatIDString := range chatIDStrings {
		chatID, err := strconv.ParseInt(strings.TrimSpace(chatIDString), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse chat IDs: invalid chat ID %s: %w", chatIDString, err)
		}
		chatIDs = append(chatIDs, chatID)
	}

	return chatIDs, nil
}
