package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	GameClientPath string
	BotUsername    string
	GuildChannel   string

	RedisURL string

	ListenAddr    string
	WebhookSecret string

	DiscordWebhookURL       string
	DiscordWebhookURLOnline string

	LockFilePath string

	ConnectTimeout  time.Duration
	SendDelay       time.Duration
	RelayChunkDelay time.Duration

	PresencePeriod  time.Duration
	PresenceSettle  time.Duration
	PresenceBackoff time.Duration

	MessageDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		GuildChannel:    "Guild",
		ListenAddr:      ":5000",
		LockFilePath:    filepath.Join("data", "bridgebot.lock"),
		ConnectTimeout:  60 * time.Second,
		SendDelay:       100 * time.Millisecond,
		RelayChunkDelay: 500 * time.Millisecond,
		PresencePeriod:  60 * time.Second,
		PresenceSettle:  3 * time.Second,
		PresenceBackoff: 30 * time.Second,
	}

	cfg.GameClientPath = strings.TrimSpace(os.Getenv("GAME_CLIENT_PATH"))
	cfg.BotUsername = strings.TrimSpace(os.Getenv("BOT_USERNAME"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.WebhookSecret = strings.TrimSpace(os.Getenv("WEBHOOK_SECRET"))
	cfg.DiscordWebhookURL = strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL"))
	cfg.DiscordWebhookURLOnline = strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL_ONLINE"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := strings.TrimSpace(os.Getenv("GUILD_CHANNEL")); v != "" {
		cfg.GuildChannel = v
	}
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("LOCK_FILE")); v != "" {
		cfg.LockFilePath = v
	}
	if v := strings.TrimSpace(os.Getenv("CONNECT_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ConnectTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEND_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("RELAY_CHUNK_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RelayChunkDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("PRESENCE_PERIOD_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PresencePeriod = time.Duration(n) * time.Second
		}
	}

	if cfg.GameClientPath == "" {
		return nil, errors.New("GAME_CLIENT_PATH is required")
	}
	if cfg.BotUsername == "" {
		return nil, errors.New("BOT_USERNAME is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.DiscordWebhookURL == "" {
		return nil, errors.New("DISCORD_WEBHOOK_URL is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("WEBHOOK_SECRET is required")
	}

	return cfg, nil
}
