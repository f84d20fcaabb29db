package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DBPath    string `envconfig:"DB_PATH" default:"./data/sobre.db"`
	DefaultTZ string `envconfig:"DEFAULT_TZ" default:"UTC"`
	Platform  string `envconfig:"PLATFORM" default:"ios"`   // ios|android
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	APIToken  string `envconfig:"API_TOKEN"` // bearer token for /v1 routes; empty leaves them open

	// DeviceKey identifies this install to the push registry.
	DeviceKey    string `envconfig:"DEVICE_KEY" default:"local"`
	KVNamespace  string `envconfig:"KV_NAMESPACE" default:"sobre"`
	NotifyAnswer string `envconfig:"NOTIFY_PROMPT_ANSWER" default:"granted"` // answer given when prompted: granted|denied

	DispatchInterval time.Duration `envconfig:"DISPATCH_INTERVAL" default:"30s"`
	PendingMaxAge    time.Duration `envconfig:"PENDING_MAX_AGE" default:"15s"`

	BotToken        string `envconfig:"BOT_TOKEN"` // optional; enables the Telegram provider
	ExpoPushURL     string `envconfig:"EXPO_PUSH_URL" default:"https://exp.host/--/api/v2/push/send"`
	ExpoAccessToken string `envconfig:"EXPO_ACCESS_TOKEN"`

	CopyFile string `envconfig:"REMINDER_COPY_FILE"` // optional YAML with reminder title/body
}

// Copy is the reminder text, overridable from CopyFile.
type Copy struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Load reads an optional .env file, then environment variables into Config.
func Load() (Config, error) {
	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Platform {
	case "ios", "android":
	default:
		return fmt.Errorf("PLATFORM must be ios or android, got %q", c.Platform)
	}
	switch c.NotifyAnswer {
	case "granted", "denied":
	default:
		return fmt.Errorf("NOTIFY_PROMPT_ANSWER must be granted or denied, got %q", c.NotifyAnswer)
	}
	if c.PendingMaxAge <= 0 {
		return errors.New("PENDING_MAX_AGE must be positive")
	}
	if _, err := time.LoadLocation(c.DefaultTZ); err != nil {
		return fmt.Errorf("DEFAULT_TZ: %w", err)
	}
	return nil
}

// LoadCopy reads the reminder copy file. An empty path returns a zero Copy,
// which callers treat as "use the built-in text".
func LoadCopy(path string) (Copy, error) {
	if path == "" {
		return Copy{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Copy{}, fmt.Errorf("read copy file: %w", err)
	}
	var c Copy
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Copy{}, fmt.Errorf("parse copy file: %w", err)
	}
	return c, nil
}
