package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vipbot/internal/models"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config represents the complete configuration
type Config struct {
	Bot            BotConfig              `toml:"bot"`
	OperatorID     string                 `toml:"operator_id" validate:"required"`
	Ledger         LedgerConfig           `toml:"ledger"`
	Sweep          SweepConfig            `toml:"sweep"`
	Intake         IntakeConfig           `toml:"intake"`
	Redis          RedisConfig            `toml:"redis"`
	Archive        ArchiveConfig          `toml:"archive"`
	HTTP           HTTPConfig             `toml:"http"`
	Log            LogConfig              `toml:"log"`
	Notify         NotifyConfig           `toml:"notify"`
	PaymentMethods []models.PaymentMethod `toml:"payment_methods" validate:"dive"`
}

type BotConfig struct {
	Token      string `toml:"token" validate:"required"`
	Mode       string `toml:"mode" validate:"oneof=polling webhook"`
	WebhookURL string `toml:"webhook_url" validate:"required_if=Mode webhook"`

	// WebhookSecret is checked against the secret token header of every webhook
	// call. Without it anyone reaching the URL could post updates as the operator.
	WebhookSecret string `toml:"webhook_secret" validate:"required_if=Mode webhook"`
}

type LedgerConfig struct {
	Path string `toml:"path" validate:"required"`
}

type SweepConfig struct {
	Interval          string `toml:"interval"`
	Report            bool   `toml:"report"`
	NotifySubscribers bool   `toml:"notify_subscribers"`
}

type IntakeConfig struct {
	TTL           string `toml:"ttl"`
	EvictInterval string `toml:"evict_interval"`
	Backend       string `toml:"backend" validate:"oneof=memory redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type ArchiveConfig struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint" validate:"required_if=Enabled true"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket" validate:"required_if=Enabled true"`
}

type HTTPConfig struct {
	Port int `toml:"port" validate:"min=1,max=65535"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type NotifyConfig struct {
	Grant bool `toml:"grant"`
}

// Defaults returns the configuration used when nothing overrides a key.
func Defaults() *Config {
	return &Config{
		Bot:    BotConfig{Mode: "polling"},
		Ledger: LedgerConfig{Path: "vip_data.json"},
		Sweep:  SweepConfig{Interval: "24h", Report: true},
		Intake: IntakeConfig{TTL: "24h", EvictInterval: "10m", Backend: "memory"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Archive: ArchiveConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "payment-proofs",
		},
		HTTP:   HTTPConfig{Port: 10000},
		Log:    LogConfig{Level: "info", Format: "auto"},
		Notify: NotifyConfig{Grant: true},
	}
}

// Load reads .env (if present), then the TOML file at path (if non-empty), then
// environment overrides. It does not validate; call Validate before serving.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found")
	}

	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Bot.Token, "BOT_TOKEN")
	setString(&cfg.Bot.Mode, "BOT_MODE")
	setString(&cfg.Bot.WebhookURL, "WEBHOOK_URL")
	setString(&cfg.Bot.WebhookSecret, "WEBHOOK_SECRET")
	setString(&cfg.OperatorID, "OPERATOR_ID")
	setString(&cfg.Ledger.Path, "LEDGER_PATH")
	setString(&cfg.Sweep.Interval, "SWEEP_INTERVAL")
	setString(&cfg.Intake.TTL, "INTAKE_TTL")
	setString(&cfg.Intake.Backend, "INTAKE_BACKEND")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Archive.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Archive.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Archive.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Archive.Bucket, "ARCHIVE_BUCKET")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	for key, target := range map[string]*bool{
		"SWEEP_REPORT":             &cfg.Sweep.Report,
		"SWEEP_NOTIFY_SUBSCRIBERS": &cfg.Sweep.NotifySubscribers,
		"ARCHIVE_ENABLED":          &cfg.Archive.Enabled,
		"MINIO_USE_SSL":            &cfg.Archive.UseSSL,
		"GRANT_NOTIFY":             &cfg.Notify.Grant,
	} {
		if err := setBool(target, key); err != nil {
			return err
		}
	}

	for key, target := range map[string]*int{
		"REDIS_DB": &cfg.Redis.DB,
		"PORT":     &cfg.HTTP.Port,
	} {
		if err := setInt(target, key); err != nil {
			return err
		}
	}

	if raw := os.Getenv("PAYMENT_METHODS"); raw != "" {
		methods, err := ParsePaymentMethods(raw)
		if err != nil {
			return err
		}
		cfg.PaymentMethods = methods
	}
	return nil
}

func setString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func setBool(target *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	*target = b
	return nil
}

func setInt(target *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*target = n
	return nil
}

// ParsePaymentMethods parses "id|label|destination;id|label|destination".
func ParsePaymentMethods(raw string) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "|", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("PAYMENT_METHODS: %q must be id|label|destination", item)
		}
		methods = append(methods, models.PaymentMethod{
			ID:          strings.TrimSpace(parts[0]),
			Label:       strings.TrimSpace(parts[1]),
			Destination: strings.TrimSpace(parts[2]),
		})
	}
	return methods, nil
}

// Validate checks everything needed to run the bot.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Bot.WebhookURL != "" {
		if err := validate.Var(c.Bot.WebhookURL, "url"); err != nil {
			return fmt.Errorf("invalid configuration: bot.webhook_url must be a URL")
		}
	}
	for _, d := range []struct{ name, value string }{
		{"sweep.interval", c.Sweep.Interval},
		{"intake.ttl", c.Intake.TTL},
		{"intake.evict_interval", c.Intake.EvictInterval},
	} {
		if _, err := parseDuration(d.value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", d.name, err)
		}
	}
	if d, _ := parseDuration(c.Sweep.Interval); d == 0 {
		return fmt.Errorf("invalid configuration: sweep.interval must be greater than zero")
	}

	seen := make(map[string]bool, len(c.PaymentMethods))
	for _, m := range c.PaymentMethods {
		if seen[m.ID] {
			return fmt.Errorf("invalid configuration: duplicate payment method %q", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// SweepInterval returns the parsed sweep interval, defaulting to 24h.
func (c *Config) SweepInterval() time.Duration {
	return durationOr(c.Sweep.Interval, 24*time.Hour)
}

// IntakeTTL returns how long an untouched intake survives; zero disables expiry.
func (c *Config) IntakeTTL() time.Duration {
	return durationOr(c.Intake.TTL, 24*time.Hour)
}

func (c *Config) EvictInterval() time.Duration {
	return durationOr(c.Intake.EvictInterval, 10*time.Minute)
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := parseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
