package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/robfig/cron/v3"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	ReminderChannel           string        `env:"REMINDER_CHANNEL,default=EMAIL"`
	ReminderAttemptLimit      int           `env:"REMINDER_ATTEMPT_LIMIT,default=3"`
	ReminderDueInterval       time.Duration `env:"REMINDER_DUE_INTERVAL,default=5m"`
	ReminderRetryInterval     time.Duration `env:"REMINDER_RETRY_INTERVAL,default=30m"`
	ReminderBatchLimit        int           `env:"REMINDER_BATCH_LIMIT,default=500"`
	ReminderConcurrency       int           `env:"REMINDER_CONCURRENCY,default=8"`
	ReminderSchedulingEnabled bool          `env:"REMINDER_SCHEDULING_ENABLED,default=true"`
	ReminderStatsCron         string        `env:"REMINDER_STATS_CRON,default=0 * * * *"`
	ReminderCleanupCron       string        `env:"REMINDER_CLEANUP_CRON,default=0 2 * * *"`
	ReminderRetention         time.Duration `env:"REMINDER_RETENTION,default=720h"`

	GatewayTimeout  time.Duration `env:"GATEWAY_TIMEOUT,default=5s"`
	RateLimitPerSec int           `env:"RATE_LIMIT_PER_SEC,default=20"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`

	WebhookURL string `env:"WEBHOOK_URL"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Channel returns the parsed delivery channel. Validate guarantees it parses.
func (c *Config) Channel() domain.Channel {
	ch, _ := domain.ParseChannelFromString(c.ReminderChannel)
	return ch
}

func (c *Config) Validate() error {
	var errs []error

	ch, err := domain.ParseChannelFromString(c.ReminderChannel)
	if err != nil {
		errs = append(errs, fmt.Errorf("REMINDER_CHANNEL: %w", err))
	}

	switch ch {
	case domain.ChannelEmail:
		if strings.TrimSpace(c.SMTPHost) == "" || strings.TrimSpace(c.SMTPFrom) == "" {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM are required for the EMAIL channel"))
		}
	case domain.ChannelSMS:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER are required for the SMS channel"))
		}
	case domain.ChannelWebhook:
		if strings.TrimSpace(c.WebhookURL) == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required for the WEBHOOK channel"))
		}
	}

	if c.ReminderAttemptLimit < 1 {
		errs = append(errs, errors.New("REMINDER_ATTEMPT_LIMIT must be >= 1"))
	}
	if c.ReminderDueInterval <= 0 || c.ReminderRetryInterval <= 0 {
		errs = append(errs, errors.New("REMINDER_DUE_INTERVAL and REMINDER_RETRY_INTERVAL must be positive"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	for name, spec := range map[string]string{
		"REMINDER_STATS_CRON":   c.ReminderStatsCron,
		"REMINDER_CLEANUP_CRON": c.ReminderCleanupCron,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
