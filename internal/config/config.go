package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/ratelimit"
)

const (
	MailTransportSMTP = "smtp"
	MailTransportHTTP = "http"
	MailTransportLog  = "log"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	Timezone            string        `env:"TIMEZONE,default=Local"`
	PollSchedule        string        `env:"POLL_SCHEDULE,default=@every 1m"`
	DeliveryTimeout     time.Duration `env:"DELIVERY_TIMEOUT,default=30s"`
	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY,default=4"`
	AttendanceLateAfter string        `env:"ATTENDANCE_LATE_AFTER,default=08:15"`

	MailTransport       string `env:"MAIL_TRANSPORT,default=smtp"`
	MailFrom            string `env:"MAIL_FROM"`
	SMTPHost            string `env:"SMTP_HOST,default=smtp.office365.com"`
	SMTPPort            int    `env:"SMTP_PORT,default=587"`
	SMTPUsername        string `env:"SMTP_USERNAME"`
	SMTPPassword        string `env:"SMTP_PASSWORD"`
	SMTPAllowInsecure   bool   `env:"SMTP_ALLOW_INSECURE,default=false"`
	MailAPIURL          string `env:"MAIL_API_URL"`
	MailAPIToken        string `env:"MAIL_API_TOKEN"`
	MailRelayPerMinute  int    `env:"MAIL_RELAY_PER_MINUTE,default=30"`
	MailRelayPerDay     int    `env:"MAIL_RELAY_PER_DAY,default=10000"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.MailTransport = strings.ToLower(strings.TrimSpace(cfg.MailTransport))
	if strings.TrimSpace(cfg.MailFrom) == "" {
		cfg.MailFrom = cfg.SMTPUsername
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.MailTransport {
	case MailTransportSMTP:
		if c.SMTPHost == "" || c.SMTPPort <= 0 {
			return fmt.Errorf("invalid config: SMTP_HOST and SMTP_PORT are required for smtp transport")
		}
		if c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("invalid config: SMTP_USERNAME and SMTP_PASSWORD are required for smtp transport")
		}
	case MailTransportHTTP:
		if strings.TrimSpace(c.MailAPIURL) == "" {
			return fmt.Errorf("invalid config: MAIL_API_URL is required for http transport")
		}
	case MailTransportLog:
	default:
		return fmt.Errorf("invalid config: unknown MAIL_TRANSPORT %q", c.MailTransport)
	}

	if c.MailRelayPerMinute <= 0 {
		return fmt.Errorf("invalid config: MAIL_RELAY_PER_MINUTE must be positive")
	}
	if c.MailRelayPerDay < 0 {
		return fmt.Errorf("invalid config: MAIL_RELAY_PER_DAY must not be negative")
	}
	if _, _, err := c.MailRelay(); err != nil {
		return err
	}

	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("invalid config: DELIVERY_TIMEOUT must be positive")
	}
	if c.DispatchConcurrency <= 0 {
		return fmt.Errorf("invalid config: DISPATCH_CONCURRENCY must be positive")
	}
	if strings.TrimSpace(c.PollSchedule) == "" {
		return fmt.Errorf("invalid config: POLL_SCHEDULE is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.LateAfter(); err != nil {
		return err
	}
	return nil
}

// MailRelay identifies the relay whose quota outbound reports share. The
// log transport has no relay and reports false.
func (c *Config) MailRelay() (ratelimit.Relay, bool, error) {
	switch c.MailTransport {
	case MailTransportSMTP:
		return ratelimit.Relay{Transport: MailTransportSMTP, Host: c.SMTPHost}, true, nil
	case MailTransportHTTP:
		u, err := url.Parse(strings.TrimSpace(c.MailAPIURL))
		if err != nil || u.Host == "" {
			return ratelimit.Relay{}, false, fmt.Errorf("invalid config: MAIL_API_URL %q is not an absolute url", c.MailAPIURL)
		}
		return ratelimit.Relay{Transport: MailTransportHTTP, Host: u.Host}, true, nil
	default:
		return ratelimit.Relay{}, false, nil
	}
}

// MailQuota is the relay allowance from MAIL_RELAY_PER_MINUTE and
// MAIL_RELAY_PER_DAY.
func (c *Config) MailQuota() ratelimit.Quota {
	return ratelimit.Quota{PerMinute: c.MailRelayPerMinute, PerDay: c.MailRelayPerDay}
}

// LateAfter parses ATTENDANCE_LATE_AFTER.
func (c *Config) LateAfter() (domain.TimeOfDay, error) {
	t, err := domain.ValidateSendTime(c.AttendanceLateAfter)
	if err != nil {
		return domain.TimeOfDay{}, fmt.Errorf("invalid config: ATTENDANCE_LATE_AFTER: %w", err)
	}
	return t, nil
}

// Location resolves TIMEZONE; "Local" and empty mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid config: TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}
