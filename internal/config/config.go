package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config carries every tunable for both the API server and the inbox
// listener. A single .env file feeds both processes.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	AppURL      string `env:"APP_URL" envDefault:"http://localhost:8080"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	TicketPrice    decimal.Decimal `env:"TICKET_PRICE" envDefault:"25.00"`
	VenmoHandle    string          `env:"VENMO_HANDLE" envDefault:"@deadarm"`
	CodePrefix     string          `env:"ORDER_CODE_PREFIX" envDefault:"DA25"`
	ReservationTTL time.Duration   `env:"RESERVATION_TTL" envDefault:"30m"`
	ShowTimes      []string        `env:"SHOW_TIMES" envSeparator:"," envDefault:"7PM-8PM,8PM-9PM"`
	SeatsPerShow   int             `env:"SEATS_PER_SHOW" envDefault:"220"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1m"`
	PassBudget   time.Duration `env:"PASS_BUDGET" envDefault:"45s"`

	IMAPHost     string `env:"IMAP_HOST" envDefault:"imap.gmail.com"`
	IMAPPort     int    `env:"IMAP_PORT" envDefault:"993"`
	IMAPUsername string `env:"IMAP_USERNAME"`
	IMAPPassword string `env:"IMAP_PASSWORD"`
	VenmoSender  string `env:"VENMO_SENDER" envDefault:"venmo@venmo.com"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	WebhookSecret string `env:"WEBHOOK_SECRET"`
	CronSecret    string `env:"CRON_SECRET"`
	AdminToken    string `env:"ADMIN_TOKEN"`
}

// Load reads the optional .env file and parses the environment. A missing
// DATABASE_URL is the only universally fatal setting; process-specific
// requirements live in the Validate* methods.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	err := env.ParseWithFuncs(cfg, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(decimal.Decimal{}): func(v string) (interface{}, error) {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("invalid decimal %q: %w", v, err)
			}
			return d, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// ValidateListener checks the settings the inbox listener cannot run
// without. Missing IMAP credentials refuse startup.
func (c *Config) ValidateListener() error {
	if c.IMAPUsername == "" || c.IMAPPassword == "" {
		return errors.New("IMAP_USERNAME and IMAP_PASSWORD are required for the listener")
	}
	return nil
}
