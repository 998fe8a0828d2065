// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"business-suite-billing/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"` // public URL used to build callback/webhook URLs
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Provider      string        `yaml:"provider"` // only "mercadopago" for now
	AccessToken   string        `yaml:"access_token"`
	WebhookSecret string        `yaml:"webhook_secret"` // empty disables signature checks
	Sandbox       bool          `yaml:"sandbox"`
	Timeout       time.Duration `yaml:"timeout"` // per provider call
}

type SessionConfig struct {
	HMACSecret   string        `yaml:"hmac_secret"`
	CookieName   string        `yaml:"cookie_name"`
	CookieDomain string        `yaml:"cookie_domain"`
	Secure       bool          `yaml:"secure"`
	TTL          time.Duration `yaml:"ttl"`
}

type EntitlementConfig struct {
	TrialDays int `yaml:"trial_days"`
}

type AdminConfig struct {
	UserIDs []string `yaml:"user_ids"` // identity allowlist for admin surfaces
	APIKey  string   `yaml:"api_key"`  // bearer token for the codes API
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Payment     PaymentConfig     `yaml:"payment"`
	Session     SessionConfig     `yaml:"session"`
	Entitlement EntitlementConfig `yaml:"entitlement"`
	Admin       AdminConfig       `yaml:"admin"`
	Plans       []model.Plan      `yaml:"plans"`

	Runtime RuntimeConfig `yaml:"-"`
}

// PlanByID looks up a plan in the server-side table. Client-submitted
// prices are never consulted.
func (c *Config) PlanByID(id string) (*model.Plan, bool) {
	for i := range c.Plans {
		if c.Plans[i].ID == id {
			return &c.Plans[i], true
		}
	}
	return nil, false
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "mercadopago"
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 10 * time.Second
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "session"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 30 * 24 * time.Hour
	}
	if cfg.Entitlement.TrialDays <= 0 {
		cfg.Entitlement.TrialDays = 14
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if len(cfg.Plans) == 0 {
		cfg.Plans = DefaultPlans()
	}

	// Minimal validation. The payment access token is deliberately NOT
	// required here: its absence is a ConfigurationError surfaced at
	// intent-creation time so the rest of the app keeps serving.
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Session.HMACSecret == "" {
		return nil, errors.New("session.hmac_secret is required")
	}
	for i := range cfg.Plans {
		p := cfg.Plans[i]
		if p.ID == "" || p.Price <= 0 || p.Duration.IsZero() {
			return nil, fmt.Errorf("plans[%d]: id, price and duration are required", i)
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// DefaultPlans mirrors the catalog sold through checkout: one month,
// three months, one year.
func DefaultPlans() []model.Plan {
	return []model.Plan{
		{ID: "mensual", Title: "Plan Mensual", Price: 9_900_00, Currency: "ARS", Duration: model.PlanDuration{Months: 1}},
		{ID: "trimestral", Title: "Plan Trimestral", Price: 26_900_00, Currency: "ARS", Duration: model.PlanDuration{Months: 3}},
		{ID: "anual", Title: "Plan Anual", Price: 89_900_00, Currency: "ARS", Duration: model.PlanDuration{Years: 1}},
	}
}
