package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// ConfigError reports one invalid or missing setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Credential is one OpenSky client id/secret pair.
type Credential struct {
	ID     string
	Secret string
}

// BoundingBox limits the radar area.
type BoundingBox struct {
	LatMin float64 `env:"BBOX_LAT_MIN" validate:"gte=-90,lte=90,ltfield=LatMax"`
	LatMax float64 `env:"BBOX_LAT_MAX" validate:"gte=-90,lte=90"`
	LonMin float64 `env:"BBOX_LON_MIN" validate:"gte=-180,lte=180,ltfield=LonMax"`
	LonMax float64 `env:"BBOX_LON_MAX" validate:"gte=-180,lte=180"`
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr          string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel          string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat         string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	ScheduleInterval  time.Duration `env:"SCHEDULE_INTERVAL" validate:"gt=0"`
	FetchTimeout      time.Duration `env:"FETCH_TIMEOUT" validate:"gt=0,ltefield=ScheduleInterval"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" validate:"gt=0"`

	// Grid digits per axis used for encoding and for publishing.
	GridPrecision        int `env:"GRID_PRECISION" validate:"gte=0,lte=5"`
	GridDisplayPrecision int `env:"GRID_DISPLAY_PRECISION" validate:"gte=0,ltefield=GridPrecision"`

	// OpenSky radar source.
	OpenSkyAPIURL      string       `env:"OPENSKY_API_URL" validate:"required,url"`
	OpenSkyTokenURL    string       `env:"OPENSKY_TOKEN_URL" validate:"required,url"`
	OpenSkyCredentials []Credential `env:"OPENSKY_CREDENTIALS"`
	OpenSkyQuotaMax    int          `env:"OPENSKY_QUOTA_MAX" validate:"gte=1"`
	BoundingBox        BoundingBox  `env:"BBOX"`

	// Other sources, disabled when their URL is empty.
	MarineAPIURL    string `env:"MARINE_API_URL" validate:"omitempty,url"`
	MarineToken     string `env:"MARINE_TOKEN"`
	PracticeAPIURL  string `env:"PRACTICE_API_URL" validate:"omitempty,url"`
	GeneratedAPIURL string `env:"GENERATED_API_URL" validate:"omitempty,url"`

	BreakerTimeout time.Duration `env:"BREAKER_TIMEOUT" validate:"gt=0"`

	// Snapshot sinks, disabled when empty.
	CachePath          string   `env:"CACHE_PATH"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS"`
	KafkaSnapshotTopic string   `env:"KAFKA_SNAPSHOT_TOPIC"`

	// Mutual TLS for the read API. Clients must present a certificate
	// signed by MTLSCACert.
	MTLSEnabled    bool   `env:"MTLS_ENABLED"`
	MTLSCACert     string `env:"MTLS_CA_CERT" validate:"required_if=MTLSEnabled true,omitempty,file"`
	MTLSServerCert string `env:"MTLS_SERVER_CERT" validate:"required_if=MTLSEnabled true,omitempty,file"`
	MTLSServerKey  string `env:"MTLS_SERVER_KEY" validate:"required_if=MTLSEnabled true,omitempty,file"`
}

// RadarEnabled reports whether any OpenSky credential is configured.
func (c *Config) RadarEnabled() bool { return len(c.OpenSkyCredentials) > 0 }

// Load reads configuration from environment variables, applying defaults
// where unset. Every failure is a *ConfigError.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, &ConfigError{Field: "SHUTDOWN_TIMEOUT", Reason: err.Error()}
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout:   shutdownTimeout,
		ScheduleInterval:  p.duration("SCHEDULE_INTERVAL", "30s"),
		FetchTimeout:      p.duration("FETCH_TIMEOUT", "25s"),
		HTTPClientTimeout: p.duration("HTTP_CLIENT_TIMEOUT", "10s"),

		GridPrecision:        p.integer("GRID_PRECISION", "5"),
		GridDisplayPrecision: p.integer("GRID_DISPLAY_PRECISION", "1"),

		OpenSkyAPIURL:      sharedcfg.EnvOrDefault("OPENSKY_API_URL", "https://opensky-network.org/api/states/all"),
		OpenSkyTokenURL:    sharedcfg.EnvOrDefault("OPENSKY_TOKEN_URL", "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"),
		OpenSkyCredentials: p.credentials(),
		OpenSkyQuotaMax:    p.integer("OPENSKY_QUOTA_MAX", "1"),
		BoundingBox: BoundingBox{
			LatMin: p.float("BBOX_LAT_MIN", "59.5"),
			LatMax: p.float("BBOX_LAT_MAX", "70.0"),
			LonMin: p.float("BBOX_LON_MIN", "19.5"),
			LonMax: p.float("BBOX_LON_MAX", "31.5"),
		},

		MarineAPIURL:    os.Getenv("MARINE_API_URL"),
		MarineToken:     os.Getenv("MARINE_TOKEN"),
		PracticeAPIURL:  os.Getenv("PRACTICE_API_URL"),
		GeneratedAPIURL: os.Getenv("GENERATED_API_URL"),

		BreakerTimeout: p.duration("BREAKER_TIMEOUT", "2m"),

		CachePath:          os.Getenv("CACHE_PATH"),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: os.Getenv("KAFKA_SNAPSHOT_TOPIC"),

		MTLSEnabled:    p.boolean("MTLS_ENABLED", "false"),
		MTLSCACert:     os.Getenv("MTLS_CA_CERT"),
		MTLSServerCert: os.Getenv("MTLS_SERVER_CERT"),
		MTLSServerKey:  os.Getenv("MTLS_SERVER_KEY"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

// newValidator reports struct field errors under their environment
// variable names.
func newValidator() func(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	return func(cfg *Config) error {
		if err := v.Struct(cfg); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fe := verrs[0]
				return &ConfigError{Field: fe.Field(), Reason: reason(fe)}
			}
			return &ConfigError{Field: "config", Reason: err.Error()}
		}

		if !cfg.RadarEnabled() && cfg.MarineAPIURL == "" && cfg.PracticeAPIURL == "" && cfg.GeneratedAPIURL == "" {
			return &ConfigError{
				Field:  "sources",
				Reason: "at least one of OPENSKY_CREDENTIALS, MARINE_API_URL, PRACTICE_API_URL, GENERATED_API_URL is required",
			}
		}
		if cfg.KafkaSnapshotTopic != "" && len(cfg.KafkaBrokers) == 0 {
			return &ConfigError{Field: "KAFKA_BROKERS", Reason: "is required when KAFKA_SNAPSHOT_TOPIC is set"}
		}
		return nil
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when MTLS_ENABLED is true"
	case "file":
		return fmt.Sprintf("%q is not a readable file", fe.Value())
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("%v is not one of [%s]", fe.Value(), fe.Param())
	case "ltefield", "ltfield":
		return fmt.Sprintf("must not exceed %s", fe.Param())
	default:
		return fmt.Sprintf("%v fails %s=%s", fe.Value(), fe.Tag(), fe.Param())
	}
}

// parser reads typed environment values, keeping the first failure.
type parser struct {
	err error
}

func (p *parser) fail(field, reason string) {
	if p.err == nil {
		p.err = &ConfigError{Field: field, Reason: reason}
	}
}

func (p *parser) duration(key, def string) time.Duration {
	raw := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, fmt.Sprintf("%q is not a duration", raw))
	}
	return d
}

func (p *parser) integer(key, def string) int {
	raw := sharedcfg.EnvOrDefault(key, def)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, fmt.Sprintf("%q is not an integer", raw))
	}
	return n
}

func (p *parser) boolean(key, def string) bool {
	raw := sharedcfg.EnvOrDefault(key, def)
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, fmt.Sprintf("%q is not a boolean", raw))
	}
	return b
}

func (p *parser) float(key, def string) float64 {
	raw := sharedcfg.EnvOrDefault(key, def)
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.fail(key, fmt.Sprintf("%q is not a number", raw))
	}
	return f
}

// legacyCredentialSuffixes are the numbered single-key variables still
// accepted alongside OPENSKY_CREDENTIALS.
var legacyCredentialSuffixes = []string{"", "_1", "_2", "_3"}

// credentials builds the OpenSky pool from OPENSKY_CREDENTIALS
// ("id:secret,id:secret") followed by the legacy OPENSKY_CLIENT_ID[_n] /
// OPENSKY_CLIENT_SECRET[_n] pairs. Repeated ids keep their first position.
func (p *parser) credentials() []Credential {
	var creds []Credential
	seen := map[string]bool{}
	add := func(field, id, secret string) {
		id, secret = strings.TrimSpace(id), strings.TrimSpace(secret)
		if id == "" || secret == "" {
			p.fail(field, "client id and secret are both required")
			return
		}
		if seen[id] {
			return
		}
		seen[id] = true
		creds = append(creds, Credential{ID: id, Secret: secret})
	}

	if raw := strings.TrimSpace(os.Getenv("OPENSKY_CREDENTIALS")); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			id, secret, ok := strings.Cut(pair, ":")
			if !ok {
				p.fail("OPENSKY_CREDENTIALS", "entries must be id:secret")
				return nil
			}
			add("OPENSKY_CREDENTIALS", id, secret)
		}
	}

	for _, suffix := range legacyCredentialSuffixes {
		id := os.Getenv("OPENSKY_CLIENT_ID" + suffix)
		secret := os.Getenv("OPENSKY_CLIENT_SECRET" + suffix)
		if id == "" && secret == "" {
			continue
		}
		add("OPENSKY_CLIENT_ID"+suffix, id, secret)
	}
	return creds
}
