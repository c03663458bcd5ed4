package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/example/comms-gateway/internal/providers"
	"github.com/example/comms-gateway/internal/util"
)

// Default provider endpoints. Each can be overridden through the environment,
// which is mostly useful for pointing the gateway at a local mock.
const (
	DefaultConversationBaseURL = "https://conversations.twilio.com/v1"
	DefaultMediaBaseURL        = "https://mcs.us1.twilio.com/v1"
	DefaultSMSBaseURL          = "https://api.twilio.com"
	DefaultVoiceBaseURL        = "https://api.singapore.us1.twilio.com/2010-04-01"
	DefaultEmailBaseURL        = "https://api.sendgrid.com/v3"
)

// Config captures all runtime configuration for the gateway.
type Config struct {
	App       AppConfig
	Providers ProviderConfig
	Media     MediaConfig
	Timeouts  TimeoutConfig
	Kafka     KafkaConfig
	Metrics   MetricsConfig
	Webhooks  WebhookConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// TwilioConfig stores the account credentials shared by the conversation,
// SMS and voice clients.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
}

// SendGridConfig stores the bearer token used by the email client.
type SendGridConfig struct {
	APIKey string
}

// BaseURLConfig lists the provider endpoints.
type BaseURLConfig struct {
	Conversation string
	Media        string
	SMS          string
	Voice        string
	Email        string
}

// ProviderConfig wraps configuration for external providers.
type ProviderConfig struct {
	Twilio       TwilioConfig
	SendGrid     SendGridConfig
	BaseURLs     BaseURLConfig
	MaxBodyBytes int64
}

// MediaConfig tunes the streaming upload path.
type MediaConfig struct {
	ChunkBytes           int
	MaxConcurrentUploads int
}

// TimeoutConfig contains timeout thresholds for outbound providers. Zero
// disables the client timeout.
type TimeoutConfig struct {
	ProviderTimeoutSeconds int
}

// KafkaConfig enables publishing of inbound webhook callbacks. An empty broker
// list disables the publisher.
type KafkaConfig struct {
	Brokers      []string
	WebhookTopic string
}

// Enabled reports whether a broker list was configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// WebhookConfig holds the fixed acknowledgement returned to voice callbacks.
type WebhookConfig struct {
	VoiceMessage string
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance. Missing provider
// credentials are reported as providers.ErrMissingCredentials.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	creds := &envLoader{}
	cfg.Providers.Twilio.AccountSID = creds.getString("TWILIO_ACCOUNT_SID", "", true)
	cfg.Providers.Twilio.AuthToken = creds.getString("TWILIO_AUTH_TOKEN", "", true)
	cfg.Providers.SendGrid.APIKey = creds.getString("SENDGRID_API_KEY", "", true)

	cfg.Providers.BaseURLs = BaseURLConfig{
		Conversation: ldr.getURL("CONVERSATION_BASE_URL", DefaultConversationBaseURL),
		Media:        ldr.getURL("CONVERSATION_MEDIA_BASE_URL", DefaultMediaBaseURL),
		SMS:          ldr.getURL("SMS_BASE_URL", DefaultSMSBaseURL),
		Voice:        ldr.getURL("VOICE_BASE_URL", DefaultVoiceBaseURL),
		Email:        ldr.getURL("EMAIL_BASE_URL", DefaultEmailBaseURL),
	}
	cfg.Providers.MaxBodyBytes = int64(ldr.getInt("PROVIDER_MAX_BODY_BYTES", 1<<20, false))

	cfg.Media.ChunkBytes = ldr.getInt("MEDIA_CHUNK_BYTES", 32*1024, false)
	cfg.Media.MaxConcurrentUploads = ldr.getInt("MEDIA_MAX_CONCURRENT_UPLOADS", 16, false)

	cfg.Timeouts.ProviderTimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 0, false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.WebhookTopic = ldr.getString("KAFKA_WEBHOOK_TOPIC", "gateway.webhooks", false)

	cfg.Metrics.Enabled = ldr.getBool("METRICS_ENABLED", true, false)

	cfg.Webhooks.VoiceMessage = ldr.getString("VOICE_WEBHOOK_MESSAGE", "Thank you for calling. Goodbye.", false)

	if cfg.Media.ChunkBytes <= 0 {
		ldr.addError("MEDIA_CHUNK_BYTES must be positive")
	}
	if cfg.Media.MaxConcurrentUploads <= 0 {
		ldr.addError("MEDIA_MAX_CONCURRENT_UPLOADS must be positive")
	}
	if cfg.Timeouts.ProviderTimeoutSeconds < 0 {
		ldr.addError("PROVIDER_TIMEOUT_SECONDS cannot be negative")
	}

	var errs []error
	if err := creds.validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", providers.ErrMissingCredentials, err))
	}
	if err := ldr.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getURL(key, def string) string {
	raw := l.getString(key, def, false)
	trimmed, err := util.ValidateHTTPURL(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return strings.TrimRight(trimmed, "/")
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
