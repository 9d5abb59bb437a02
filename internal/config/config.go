package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-payment-notify/internal/pkg/validate"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string `validate:"oneof=development staging production"`

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	ArchiveBucket  string
	SNSTopicARN    string // empty disables event publishing

	WebhookSecret          string `validate:"required_unless=HashVerificationBypass true"`
	HashScheme             string `validate:"oneof=sha512 sha256 sha3-512 blake2b-512"`
	HashVerificationBypass bool
	FollowUpFailurePolicy  string `validate:"oneof=warn fail"`
	PayInfoTemplatesPath   string

	Processor ProcessorConfig

	ShopBaseURL       string `validate:"required,url"`
	PublicBaseURL     string `validate:"required,url"` // where shoppers reach this service
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	CancelTokenTTL    time.Duration

	RedisURL string // empty falls back to an in-process lock
	LockTTL  time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	AllowedOrigins []string // CORS allowed origins
}

// ProcessorConfig holds the credentials used for follow-up transactions.
type ProcessorConfig struct {
	URL      string `validate:"required,url"`
	Sender   string
	Login    string
	Password string
	Mode     string `validate:"oneof=CONNECTOR_TEST INTEGRATOR_TEST LIVE"`
	Timeout  time.Duration
	// Channels maps a payment method code (CC, DD, ...) to its transaction channel.
	Channels map[string]string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Orders   string
	Receipts string
	Carts    string
}

// channelMethods are the method codes that may carry a PROCESSOR_CHANNEL_<CODE> variable.
var channelMethods = []string{"CC", "DC", "DD", "IV", "PP", "OT", "VA"}

// Load reads all configuration from environment variables.
func Load() *Config {
	channels := make(map[string]string)
	for _, m := range channelMethods {
		if v := getEnv("PROCESSOR_CHANNEL_"+m, ""); v != "" {
			channels[m] = v
		}
	}
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "eu-central-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Orders:   getEnv("DYNAMO_TABLE_ORDERS", "orders"),
			Receipts: getEnv("DYNAMO_TABLE_RECEIPTS", "payment_receipts"),
			Carts:    getEnv("DYNAMO_TABLE_CARTS", "carts"),
		},
		ArchiveBucket: getEnv("S3_ARCHIVE_BUCKET", "payment-notifications"),
		SNSTopicARN:   getEnv("SNS_TOPIC_ARN", ""),

		WebhookSecret:          getEnv("WEBHOOK_SECRET", ""),
		HashScheme:             strings.ToLower(getEnv("HASH_SCHEME", "sha512")),
		HashVerificationBypass: getEnvBool("HASH_VERIFICATION_BYPASS", false),
		FollowUpFailurePolicy:  strings.ToLower(getEnv("FOLLOWUP_FAILURE_POLICY", "warn")),
		PayInfoTemplatesPath:   getEnv("PAYINFO_TEMPLATES_PATH", ""),

		Processor: ProcessorConfig{
			URL:      getEnv("PROCESSOR_URL", "https://test-heidelpay.hpcgw.net/ngw/post"),
			Sender:   getEnv("PROCESSOR_SENDER", ""),
			Login:    getEnv("PROCESSOR_LOGIN", ""),
			Password: getEnv("PROCESSOR_PASSWORD", ""),
			Mode:     strings.ToUpper(getEnv("PROCESSOR_MODE", "CONNECTOR_TEST")),
			Timeout:  getEnvDuration("PROCESSOR_TIMEOUT", 30*time.Second),
			Channels: channels,
		},

		ShopBaseURL:       strings.TrimRight(getEnv("SHOP_BASE_URL", "http://localhost:8080"), "/"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		CancelTokenTTL:    getEnvDuration("CANCEL_TOKEN_TTL", 24*time.Hour),

		RedisURL: getEnv("REDIS_URL", ""),
		LockTTL:  getEnvDuration("LOCK_TTL", time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Validate checks the settings the notification pipeline cannot run without.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.HashVerificationBypass && c.AppEnv != "development" {
		return fmt.Errorf("invalid configuration: HASH_VERIFICATION_BYPASS is only allowed with APP_ENV=development")
	}
	return nil
}

// BypassHashVerification reports whether notifications skip the hash check.
// Only a development environment may turn verification off.
func (c *Config) BypassHashVerification() bool {
	return c.HashVerificationBypass && c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n := getEnvInt(key, -1); n >= 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
