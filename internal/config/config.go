package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fil-demos/synapse-kit/pkg/validation"
)

const (
	LedgerDriverSQLite   = "sqlite"
	LedgerDriverPostgres = "postgres"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int

	// Ledger configuration
	LedgerDriver string
	LedgerDBPath string
	// Postgres configuration, used when LedgerDriver is postgres
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Chain configuration
	RPCURL             string
	PrivateKey         string
	TreasuryPrivateKey string
	PaymentsAddress    string
	WarmStorageAddress string
	USDFCAddress       string

	// Storage provider configuration
	ProviderURLs  []string
	ProviderPayee string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	AlertEmailTo string

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string
	AlertWebhookURL  string

	// Alerting configuration
	AlertCooldown          time.Duration
	AlertThresholdsFile    string
	AlertMinWalletBalance  string
	AlertMinAvailableFunds string
	AlertAllowanceRatio    float64
	AlertProbePieceCID     string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development: getEnvAsBool("DEVELOPMENT", false),
		APIPort:     getEnvAsInt("API_PORT", 6532),

		LedgerDriver:     getEnv("LEDGER_DRIVER", LedgerDriverSQLite),
		LedgerDBPath:     getEnv("LEDGER_DB_PATH", "quota.db"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "synapse_kit"),

		RPCURL:             getEnv("RPC_URL", "https://api.calibration.node.glif.io/rpc/v1"),
		PrivateKey:         getEnv("PRIVATE_KEY", ""),
		TreasuryPrivateKey: getEnv("TREASURY_PRIVATE_KEY", ""),
		PaymentsAddress:    getEnv("PAYMENTS_ADDRESS", ""),
		WarmStorageAddress: getEnv("WARM_STORAGE_ADDRESS", ""),
		USDFCAddress:       getEnv("USDFC_ADDRESS", "0xb3042734b608a1B16e9e86B374A3f3e389B4cDf0"),

		ProviderURLs:  getEnvAsList("PDP_PROVIDER_URLS", nil),
		ProviderPayee: getEnv("PDP_PROVIDER_PAYEE", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),
		AlertEmailTo: getEnv("ALERT_EMAIL_TO", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),

		AlertCooldown:          getEnvAsDuration("ALERT_COOLDOWN", 15*time.Minute),
		AlertThresholdsFile:    getEnv("ALERT_THRESHOLDS_FILE", "alert-thresholds.json"),
		AlertMinWalletBalance:  getEnv("ALERT_MIN_WALLET_BALANCE", "1"),
		AlertMinAvailableFunds: getEnv("ALERT_MIN_AVAILABLE_FUNDS", "5"),
		AlertAllowanceRatio:    getEnvAsFloat("ALERT_ALLOWANCE_RATIO", 0.8),
		AlertProbePieceCID:     getEnv("ALERT_PROBE_PIECE_CID", ""),
	}

	return cfg, nil
}

// ValidateLedger checks the settings needed to open the quota ledger
func (c *Config) ValidateLedger() error {
	switch c.LedgerDriver {
	case LedgerDriverSQLite:
		if c.LedgerDBPath == "" {
			return fmt.Errorf("LEDGER_DB_PATH is required")
		}
	case LedgerDriverPostgres:
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	default:
		return fmt.Errorf("unsupported LEDGER_DRIVER %q (expected %s or %s)", c.LedgerDriver, LedgerDriverSQLite, LedgerDriverPostgres)
	}
	return nil
}

// ValidateChain checks the settings needed for on-chain reads
func (c *Config) ValidateChain() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.PaymentsAddress == "" {
		return fmt.Errorf("PAYMENTS_ADDRESS is required")
	}
	if err := validation.ValidateAddress(c.PaymentsAddress); err != nil {
		return fmt.Errorf("invalid PAYMENTS_ADDRESS format: %w", err)
	}
	if err := validation.ValidateAddress(c.USDFCAddress); err != nil {
		return fmt.Errorf("invalid USDFC_ADDRESS format: %w", err)
	}
	if c.WarmStorageAddress == "" {
		return fmt.Errorf("WARM_STORAGE_ADDRESS is required")
	}
	if err := validation.ValidateAddress(c.WarmStorageAddress); err != nil {
		return fmt.Errorf("invalid WARM_STORAGE_ADDRESS format: %w", err)
	}
	return nil
}

// ValidateWallet checks that a signing key is configured
func (c *Config) ValidateWallet() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required")
	}
	return nil
}

// ValidateStorage checks the settings needed to reach a storage provider
func (c *Config) ValidateStorage() error {
	if len(c.ProviderURLs) == 0 {
		return fmt.Errorf("PDP_PROVIDER_URLS is required")
	}
	return nil
}

// ValidateDataSet checks the settings needed to create a data set
func (c *Config) ValidateDataSet() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.ProviderPayee == "" {
		return fmt.Errorf("PDP_PROVIDER_PAYEE is required")
	}
	if err := validation.ValidateAddress(c.ProviderPayee); err != nil {
		return fmt.Errorf("invalid PDP_PROVIDER_PAYEE format: %w", err)
	}
	return nil
}

// EmailConfigured reports whether every SMTP setting needed for alert mail is present
func (c *Config) EmailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPSender != "" && c.AlertEmailTo != ""
}

// TelegramConfigured reports whether alerts can be pushed to a Telegram chat
func (c *Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsFloat(name string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsList(name string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(name)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}
