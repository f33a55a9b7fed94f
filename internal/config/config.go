package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/punchamoorthee/qrtopup/internal/domain"
)

const defaultChannels = "bank_transfer:mb,bank_transfer:vcb,bank_transfer:tcb"

type Config struct {
	DBSource      string
	Port          string
	Env           string
	WebhookSecret string
	Payee         domain.PayeeAccount
	Channels      []domain.Channel
}

// Load reads the transaction service settings. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	channels, err := ParseChannels(getenv("PAYMENT_CHANNELS", defaultChannels))
	if err != nil {
		return nil, err
	}

	return &Config{
		DBSource:      dbSource,
		Port:          getenv("SERVER_PORT", "8080"),
		Env:           getenv("ENVIRONMENT", "development"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		Payee: domain.PayeeAccount{
			AccountNumber: getenv("PAYEE_ACCOUNT_NUMBER", "0000000000"),
			AccountName:   getenv("PAYEE_ACCOUNT_NAME", "QR TOPUP"),
		},
		Channels: channels,
	}, nil
}

// ParseChannels reads a comma separated list of method:bank pairs.
func ParseChannels(raw string) ([]domain.Channel, error) {
	var out []domain.Channel
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		method, bank, ok := strings.Cut(item, ":")
		method, bank = strings.TrimSpace(method), strings.TrimSpace(bank)
		if !ok || method == "" || bank == "" {
			return nil, fmt.Errorf("invalid payment channel %q, want method:bank", item)
		}
		out = append(out, domain.Channel{
			Method:      strings.ToLower(method),
			Bank:        strings.ToLower(bank),
			DisplayName: strings.ToUpper(bank),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("PAYMENT_CHANNELS must list at least one channel")
	}
	return out, nil
}

// ClientConfig configures the storefront side that polls the service.
type ClientConfig struct {
	APIBaseURL   string
	WalletID     int64
	PollInterval time.Duration
	PollTimeout  time.Duration
	HTTPTimeout  time.Duration
	RedisAddr    string
}

func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	walletID, err := strconv.ParseInt(getenv("WALLET_ID", "1"), 10, 64)
	if err != nil || walletID <= 0 {
		return nil, fmt.Errorf("WALLET_ID must be a positive integer")
	}

	interval, err := duration("POLL_INTERVAL", 1500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if interval < time.Second || interval > 5*time.Second {
		return nil, fmt.Errorf("POLL_INTERVAL must be between 1s and 5s, got %s", interval)
	}

	timeout, err := duration("POLL_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	if timeout <= interval {
		return nil, fmt.Errorf("POLL_TIMEOUT must exceed POLL_INTERVAL")
	}

	httpTimeout, err := duration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &ClientConfig{
		APIBaseURL:   strings.TrimRight(getenv("API_BASE_URL", "http://localhost:8080"), "/"),
		WalletID:     walletID,
		PollInterval: interval,
		PollTimeout:  timeout,
		HTTPTimeout:  httpTimeout,
		RedisAddr:    os.Getenv("REDIS_ADDR"),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
