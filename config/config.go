package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	CashIn   CashInConfig   `mapstructure:"cashin"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistent store backing the repositories.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key protecting wallet private keys
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// WalletConfig controls wallet creation and PIN hashing.
type WalletConfig struct {
	IDMaxAttempts  int          `mapstructure:"id_max_attempts"`
	MinPhoneDigits int          `mapstructure:"min_phone_digits"`
	MinPINLength   int          `mapstructure:"min_pin_length"`
	Argon2         Argon2Config `mapstructure:"argon2"`
}

type Argon2Config struct {
	Time    uint32 `mapstructure:"time"`
	Memory  uint32 `mapstructure:"memory"` // KiB
	Threads uint8  `mapstructure:"threads"`
	KeyLen  uint32 `mapstructure:"key_len"`
}

// PaymentConfig controls scanned-payment verification.
type PaymentConfig struct {
	// TrustEmbeddedKey accepts the payload's own public key when the sender
	// wallet is not in the local store. Demo/single-device use only.
	TrustEmbeddedKey bool          `mapstructure:"trust_embedded_key"`
	NonceTTL         time.Duration `mapstructure:"nonce_ttl"`
}

// CashInConfig controls cash-in expiry, settlement timeouts and fees.
type CashInConfig struct {
	Expiry        time.Duration `mapstructure:"expiry"`
	AgentTimeout  time.Duration `mapstructure:"agent_timeout"`
	BankTimeout   time.Duration `mapstructure:"bank_timeout"`
	AgentDelay    time.Duration `mapstructure:"agent_delay"`
	BankDelay     time.Duration `mapstructure:"bank_delay"`
	VoucherLock   time.Duration `mapstructure:"voucher_lock"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Fees          FeesConfig    `mapstructure:"fees"`
}

// FeesConfig holds one fee rule per cash-in method.
type FeesConfig struct {
	Agent   FeeRule `mapstructure:"agent"`
	Voucher FeeRule `mapstructure:"voucher"`
	Banking FeeRule `mapstructure:"banking"`
}

// FeeRule is a fixed base fee plus a percentage of the amount, both decimal strings.
type FeeRule struct {
	Base    string `mapstructure:"base"`
	Percent string `mapstructure:"percent"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: QRW_.
// Nested keys use underscore: QRW_DATABASE_HOST, QRW_CASHIN_EXPIRY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "qr_wallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "qr-wallet")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("wallet.id_max_attempts", 10)
	v.SetDefault("wallet.min_phone_digits", 8)
	v.SetDefault("wallet.min_pin_length", 4)
	v.SetDefault("wallet.argon2.time", 1)
	v.SetDefault("wallet.argon2.memory", 64*1024)
	v.SetDefault("wallet.argon2.threads", 4)
	v.SetDefault("wallet.argon2.key_len", 32)
	v.SetDefault("payment.trust_embedded_key", false)
	v.SetDefault("payment.nonce_ttl", "720h")
	v.SetDefault("cashin.expiry", "24h")
	v.SetDefault("cashin.agent_timeout", "30s")
	v.SetDefault("cashin.bank_timeout", "30s")
	v.SetDefault("cashin.agent_delay", "2s")
	v.SetDefault("cashin.bank_delay", "3s")
	v.SetDefault("cashin.voucher_lock", "15s")
	v.SetDefault("cashin.sweep_interval", "1m")
	v.SetDefault("cashin.fees.agent.base", "0.50")
	v.SetDefault("cashin.fees.agent.percent", "1")
	v.SetDefault("cashin.fees.voucher.base", "0")
	v.SetDefault("cashin.fees.voucher.percent", "0")
	v.SetDefault("cashin.fees.banking.base", "1.00")
	v.SetDefault("cashin.fees.banking.percent", "0.5")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: QRW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("QRW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Wallet.IDMaxAttempts < 1 {
		return nil, fmt.Errorf("wallet.id_max_attempts must be at least 1, got %d", cfg.Wallet.IDMaxAttempts)
	}
	switch cfg.Storage.Driver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("storage.driver must be postgres or memory, got %q", cfg.Storage.Driver)
	}
	if cfg.CashIn.Expiry <= 0 {
		return nil, fmt.Errorf("cashin.expiry must be positive")
	}

	return &cfg, nil
}
