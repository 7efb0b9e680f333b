// Package config loads settings from .env files, BW_* environment variables
// and defaults, then validates them.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ligun0805/batch-wallet/internal/batch"
	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/sender"
	"github.com/ligun0805/batch-wallet/internal/txsign"
	"github.com/ligun0805/batch-wallet/internal/units"
)

// Prefix namespaces every environment variable, e.g. BW_RPC_URL.
const Prefix = "BW"

// Config keeps all configuration options.
type Config struct {
	RPC struct {
		URL               string        `conf:"default:https://bsc-testnet.publicnode.com" validate:"required,url"`
		ChainID           int64         `conf:"default:97" validate:"gt=0"`
		Timeout           time.Duration `conf:"default:30s" validate:"gt=0"`
		RequestsPerSecond float64       `conf:"default:0" validate:"gte=0"`
		Burst             int           `conf:"default:1" validate:"gte=0"`
		ReadAttempts      int           `conf:"default:3" validate:"min=1,max=10"`
	}
	Send struct {
		EscalationFactor  float64       `conf:"default:1.1" validate:"gt=1"`
		MaxAttempts       int           `conf:"default:5" validate:"min=1,max=50"`
		RetryInterval     time.Duration `conf:"default:15s" validate:"gt=0"`
		PollInterval      time.Duration `conf:"default:1s" validate:"gt=0"`
		AlreadyKnownDelay time.Duration `conf:"default:3s" validate:"gte=0"`
		JitterMin         float64       `conf:"default:1.01" validate:"gte=1"`
		JitterMax         float64       `conf:"default:2.0" validate:"gtefield=JitterMin"`
		GasLimit          uint64        `conf:"default:0"`
		GasPriceGwei      string        `conf:"default:0" validate:"numeric"`
	}
	Batch struct {
		PaceMin time.Duration `conf:"default:5s" validate:"gte=0"`
		PaceMax time.Duration `conf:"default:10s" validate:"gtefield=PaceMin"`
		Report  string        `conf:"default:batch_report.csv"`
	}
	Wallet struct {
		File        string `conf:"default:ethereum_wallet.txt" validate:"required"`
		MainKeyFile string `conf:"default:private_main.txt" validate:"required"`
	}
	Contracts struct {
		Faucet     string `conf:"default:0x3cC6FC1035465d5b238F04097dF272Fe9b60EB94" validate:"omitempty,eth_addr"`
		Token      string `validate:"omitempty,eth_addr"`
		Staking    string `validate:"omitempty,eth_addr"`
		StakingABI string
	}
	Log struct {
		Output string `conf:"default:stderr"`
		Debug  bool   `conf:"default:false"`
	}
	Metrics struct {
		Addr string `conf:"help:serve /metrics on this address when set"`
	}
}

// ErrHelpWanted is returned when --help was requested; the usage text is
// carried in the error message.
var ErrHelpWanted = conf.ErrHelpWanted

// Load reads .env and .env.local, then environment variables and flags.
func Load() (Config, error) {
	// Missing files are fine.
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	var cfg Config
	help, err := conf.Parse(Prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return cfg, fmt.Errorf("%w\n%s", ErrHelpWanted, help)
		}
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile loads an extra env file before Load. Values already set win.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("env file: %w", err)
		}
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("env file: %w", err)
		}
	}
	return Load()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// String renders the config for logging.
func (c Config) String() string {
	out, err := conf.String(&c)
	if err != nil {
		return err.Error()
	}
	return out
}

// Policy builds the retry policy.
func (c Config) Policy() sender.Policy {
	return sender.Policy{
		EscalationFactor:  c.Send.EscalationFactor,
		MaxAttempts:       c.Send.MaxAttempts,
		RetryInterval:     c.Send.RetryInterval,
		AlreadyKnownDelay: c.Send.AlreadyKnownDelay,
	}
}

// Jitter builds the fee jitter bounds.
func (c Config) Jitter() txsign.Jitter {
	return txsign.Jitter{Min: c.Send.JitterMin, Max: c.Send.JitterMax}
}

// Pacer builds the inter-submission delay.
func (c Config) Pacer() batch.Pacer {
	return batch.Pacer{Min: c.Batch.PaceMin, Max: c.Batch.PaceMax}
}

// ClientOptions builds the RPC adapter options.
func (c Config) ClientOptions() chain.Options {
	return chain.Options{
		Timeout:      c.RPC.Timeout,
		RequestsPerS: c.RPC.RequestsPerSecond,
		Burst:        c.RPC.Burst,
		ReadAttempts: c.RPC.ReadAttempts,
	}
}

// ChainID returns the configured chain id.
func (c Config) ChainID() *big.Int {
	return big.NewInt(c.RPC.ChainID)
}

// GasPrice returns the configured gas price override in wei, nil for auto.
func (c Config) GasPrice() (*big.Int, error) {
	v, err := units.ParseGwei(c.Send.GasPriceGwei)
	if err != nil {
		return nil, fmt.Errorf("gas price override: %w", err)
	}
	if v.Sign() == 0 {
		return nil, nil
	}
	return v, nil
}

// Address parses an optional contract address.
func Address(hex string) (common.Address, bool) {
	if !common.IsHexAddress(hex) {
		return common.Address{}, false
	}
	return common.HexToAddress(hex), true
}
