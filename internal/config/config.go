// Package config defines all configuration for the copy-trading bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when a value is missing or out of range. The feeds must
// keep working with a half-filled config file, so malformed optional values
// degrade to these instead of failing the load.
const (
	DefaultPollInterval    = 20 * time.Second
	DefaultScanInterval    = 6 * time.Second
	DefaultScanSpan        = 600
	DefaultChunkBlocks     = 120
	DefaultInitialLookback = 600
	DefaultPageLimit       = 50
	DefaultSeenLimit       = 1000
	DefaultCommissionPct   = 1.0

	DefaultExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	DefaultUSDCAddress     = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun  bool          `mapstructure:"dry_run"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	API     APIConfig     `mapstructure:"api"`
	Mirror  MirrorConfig  `mapstructure:"mirror"`
	Feeds   FeedsConfig   `mapstructure:"feeds"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth, CTF orders, and commission transfers.
// FunderAddress is the on-chain address that funds orders (may differ from
// the signer when trading through a proxy wallet).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds service endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the bot derives them via L1 auth on
// startup.
type APIConfig struct {
	CLOBBaseURL string `mapstructure:"clob_base_url"`
	DataAPIURL  string `mapstructure:"data_api_url"`
	WSUserURL   string `mapstructure:"ws_user_url"`
	RPCURL      string `mapstructure:"rpc_url"`
	ApiKey      string `mapstructure:"api_key"`
	Secret      string `mapstructure:"secret"`
	Passphrase  string `mapstructure:"passphrase"`
}

// SideFilters enables or disables mirroring per side.
type SideFilters struct {
	Buy  bool `mapstructure:"buy"`
	Sell bool `mapstructure:"sell"`
}

// MirrorConfig describes one copy-trading session:
//
//   - TargetAddress: the wallet being mirrored.
//   - Mode: "percentage" (size = target size × Value/100) or
//     "fixed" (size = Value, ignoring the target's size).
//   - AggressiveTicks: how many 0.001 ticks past the observed fill price
//     to cross, so the mirror order fills like a market order.
//   - MaxSlippagePct: hard cap (0–50) on price deviation from the fill price;
//     always wins when tighter than the aggressive offset.
//   - DailyLimitUSDC: configured spending cap. Enforcement is an external
//     accounting concern; the engine only records it.
//   - CommissionAddress/CommissionPct: best-effort fee transfer per mirrored
//     order, as a percentage of notional.
type MirrorConfig struct {
	TargetAddress     string      `mapstructure:"target_address"`
	Mode              string      `mapstructure:"mode"`
	Value             float64     `mapstructure:"value"`
	AggressiveTicks   int         `mapstructure:"aggressive_ticks"`
	MaxSlippagePct    float64     `mapstructure:"max_slippage_pct"`
	Filters           SideFilters `mapstructure:"filters"`
	DailyLimitUSDC    float64     `mapstructure:"daily_limit_usdc"`
	CommissionAddress string      `mapstructure:"commission_address"`
	CommissionPct     float64     `mapstructure:"commission_pct"`
}

// FeedsConfig selects and tunes the fill feeds. Any combination of the three
// adapters may run within one session; they share the dedup ledger.
type FeedsConfig struct {
	UseChain  bool `mapstructure:"use_chain"`
	UsePoller bool `mapstructure:"use_poller"`
	UsePush   bool `mapstructure:"use_push"`

	PollInterval    time.Duration `mapstructure:"poll_interval"`    // REST poller cadence
	ScanInterval    time.Duration `mapstructure:"scan_interval"`    // on-chain sweep cadence
	ScanSpan        uint64        `mapstructure:"scan_span"`        // max blocks per sweep
	ChunkBlocks     uint64        `mapstructure:"chunk_blocks"`     // blocks per getLogs chunk
	InitialLookback uint64        `mapstructure:"initial_lookback"` // blocks behind head at session start
	PageLimit       int           `mapstructure:"page_limit"`       // trades per poll page
	SeenLimit       int           `mapstructure:"seen_limit"`       // dedup ledger capacity
	Warmup          bool          `mapstructure:"warmup"`           // seed ledger with pre-start fills

	ExchangeAddress string `mapstructure:"exchange_address"` // CTF exchange contract
	USDCAddress     string `mapstructure:"usdc_address"`     // collateral token contract
}

// StoreConfig sets where mirrored-order receipts are persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLY_PRIVATE_KEY, POLY_API_KEY,
// POLY_API_SECRET, POLY_PASSPHRASE, POLY_TARGET_ADDRESS.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("POLY_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if target := os.Getenv("POLY_TARGET_ADDRESS"); target != "" {
		cfg.Mirror.TargetAddress = target
	}
	if os.Getenv("POLY_DRY_RUN") == "true" || os.Getenv("POLY_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero or out-of-range values with safe defaults.
// Missing endpoints stay empty; Validate reports those.
func (c *Config) ApplyDefaults() {
	if c.Feeds.PollInterval <= 0 {
		c.Feeds.PollInterval = DefaultPollInterval
	}
	if c.Feeds.ScanInterval <= 0 {
		c.Feeds.ScanInterval = DefaultScanInterval
	}
	if c.Feeds.ScanSpan == 0 {
		c.Feeds.ScanSpan = DefaultScanSpan
	}
	if c.Feeds.ChunkBlocks == 0 {
		c.Feeds.ChunkBlocks = DefaultChunkBlocks
	}
	if c.Feeds.InitialLookback == 0 {
		c.Feeds.InitialLookback = DefaultInitialLookback
	}
	if c.Feeds.PageLimit <= 0 {
		c.Feeds.PageLimit = DefaultPageLimit
	}
	if c.Feeds.SeenLimit <= 0 {
		c.Feeds.SeenLimit = DefaultSeenLimit
	}
	if c.Feeds.ExchangeAddress == "" {
		c.Feeds.ExchangeAddress = DefaultExchangeAddress
	}
	if c.Feeds.USDCAddress == "" {
		c.Feeds.USDCAddress = DefaultUSDCAddress
	}
	if !c.Feeds.UseChain && !c.Feeds.UsePoller && !c.Feeds.UsePush {
		// An all-off feed block would make a session that never sees a fill.
		c.Feeds.UseChain = true
		c.Feeds.UsePoller = true
	}

	if c.Mirror.Mode == "" {
		c.Mirror.Mode = "percentage"
	}
	if c.Mirror.MaxSlippagePct < 0 {
		c.Mirror.MaxSlippagePct = 0
	}
	if c.Mirror.MaxSlippagePct > 50 {
		c.Mirror.MaxSlippagePct = 50
	}
	if c.Mirror.AggressiveTicks < 0 {
		c.Mirror.AggressiveTicks = 0
	}
	if c.Mirror.AggressiveTicks > 100 {
		c.Mirror.AggressiveTicks = 100
	}
	if c.Mirror.DailyLimitUSDC < 0 {
		c.Mirror.DailyLimitUSDC = 0
	}
	if c.Mirror.CommissionPct <= 0 {
		c.Mirror.CommissionPct = DefaultCommissionPct
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLY_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for Polygon mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.API.DataAPIURL == "" && c.Feeds.UsePoller {
		return fmt.Errorf("api.data_api_url is required when feeds.use_poller is enabled")
	}
	if c.API.RPCURL == "" && c.Feeds.UseChain {
		return fmt.Errorf("api.rpc_url is required when feeds.use_chain is enabled")
	}
	if c.API.WSUserURL == "" && c.Feeds.UsePush {
		return fmt.Errorf("api.ws_user_url is required when feeds.use_push is enabled")
	}
	switch c.Mirror.Mode {
	case "percentage", "fixed":
	default:
		return fmt.Errorf("mirror.mode must be \"percentage\" or \"fixed\"")
	}
	if c.Mirror.Value <= 0 {
		return fmt.Errorf("mirror.value must be > 0")
	}
	return nil
}
