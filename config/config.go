package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"cdpchain/crypto"
	"cdpchain/native/cdp"
	"cdpchain/observability/logging"
)

// Config is the node configuration loaded from TOML.
type Config struct {
	DataDir       string `toml:"DataDir"`
	NetworkName   string `toml:"NetworkName"`
	GatewayConfig string `toml:"GatewayConfig"`
	ModuleAddress string `toml:"ModuleAddress"`
	StableToken   string `toml:"StableToken"`

	Log       Log       `toml:"log"`
	Telemetry Telemetry `toml:"telemetry"`
	Oracle    Oracle    `toml:"oracle"`
	Pauses    Pauses    `toml:"pauses"`

	// Genesis is applied once to an empty store.
	Genesis Genesis `toml:"genesis"`
}

type Log struct {
	Level string             `toml:"Level"`
	Env   string             `toml:"Env"`
	File  logging.FileConfig `toml:"file"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
	// SampleRatio is the fraction of traces kept; zero keeps all.
	SampleRatio float64 `toml:"SampleRatio"`
}

// Oracle bounds how old a price may be before the engine rejects it. Zero
// disables the staleness check.
type Oracle struct {
	MaxAgeSeconds uint64 `toml:"MaxAgeSeconds"`
}

// MaxAge returns the staleness bound as a duration.
func (o Oracle) MaxAge() time.Duration {
	return time.Duration(o.MaxAgeSeconds) * time.Second
}

type Pauses struct {
	CDP bool `toml:"CDP"`
}

type Genesis struct {
	Tokens           []Token      `toml:"tokens"`
	Managers         []string     `toml:"Managers"`
	Collaterals      []Collateral `toml:"collaterals"`
	Prices           []Price      `toml:"prices"`
	Payees           []Payee      `toml:"payees"`
	InsuranceReserve string       `toml:"InsuranceReserve"`
}

type Token struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
}

// Collateral carries a collateral type's parameters as base-10 integers in
// their fixed-point units (WAD for ratios and fees, RAY for the borrow rate).
type Collateral struct {
	Type               string `toml:"Type"`
	DebtLimit          string `toml:"DebtLimit"`
	LiquidationRatio   string `toml:"LiquidationRatio"`
	MinCollateralRatio string `toml:"MinCollateralRatio"`
	BorrowRate         string `toml:"BorrowRate"`
	OriginationFee     string `toml:"OriginationFee"`
	LiquidationBonus   string `toml:"LiquidationBonus"`
	LiquidationFee     string `toml:"LiquidationFee"`
}

// Price seeds the oracle with a WAD price in stablecoin units per whole token.
type Price struct {
	Symbol string `toml:"Symbol"`
	Price  string `toml:"Price"`
}

type Payee struct {
	Address string `toml:"Address"`
	Shares  uint64 `toml:"Shares"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "cdp-local"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./cdp-data"
	}
	if strings.TrimSpace(c.StableToken) == "" {
		c.StableToken = "PAR"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
}

// Validate checks addresses and numeric fields so that startup fails before
// any state is written.
func (c *Config) Validate() error {
	if _, err := c.Module(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.Genesis.ManagerAddresses(); err != nil {
		return err
	}
	if _, err := c.Genesis.CollateralConfigs(); err != nil {
		return err
	}
	if _, err := c.Genesis.PriceMap(); err != nil {
		return err
	}
	if _, _, err := c.Genesis.PayeeTable(); err != nil {
		return err
	}
	if _, err := c.Genesis.Reserve(); err != nil {
		return err
	}
	return nil
}

// Module returns the engine's module address.
func (c *Config) Module() (common.Address, error) {
	if strings.TrimSpace(c.ModuleAddress) == "" {
		return common.Address{}, errors.New("ModuleAddress is required")
	}
	addr, err := crypto.ParseAddress(c.ModuleAddress)
	if err != nil {
		return common.Address{}, fmt.Errorf("ModuleAddress: %w", err)
	}
	return addr, nil
}

// ManagerAddresses parses the genesis manager accounts.
func (g Genesis) ManagerAddresses() ([]common.Address, error) {
	out := make([]common.Address, 0, len(g.Managers))
	for i, raw := range g.Managers {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("genesis.Managers[%d]: %w", i, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// CollateralConfigs converts the configured collaterals into engine values.
func (g Genesis) CollateralConfigs() ([]*cdp.CollateralConfig, error) {
	out := make([]*cdp.CollateralConfig, 0, len(g.Collaterals))
	for i, c := range g.Collaterals {
		cfg := &cdp.CollateralConfig{CollateralType: strings.ToUpper(strings.TrimSpace(c.Type))}
		fields := []struct {
			name string
			raw  string
			dst  **big.Int
		}{
			{"DebtLimit", c.DebtLimit, &cfg.DebtLimit},
			{"LiquidationRatio", c.LiquidationRatio, &cfg.LiquidationRatio},
			{"MinCollateralRatio", c.MinCollateralRatio, &cfg.MinCollateralRatio},
			{"BorrowRate", c.BorrowRate, &cfg.BorrowRate},
			{"OriginationFee", c.OriginationFee, &cfg.OriginationFee},
			{"LiquidationBonus", c.LiquidationBonus, &cfg.LiquidationBonus},
			{"LiquidationFee", c.LiquidationFee, &cfg.LiquidationFee},
		}
		for _, f := range fields {
			v, err := parseUintAmount(f.raw)
			if err != nil {
				return nil, fmt.Errorf("genesis.collaterals[%d].%s: %w", i, f.name, err)
			}
			*f.dst = v
		}
		if cfg.BorrowRate.Sign() == 0 {
			cfg.BorrowRate = new(big.Int).Set(cdp.RAY)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("genesis.collaterals[%d]: %w", i, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// PriceMap returns the oracle seed prices keyed by upper-case symbol.
func (g Genesis) PriceMap() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(g.Prices))
	for i, p := range g.Prices {
		price, err := parseUintAmount(p.Price)
		if err != nil {
			return nil, fmt.Errorf("genesis.prices[%d]: %w", i, err)
		}
		if price.Sign() == 0 {
			return nil, fmt.Errorf("genesis.prices[%d]: price must be positive", i)
		}
		out[strings.ToUpper(strings.TrimSpace(p.Symbol))] = price
	}
	return out, nil
}

// PayeeTable returns the fee payees in configuration order.
func (g Genesis) PayeeTable() ([]common.Address, []uint64, error) {
	addrs := make([]common.Address, 0, len(g.Payees))
	shares := make([]uint64, 0, len(g.Payees))
	for i, p := range g.Payees {
		addr, err := crypto.ParseAddress(p.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("genesis.payees[%d]: %w", i, err)
		}
		addrs = append(addrs, addr)
		shares = append(shares, p.Shares)
	}
	return addrs, shares, nil
}

// Reserve returns the stablecoin amount minted to the module as insurance.
func (g Genesis) Reserve() (*big.Int, error) {
	v, err := parseUintAmount(g.InsuranceReserve)
	if err != nil {
		return nil, fmt.Errorf("genesis.InsuranceReserve: %w", err)
	}
	return v, nil
}

// parseUintAmount parses a non-negative base-10 integer. Empty means zero and
// underscores are accepted as digit separators.
func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %q", raw)
	}
	return v, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       "./cdp-data",
		NetworkName:   "cdp-local",
		ModuleAddress: "0x000000000000000000000000000000000000cd01",
		StableToken:   "PAR",
		Log:           Log{Level: "info"},
		Oracle:        Oracle{MaxAgeSeconds: 3600},
		Genesis: Genesis{
			Tokens: []Token{
				{Symbol: "PAR", Name: "Par Stablecoin", Decimals: 18},
				{Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
			},
			Collaterals: []Collateral{{
				Type:               "WETH",
				DebtLimit:          "1_000_000_000000000000000000",
				LiquidationRatio:   "1_300000000000000000",
				MinCollateralRatio: "1_500000000000000000",
				BorrowRate:         "1000000000158153903837946257",
				OriginationFee:     "5000000000000000",
				LiquidationBonus:   "50000000000000000",
				LiquidationFee:     "100000000000000000",
			}},
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
