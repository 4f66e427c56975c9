package simulator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erain9/marketsim/pkg/core"
	"github.com/spf13/viper"
)

// Product is a tradable symbol and the base price orders are generated around
type Product struct {
	Symbol    string
	BasePrice float64
}

// Subscription pairs a user with a symbol whose current market it follows
type Subscription struct {
	User   string
	Symbol string
}

// Config holds all configuration for a simulation run
type Config struct {
	Users           []string
	Products        []Product
	Subscriptions   []Subscription
	Unsubscriptions []Subscription

	Iterations  int
	CancelRatio float64

	// Price generation: buys start StartPoint below base and sells StartPoint
	// above it, both moving toward the other side by up to PriceWidth of base.
	PriceWidth float64
	StartPoint float64
	TickSize   float64

	MinVolume  int
	MaxVolume  int
	VolumeStep int

	// OrdersPerSecond paces operations; zero means unlimited
	OrdersPerSecond float64
	Seed            int64
}

// LoadConfig loads configuration from SIM_ environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIM")

	// Set default values
	v.SetDefault("USERS", "ANN,BOB,CAT,DOG,EGG")
	v.SetDefault("PRODUCTS", "WMT=140.98,TGT=174.76,AMZN=102.11,TSLA=196.81")
	v.SetDefault("SUBSCRIPTIONS", "ANN:WMT,ANN:TGT,BOB:TGT,BOB:TSLA,CAT:AMZN,CAT:TGT,CAT:WMT,DOG:TSLA,EGG:WMT")
	v.SetDefault("UNSUBSCRIPTIONS", "BOB:TGT")
	v.SetDefault("ITERATIONS", 100)
	v.SetDefault("CANCEL_RATIO", 0.1)
	v.SetDefault("PRICE_WIDTH", 0.02)
	v.SetDefault("START_POINT", 0.01)
	v.SetDefault("TICK_SIZE", 0.10)
	v.SetDefault("MIN_VOLUME", 25)
	v.SetDefault("MAX_VOLUME", 325)
	v.SetDefault("VOLUME_STEP", 5)
	v.SetDefault("ORDERS_PER_SECOND", 0)
	v.SetDefault("SEED", 0)

	// Allow environment variables, including empty lists
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	cfg, err := fromViper(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	products, err := parseProducts(v.GetString("PRODUCTS"))
	if err != nil {
		return nil, err
	}
	subs, err := parseSubscriptions(v.GetString("SUBSCRIPTIONS"))
	if err != nil {
		return nil, err
	}
	unsubs, err := parseSubscriptions(v.GetString("UNSUBSCRIPTIONS"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Users:           splitList(v.GetString("USERS")),
		Products:        products,
		Subscriptions:   subs,
		Unsubscriptions: unsubs,
		Iterations:      v.GetInt("ITERATIONS"),
		CancelRatio:     v.GetFloat64("CANCEL_RATIO"),
		PriceWidth:      v.GetFloat64("PRICE_WIDTH"),
		StartPoint:      v.GetFloat64("START_POINT"),
		TickSize:        v.GetFloat64("TICK_SIZE"),
		MinVolume:       v.GetInt("MIN_VOLUME"),
		MaxVolume:       v.GetInt("MAX_VOLUME"),
		VolumeStep:      v.GetInt("VOLUME_STEP"),
		OrdersPerSecond: v.GetFloat64("ORDERS_PER_SECOND"),
		Seed:            v.GetInt64("SEED"),
	}, nil
}

// splitList splits a comma separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseProducts reads "SYM=base,SYM=base"
func parseProducts(s string) ([]Product, error) {
	var products []Product
	for _, item := range splitList(s) {
		sym, base, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("product %q must be SYMBOL=PRICE", item)
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(base), 64)
		if err != nil {
			return nil, fmt.Errorf("product %q has a bad base price: %w", item, err)
		}
		products = append(products, Product{Symbol: strings.TrimSpace(sym), BasePrice: p})
	}
	return products, nil
}

// parseSubscriptions reads "USER:SYM,USER:SYM"
func parseSubscriptions(s string) ([]Subscription, error) {
	var subs []Subscription
	for _, item := range splitList(s) {
		u, sym, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("subscription %q must be USER:SYMBOL", item)
		}
		subs = append(subs, Subscription{User: strings.TrimSpace(u), Symbol: strings.TrimSpace(sym)})
	}
	return subs, nil
}

func validateConfig(cfg *Config) error {
	if len(cfg.Users) == 0 {
		return fmt.Errorf("SIM_USERS must not be empty")
	}
	for _, u := range cfg.Users {
		if err := core.ValidateUserID(u); err != nil {
			return err
		}
	}
	if len(cfg.Products) == 0 {
		return fmt.Errorf("SIM_PRODUCTS must not be empty")
	}
	for _, p := range cfg.Products {
		if err := core.ValidateSymbol(p.Symbol); err != nil {
			return err
		}
		if p.BasePrice <= 0 {
			return fmt.Errorf("base price of %s must be positive", p.Symbol)
		}
	}
	if cfg.Iterations < 0 {
		return fmt.Errorf("SIM_ITERATIONS must not be negative")
	}
	if cfg.CancelRatio < 0 || cfg.CancelRatio > 1 {
		return fmt.Errorf("SIM_CANCEL_RATIO must be between 0 and 1")
	}
	if cfg.PriceWidth < 0 || cfg.StartPoint < 0 {
		return fmt.Errorf("SIM_PRICE_WIDTH and SIM_START_POINT must not be negative")
	}
	if cfg.TickSize < 0.01 {
		return fmt.Errorf("SIM_TICK_SIZE must be at least one cent")
	}
	if cfg.MinVolume < core.MinOrderVolume || cfg.MaxVolume > core.MaxOrderVolume || cfg.MinVolume > cfg.MaxVolume {
		return fmt.Errorf("volume range [%d, %d] must lie within [%d, %d]",
			cfg.MinVolume, cfg.MaxVolume, core.MinOrderVolume, core.MaxOrderVolume)
	}
	if cfg.VolumeStep <= 0 {
		return fmt.Errorf("SIM_VOLUME_STEP must be positive")
	}
	if cfg.OrdersPerSecond < 0 {
		return fmt.Errorf("SIM_ORDERS_PER_SECOND must not be negative")
	}
	return nil
}
