package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Kafka struct {
		Enabled         bool   `yaml:"enabled"`
		BrokerAddr      string `yaml:"broker_addr"`
		MarketDataTopic string `yaml:"market_data_topic"`
		ExecutionTopic  string `yaml:"execution_topic"`
		GroupID         string `yaml:"group_id"`
		// Consume echoes market data read back from the topic into the log
		Consume bool `yaml:"consume"`
	} `yaml:"kafka"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Telemetry struct {
		Enabled        bool          `yaml:"enabled"`
		Endpoint       string        `yaml:"endpoint"`
		ServiceName    string        `yaml:"service_name"`
		MetricInterval time.Duration `yaml:"metric_interval"`
	} `yaml:"telemetry"`

	Report struct {
		Color bool `yaml:"color"`
	} `yaml:"report"`
}

// Brokers returns the comma separated broker list
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.BrokerAddr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Default returns the configuration used when neither file nor flags say otherwise
func Default() *Config {
	config := &Config{}
	config.Log.Level = "info"
	config.Log.Pretty = true
	config.Kafka.BrokerAddr = "localhost:9092"
	config.Kafka.MarketDataTopic = "marketsim-market-data"
	config.Kafka.ExecutionTopic = "marketsim-executions"
	config.Kafka.GroupID = "marketsim"
	config.Redis.Addr = "localhost:6379"
	config.Redis.Prefix = "marketsim"
	config.Telemetry.Endpoint = "localhost:4317"
	config.Telemetry.ServiceName = "marketsim"
	config.Telemetry.MetricInterval = 15 * time.Second
	config.Report.Color = true
	return config
}

// LoadConfig loads the configuration from command line arguments and
// optionally from a YAML file named by -config. Flags given explicitly
// override the file.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("marketsim", flag.ContinueOnError)
	configFile := fs.String("config", "", "Path to config file (YAML)")
	logLevel := fs.String("log_level", "info", "Log level: debug, info, warn, error")
	logPretty := fs.Bool("log_pretty", true, "Human readable console logs instead of JSON")
	kafkaEnabled := fs.Bool("kafka", false, "Publish market data and executions to Kafka")
	brokerAddr := fs.String("kafka_brokers", "localhost:9092", "Comma separated Kafka broker addresses")
	redisEnabled := fs.Bool("redis", false, "Cache current markets in Redis")
	redisAddr := fs.String("redis_addr", "localhost:6379", "Redis address")
	telemetry := fs.Bool("telemetry", false, "Export traces and metrics over OTLP")
	otlpEndpoint := fs.String("otlp_endpoint", "localhost:4317", "OTLP collector endpoint")
	noColor := fs.Bool("no-color", false, "Disable coloured reports")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config := Default()

	// Load configuration from file if specified
	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Parse YAML configuration
		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log_level":
			config.Log.Level = *logLevel
		case "log_pretty":
			config.Log.Pretty = *logPretty
		case "kafka":
			config.Kafka.Enabled = *kafkaEnabled
		case "kafka_brokers":
			config.Kafka.BrokerAddr = *brokerAddr
		case "redis":
			config.Redis.Enabled = *redisEnabled
		case "redis_addr":
			config.Redis.Addr = *redisAddr
		case "telemetry":
			config.Telemetry.Enabled = *telemetry
		case "otlp_endpoint":
			config.Telemetry.Endpoint = *otlpEndpoint
		case "no-color":
			config.Report.Color = !*noColor
		}
	})

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Kafka.Enabled {
		if len(c.Brokers()) == 0 {
			return fmt.Errorf("kafka enabled without broker addresses")
		}
		if c.Kafka.MarketDataTopic == "" || c.Kafka.ExecutionTopic == "" {
			return fmt.Errorf("kafka enabled without topics")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis enabled without an address")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry enabled without an endpoint")
	}
	return nil
}
