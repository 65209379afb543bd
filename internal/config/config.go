package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
)

type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Log         LogConfig          `mapstructure:"log"`
	Database    DatabaseConfig     `mapstructure:"database"`
	Profiles    ProfilesConfig     `mapstructure:"profiles"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"` // 0 disables gRPC
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type ProfilesConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

// InstrumentConfig describes one analyzer opened at startup.
type InstrumentConfig struct {
	Name      string `mapstructure:"name" json:"name"`
	Profile   string `mapstructure:"profile" json:"profile"`
	Transport string `mapstructure:"transport" json:"transport"`
	// host:port for tcp, device path for serial
	Address      string        `mapstructure:"address" json:"address"`
	BaudRate     int           `mapstructure:"baud_rate" json:"baud_rate,omitempty"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
	SweepTimeout time.Duration `mapstructure:"sweep_timeout" json:"sweep_timeout,omitempty"`
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval,omitempty"`
}

func (c InstrumentConfig) Validate() error {
	if c.Name == "" {
		return errors.New("instrument name is required")
	}
	if c.Profile == "" {
		return fmt.Errorf("instrument %s: profile is required", c.Name)
	}
	if c.Address == "" {
		return fmt.Errorf("instrument %s: address is required", c.Name)
	}
	switch c.Transport {
	case TransportTCP, TransportSerial:
	default:
		return fmt.Errorf("instrument %s: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

// WithDefaults fills the per-instrument fields left empty in the file.
func (c InstrumentConfig) WithDefaults() InstrumentConfig {
	if c.Transport == "" {
		c.Transport = TransportTCP
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Transport == TransportSerial && c.BaudRate <= 0 {
		c.BaudRate = 115200
	}
	return c
}

// Load reads the YAML file at path. A .env file (OVNA_ENV_FILE, default
// ./.env) is loaded first when present; OVNA_* variables override the file.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "openvna")
	v.SetDefault("database.user", "openvna")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("profiles.search_paths", []string{})

	// OVNA_SERVER_HTTP_PORT overrides server.http_port
	v.SetEnvPrefix("OVNA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i, inst := range config.Instruments {
		inst = inst.WithDefaults()
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("instruments[%d]: %w", i, err)
		}
		config.Instruments[i] = inst
	}

	return &config, nil
}

func loadEnvFile() error {
	path := os.Getenv("OVNA_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}
