package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Route providers.
const (
	ProviderMapbox = "mapbox"
	ProviderOSRM   = "osrm"
	ProviderGoogle = "google"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Route    RouteConfig
	Fare     FareConfig
	Matching MatchingConfig
	Kafka    KafkaConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Driver   string // postgres or memory
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool

	MaxOpenConns int
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// RouteConfig selects and configures the directions provider.
type RouteConfig struct {
	Provider     string
	BaseURL      string
	Profile      string
	AccessToken  string
	GoogleAPIKey string
	Timeout      time.Duration
	CacheTTL     time.Duration
}

// FareConfig holds the pricing table.
type FareConfig struct {
	BaseCar        float64
	BaseMotorcycle float64
	SurchargePerKm float64
	Currency       string
}

// MatchingConfig holds driver matching configuration.
type MatchingConfig struct {
	RadiusKm float64
}

// KafkaConfig holds event publishing configuration. No brokers means events are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server_port"),
			ReadTimeout:     v.GetDuration("server_read_timeout"),
			WriteTimeout:    v.GetDuration("server_write_timeout"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("store_driver")),
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
			Migrate:  v.GetBool("db_migrate"),

			MaxOpenConns: v.GetInt("db_max_open_conns"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis_enabled"),
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("new_relic_app_name"),
			LicenseKey: v.GetString("new_relic_license_key"),
			Enabled:    v.GetBool("new_relic_enabled"),
		},
		Route: RouteConfig{
			Provider:     strings.ToLower(v.GetString("route_provider")),
			BaseURL:      v.GetString("route_base_url"),
			Profile:      v.GetString("route_profile"),
			AccessToken:  v.GetString("route_access_token"),
			GoogleAPIKey: v.GetString("google_maps_api_key"),
			Timeout:      v.GetDuration("route_timeout"),
			CacheTTL:     v.GetDuration("route_cache_ttl"),
		},
		Fare: FareConfig{
			BaseCar:        v.GetFloat64("fare_base_car"),
			BaseMotorcycle: v.GetFloat64("fare_base_motorcycle"),
			SurchargePerKm: v.GetFloat64("fare_surcharge_per_km"),
			Currency:       v.GetString("fare_currency"),
		},
		Matching: MatchingConfig{
			RadiusKm: v.GetFloat64("matching_radius_km"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
			Topic:   v.GetString("kafka_topic"),
		},
		LogLevel: v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("server_read_timeout", 10*time.Second)
	v.SetDefault("server_write_timeout", 15*time.Second)
	v.SetDefault("server_shutdown_timeout", 5*time.Second)

	v.SetDefault("store_driver", StorePostgres)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "dispatch")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_migrate", false)
	v.SetDefault("db_max_open_conns", 50)

	v.SetDefault("redis_enabled", true)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("new_relic_app_name", "dispatch-service")
	v.SetDefault("new_relic_license_key", "")
	v.SetDefault("new_relic_enabled", false)

	v.SetDefault("route_provider", ProviderMapbox)
	v.SetDefault("route_base_url", "https://api.mapbox.com/directions/v5/mapbox")
	v.SetDefault("route_profile", "driving")
	v.SetDefault("route_access_token", "")
	v.SetDefault("google_maps_api_key", "")
	v.SetDefault("route_timeout", 10*time.Second)
	v.SetDefault("route_cache_ttl", 10*time.Minute)

	v.SetDefault("fare_base_car", 7000.0)
	v.SetDefault("fare_base_motorcycle", 3000.0)
	v.SetDefault("fare_surcharge_per_km", 2000.0)
	v.SetDefault("fare_currency", "COP")

	v.SetDefault("matching_radius_km", 5.0)

	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "dispatch.events")

	v.SetDefault("log_level", "info")
	v.SetDefault("config_file", "")
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	switch c.Database.Driver {
	case StorePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMemory, c.Database.Driver))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when redis is enabled"))
	}
	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		errs = append(errs, errors.New("NEW_RELIC_LICENSE_KEY is required when new relic is enabled"))
	}

	switch c.Route.Provider {
	case ProviderMapbox, ProviderOSRM:
		if c.Route.BaseURL == "" {
			errs = append(errs, errors.New("ROUTE_BASE_URL is required"))
		}
	case ProviderGoogle:
		if c.Route.GoogleAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required for google"))
		}
	case "":
		// Route features report the provider as unavailable.
	default:
		errs = append(errs, fmt.Errorf("ROUTE_PROVIDER %q is not supported", c.Route.Provider))
	}
	if c.Route.Timeout <= 0 {
		errs = append(errs, errors.New("ROUTE_TIMEOUT must be positive"))
	}

	if c.Fare.BaseCar < 0 || c.Fare.BaseMotorcycle < 0 || c.Fare.SurchargePerKm < 0 {
		errs = append(errs, errors.New("fares must not be negative"))
	}
	if c.Fare.Currency == "" {
		errs = append(errs, errors.New("FARE_CURRENCY is required"))
	}
	if c.Matching.RadiusKm <= 0 {
		errs = append(errs, errors.New("MATCHING_RADIUS_KM must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when brokers are set"))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
