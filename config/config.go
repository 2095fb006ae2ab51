package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SeedUser describes a fixture user created at startup so test suites run
// against deterministic accounts.
type SeedUser struct {
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	Name        string   `mapstructure:"name"`
	Email       string   `mapstructure:"email"`
	Roles       []string `mapstructure:"roles"`
	Groups      []string `mapstructure:"groups"`
	Permissions []string `mapstructure:"permissions"`
}

// SeedClient describes a fixture client created at startup.
type SeedClient struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURIs []string `mapstructure:"redirect_uris"`
	Scopes       []string `mapstructure:"scopes"`
}

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	Issuer   string `mapstructure:"ISSUER"`
	Preset   string `mapstructure:"PRESET"`
	KeyFile  string `mapstructure:"KEY_FILE"`

	// Storage selects the code/client/user backend: memory, redis or mongo.
	Storage     string `mapstructure:"STORAGE"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	SeedUsers   []SeedUser   `mapstructure:"seed_users"`
	SeedClients []SeedClient `mapstructure:"seed_clients"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults. Environment variables use the MOCKAUTH_ prefix
// (MOCKAUTH_PRESET, MOCKAUTH_ISSUER, ...).
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("mockauth")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mockauth/")
	v.AddConfigPath("$HOME/.mockauth")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MOCKAUTH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("ISSUER", "http://localhost:3000")
	v.SetDefault("PRESET", "keycloak")
	v.SetDefault("KEY_FILE", "")
	v.SetDefault("STORAGE", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/mockauth")
	v.SetDefault("MONGO_DB_NAME", "mockauth")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	if err := v.ReadInConfig(); err != nil {
		// No config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
