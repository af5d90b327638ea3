package core

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the server,
// the client, and the supporting tools.
type Config struct {
	// Hostname or IP address on which the server listens and to which the client connects.
	Hostname string `mapstructure:"hostname"`
	// Port of the protocol server.
	Port int `mapstructure:"port"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	Server struct {
		// Upper bound on how long the dispatcher may block writing to one client.
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Client struct {
		// Credentials sent in the AuthRequest.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// How often a Ping is sent while the session is active.
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
		// Delay between failed connection attempts.
		ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
		// Delay before retrying a rejected handshake.
		AuthRetryDelay time.Duration `mapstructure:"auth_retry_delay"`
		// Maximum time to wait for an AuthResponse. 0 waits forever.
		AuthTimeout time.Duration `mapstructure:"auth_timeout"`
		// The connection is considered lost if nothing is received for this long. 0 disables.
		ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
	} `mapstructure:"client"`

	Auth struct {
		// Check credentials against the accounts table instead of accepting every handshake.
		VerifyCredentials bool `mapstructure:"verify_credentials"`
		// Lifetime of an issued session token.
		TokenTTL time.Duration `mapstructure:"token_ttl"`
		// Where issued tokens are tracked. Options: memory, redis
		TokenStore string `mapstructure:"token_store"`
	} `mapstructure:"auth"`

	Redis struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"redis"`

	Database struct {
		// Options: sqlite, postgres
		Engine string `mapstructure:"engine"`
		// Database file used by the sqlite engine.
		Filename string `mapstructure:"filename"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Name     string `mapstructure:"name"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Debugging struct {
		// Start the debug HTTP server (metrics and pprof).
		Enabled bool `mapstructure:"enabled"`
		// Port on localhost for the debug HTTP server.
		HTTPPort int `mapstructure:"http_port"`
		// Log the contents of every packet sent and received.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "TETHER"

var defaults = map[string]interface{}{
	"hostname":                         "127.0.0.1",
	"port":                             8080,
	"max_connections":                  100,
	"log_file_path":                    "",
	"log_level":                        "info",
	"server.write_timeout":             "5s",
	"client.username":                  "",
	"client.password":                  "",
	"client.heartbeat_interval":        "1s",
	"client.reconnect_delay":           "1s",
	"client.auth_retry_delay":          "2s",
	"client.auth_timeout":              "10s",
	"client.receive_timeout":           "10s",
	"auth.verify_credentials":          false,
	"auth.token_ttl":                   "24h",
	"auth.token_store":                 "memory",
	"redis.host":                       "127.0.0.1",
	"redis.port":                       6379,
	"database.engine":                  "sqlite",
	"database.filename":                "tether.db",
	"database.host":                    "127.0.0.1",
	"database.port":                    5432,
	"database.name":                    "tether",
	"database.username":                "",
	"database.password":                "",
	"database.sslmode":                 "disable",
	"debugging.enabled":                false,
	"debugging.http_port":              6060,
	"debugging.packet_logging_enabled": false,
}

// LoadConfig reads config.yaml from configPath (if there is one) on top of the
// defaults. Every key can be overridden by an environment variable, for example
// client.username can be set using TETHER_CLIENT_USERNAME.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()
	for _, k := range v.AllKeys() {
		envVar := envVarPrefix + "_" + strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

// ServerAddress returns the host:port the server listens on and the client dials.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// RedisAddress returns the host:port of the redis token store.
func (c *Config) RedisAddress() string {
	return net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port))
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a postgres connection string generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}
