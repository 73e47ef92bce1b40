package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/fxdesk/rfstrader/pkg/secrets"
)

// MaxHeartbeatSecs is the venue's hard ceiling on the negotiated heartbeat
// interval.
const MaxHeartbeatSecs = 10

type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Venue   VenueConfig       `mapstructure:"venue"`
	Server  ServerConfig      `mapstructure:"server"`
	Logging LoggingConfig     `mapstructure:"logging"`
	GCP     GCPConfig         `mapstructure:"gcp"`
}

type SessionConfig struct {
	BeginString     string  `mapstructure:"begin_string"`
	SenderCompID    string  `mapstructure:"sender_comp_id"`
	TargetCompID    string  `mapstructure:"target_comp_id"`
	Host            string  `mapstructure:"host"`
	Port            int     `mapstructure:"port"`
	Username        string  `mapstructure:"username"`
	Password        string  `mapstructure:"password"`
	HeartbeatSecs   int     `mapstructure:"heartbeat_secs"`
	ResetSeqNum     bool    `mapstructure:"reset_seq_num"`
	RequestIDPrefix string  `mapstructure:"request_id_prefix"`
	RequestsPerSec  float64 `mapstructure:"requests_per_sec"`
}

type ProviderConfig struct {
	CompID  string `mapstructure:"comp_id"`
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`
}

type VenueConfig struct {
	Providers       []ProviderConfig `mapstructure:"providers"`
	AuthorizedPairs []string         `mapstructure:"authorized_pairs"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type GCPConfig struct {
	ProjectID   string              `mapstructure:"project_id"`
	UseSecrets  bool                `mapstructure:"use_secrets"`
	SecretNames secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/rfstrader")
	}

	v.SetEnvPrefix("RFS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	return &config, nil
}

// Validate checks the session surface. Most problems are warnings so a
// partially configured process can still start for inspection; a heartbeat
// above the venue ceiling is the one hard failure, since the venue will
// drop the session anyway.
func (c *Config) Validate(logger *logrus.Logger) error {
	if c.Session.HeartbeatSecs > MaxHeartbeatSecs {
		return fmt.Errorf("heartbeat interval %ds exceeds the venue maximum of %ds", c.Session.HeartbeatSecs, MaxHeartbeatSecs)
	}
	if c.Session.SenderCompID == "" {
		logger.Warn("session.sender_comp_id is not set")
	}
	if c.Session.TargetCompID == "" {
		logger.Warn("session.target_comp_id is not set")
	}
	if c.Session.Host == "" {
		logger.Warn("session.host is not set")
	}
	if c.Session.Username == "" || c.Session.Password == "" {
		logger.Warn("session credentials are not set")
	}
	if len(c.Venue.Providers) == 0 {
		logger.Warn("no liquidity providers configured, waiting on venue directory")
	}
	if len(c.Venue.AuthorizedPairs) == 0 {
		logger.Warn("no authorized currency pairs configured")
	}
	return nil
}

// PairAuthorized reports whether a pair may be requested. An empty table
// authorizes everything.
func (c *Config) PairAuthorized(pair string) bool {
	if len(c.Venue.AuthorizedPairs) == 0 {
		return true
	}
	for _, p := range c.Venue.AuthorizedPairs {
		if p == pair {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	// Session defaults
	v.SetDefault("session.begin_string", "FIX.4.4")
	v.SetDefault("session.port", 9880)
	v.SetDefault("session.heartbeat_secs", 10)
	v.SetDefault("session.reset_seq_num", true)
	v.SetDefault("session.request_id_prefix", "FENICS.DESK1.")
	v.SetDefault("session.requests_per_sec", 5.0)

	// Server defaults
	v.SetDefault("server.port", 8080)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.session_username", secretNames.SessionUsername)
	v.SetDefault("gcp.secret_names.session_password", secretNames.SessionPassword)
	v.SetDefault("gcp.secret_names.sender_comp_id", secretNames.SenderCompID)
}

func overrideFromEnv(config *Config) {
	if username := os.Getenv("RFS_SESSION_USERNAME"); username != "" {
		config.Session.Username = username
	}
	if password := os.Getenv("RFS_SESSION_PASSWORD"); password != "" {
		config.Session.Password = password
	}
	if sender := os.Getenv("RFS_SENDER_COMP_ID"); sender != "" {
		config.Session.SenderCompID = sender
	}
	if target := os.Getenv("RFS_TARGET_COMP_ID"); target != "" {
		config.Session.TargetCompID = target
	}
	if host := os.Getenv("RFS_SESSION_HOST"); host != "" {
		config.Session.Host = host
	}
	if port := os.Getenv("RFS_SESSION_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Session.Port = p
		}
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets that are not already set
	if config.Session.Username == "" {
		config.Session.Username = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.SessionUsername, "")
	}
	if config.Session.Password == "" {
		config.Session.Password = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.SessionPassword, "")
	}
	if config.Session.SenderCompID == "" {
		config.Session.SenderCompID = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.SenderCompID, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
