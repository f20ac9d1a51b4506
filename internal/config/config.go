package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

// SecretConfig locates the store secret. Service/Account address the OS
// keychain entry, FallbackPath the machine-keyed file used when the keychain
// is unavailable.
type SecretConfig struct {
	Service        string        `mapstructure:"service"`
	Account        string        `mapstructure:"account"`
	FallbackPath   string        `mapstructure:"fallback_path"`
	AppDataDir     string        `mapstructure:"app_data_dir"`
	UnlockAttempts int           `mapstructure:"unlock_attempts"`
	UnlockBackoff  time.Duration `mapstructure:"unlock_backoff"`
}

type BackupConfig struct {
	Dir            string        `mapstructure:"dir"`
	MaxImportBytes int64         `mapstructure:"max_import_bytes"`
	ExportLimit    int           `mapstructure:"export_limit"`
	ExportWindow   time.Duration `mapstructure:"export_window"`
	MinPasswordLen int           `mapstructure:"min_password_len"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Secret   SecretConfig   `mapstructure:"secret"`
	Backup   BackupConfig   `mapstructure:"backup"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
}

// Default returns the configuration used when no file overrides a key.
// Paths live under the per-user config directory.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Server: ServerConfig{
			Address: "127.0.0.1",
			Port:    8377,
			Mode:    "release",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "ledger.db"),
		},
		Secret: SecretConfig{
			Service:        "recon-ledger",
			Account:        "store-key",
			FallbackPath:   filepath.Join(dataDir, "store.key"),
			AppDataDir:     dataDir,
			UnlockAttempts: 3,
			UnlockBackoff:  500 * time.Millisecond,
		},
		Backup: BackupConfig{
			Dir:            filepath.Join(dataDir, "backups"),
			MaxImportBytes: 100 << 20,
			ExportLimit:    5,
			ExportWindow:   5 * time.Minute,
			MinPasswordLen: 8,
		},
		JWT: JWTConfig{
			Issuer:      "recon-ledger",
			ExpireHours: 12,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "recon-ledger")
	}
	return "data"
}

// Load reads configuration from path (e.g. "config.yaml"). An empty path
// looks for config.yaml in the working directory and tolerates its absence.
// Environment variables prefixed with RLG_ override file values,
// e.g. RLG_SERVER_PORT=9000.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("RLG") // recon ledger
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); path != "" || !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.log_mode", d.Database.LogMode)

	v.SetDefault("secret.service", d.Secret.Service)
	v.SetDefault("secret.account", d.Secret.Account)
	v.SetDefault("secret.fallback_path", d.Secret.FallbackPath)
	v.SetDefault("secret.app_data_dir", d.Secret.AppDataDir)
	v.SetDefault("secret.unlock_attempts", d.Secret.UnlockAttempts)
	v.SetDefault("secret.unlock_backoff", d.Secret.UnlockBackoff)

	v.SetDefault("backup.dir", d.Backup.Dir)
	v.SetDefault("backup.max_import_bytes", d.Backup.MaxImportBytes)
	v.SetDefault("backup.export_limit", d.Backup.ExportLimit)
	v.SetDefault("backup.export_window", d.Backup.ExportWindow)
	v.SetDefault("backup.min_password_len", d.Backup.MinPasswordLen)

	v.SetDefault("jwt.secret", d.JWT.Secret)
	v.SetDefault("jwt.issuer", d.JWT.Issuer)
	v.SetDefault("jwt.expire_hours", d.JWT.ExpireHours)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
