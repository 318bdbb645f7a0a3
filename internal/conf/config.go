// config.go: settings struct and functions to load and save the application configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Log rotation types
const (
	RotationDaily  = "daily"
	RotationWeekly = "weekly"
	RotationSize   = "size"
)

// LogConfig defines the configuration for service log files
type LogConfig struct {
	Enabled  bool   // true to enable this log
	Path     string // path to log file directory
	Rotation string // rotation type, "daily", "weekly" or "size"
	MaxSize  int64  // max size in bytes for size rotation
}

// MainSettings contains general application settings
type MainSettings struct {
	Name string    // name of the node, can be used to identify the deployment
	Log  LogConfig // main log settings, also used as defaults for service file loggers
}

// WebServerSettings contains settings for the HTTP API server
type WebServerSettings struct {
	Enabled bool   // true to enable the web server
	Port    string // port for the web server
	Debug   bool   // true to enable debug logging of requests
}

// ClassifierSettings contains settings for the external classification service
type ClassifierSettings struct {
	Endpoint string // URL of the external classifier prediction endpoint
	Timeout  int    // request timeout in seconds
	Debug    bool   // true to log classifier request and response details
}

// SQLiteSettings contains settings for the SQLite database backend
type SQLiteSettings struct {
	Enabled bool   // true to enable the SQLite backend
	Path    string // path to the database file, ":memory:" for in-memory
}

// MySQLSettings contains settings for the MySQL database backend
type MySQLSettings struct {
	Enabled  bool   // true to enable the MySQL backend
	Username string // username for the database
	Password string // password for the database
	Database string // database name
	Host     string // host of the database
	Port     string // port of the database
}

// OutputSettings contains the database backend configuration
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite backend settings
	MySQL  MySQLSettings  // MySQL backend settings
}

// Settings contains all runtime settings for the application
type Settings struct {
	Debug      bool               // true to enable debug mode
	Main       MainSettings       // general settings
	WebServer  WebServerSettings  // web server settings
	Classifier ClassifierSettings // external classifier settings
	Output     OutputSettings     // database backend settings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Setting returns the current settings instance, or nil if Load has not been called.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Load reads the configuration file and environment variables into a Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Environment variables override file values, e.g. DERMNET_CLASSIFIER_ENDPOINT
	viper.SetEnvPrefix("dermnet")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create one with defaults
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the default settings as a YAML config file and
// loads it back through viper.
func createDefaultConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}

	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the list of directories searched for the
// configuration file, in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	if dir, err := os.Getwd(); err == nil {
		paths = append(paths, dir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		if len(paths) == 0 {
			return nil, fmt.Errorf("error resolving home directory: %w", err)
		}
		return paths, nil
	}
	paths = append(paths, filepath.Join(homeDir, ".config", "dermnet-go"))

	return paths, nil
}
