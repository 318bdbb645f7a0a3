// validate.go settings validation
package conf

import (
	"fmt"
	"net/url"
	"strconv"
)

// ValidateSettings checks the loaded settings for obvious misconfiguration.
func ValidateSettings(settings *Settings) error {
	if err := validateWebServerSettings(settings); err != nil {
		return err
	}
	if err := validateClassifierSettings(settings); err != nil {
		return err
	}
	return validateOutputSettings(settings)
}

func validateWebServerSettings(settings *Settings) error {
	if !settings.WebServer.Enabled {
		return nil
	}
	port, err := strconv.Atoi(settings.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid web server port: %s", settings.WebServer.Port)
	}
	return nil
}

func validateClassifierSettings(settings *Settings) error {
	if settings.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier endpoint must be configured")
	}
	parsed, err := url.Parse(settings.Classifier.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("classifier endpoint is not a valid URL: %s", settings.Classifier.Endpoint)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("classifier endpoint must use http or https, got %s", parsed.Scheme)
	}
	if settings.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier timeout must be positive, got %d", settings.Classifier.Timeout)
	}
	return nil
}

func validateOutputSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one database backend may be enabled at a time")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("a database backend must be enabled")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("sqlite path must be configured")
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return fmt.Errorf("mysql host and database must be configured")
		}
	}
	return nil
}
