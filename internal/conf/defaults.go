// defaults.go default values for application settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "DermNet-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	// Web server settings
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	// External classifier settings
	viper.SetDefault("classifier.endpoint", "https://khizarali07-kidney-cancer-backend.hf.space/api/v1/predict/image")
	viper.SetDefault("classifier.timeout", 45)
	viper.SetDefault("classifier.debug", false)

	// Database output settings
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "dermnet.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "dermnet")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "dermnet")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
