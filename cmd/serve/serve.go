// Package serve provides the command that runs the detection HTTP server.
package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dermnet/dermnet-go/internal/conf"
	"github.com/dermnet/dermnet-go/internal/server"
)

// Command creates the serve command, which starts the HTTP API and blocks
// until the process is signalled to stop.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection HTTP server",
		Long:  "Start the HTTP API that accepts image uploads, classifies them and stores detection records.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().StringVar(&settings.Classifier.Endpoint, "classifier", viper.GetString("classifier.endpoint"), "URL of the image classification service")
	cmd.Flags().IntVar(&settings.Classifier.Timeout, "classifier-timeout", viper.GetInt("classifier.timeout"), "Classifier request timeout in seconds")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
