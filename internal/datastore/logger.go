package datastore

import (
	"log"
	"log/slog"
	"os"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/dermnet/dermnet-go/internal/logging"
)

// getLogger returns the datastore service logger, falling back to the default
// logger when the logging system has not been initialized (tests).
func getLogger() *slog.Logger {
	if logger := logging.ForService("datastore"); logger != nil {
		return logger
	}
	return slog.Default().With("service", "datastore")
}

// createGormLogger builds a GORM logger that stays quiet unless debug mode is
// enabled, in which case slow queries and errors are reported.
func createGormLogger(debug bool) gormlogger.Interface {
	logLevel := gormlogger.Silent
	if debug {
		logLevel = gormlogger.Warn
	}

	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
