package logs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cube2222/cursorql/config"
)

var Output *os.File

// Initialize configures the standard logrus logger.
func Initialize(cfg config.LoggingConfig) error {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = logrus.ParseLevel(cfg.Level)
		if err != nil {
			return errors.Wrap(err, "couldn't parse log level")
		}
	}
	logrus.SetLevel(level)

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return errors.Wrap(err, "couldn't create log directory")
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "couldn't create logs file")
	}
	Output = f
	logrus.SetOutput(Output)
	return nil
}

func CloseLogger() {
	if Output == nil {
		return
	}
	logrus.SetOutput(os.Stderr)
	Output.Close()
	Output = nil
}
