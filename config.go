package tollgate

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/tollgated/tollgate/pkg/logging"
)

// Config configures a ledger instance.
type Config struct {
	// Path is the data directory of the ledger store.
	Path string
	// MinimumFreeGB is a free-space threshold checked when the store
	// opens.
	MinimumFreeGB uint
	// Logger is an optional structured logger for the protocol
	// components. If nil, a stderr logger is used.
	Logger *slog.Logger
	// StoreLogger is an optional logger for the store layer. If nil, a
	// warn-level logger is used.
	StoreLogger *logrus.Logger
	// SkipDiskCheck disables the free-space check. Used by tests.
	SkipDiskCheck bool
}

// fileConfig is the yaml shape of a config file.
type fileConfig struct {
	Path          string `yaml:"path"`
	MinimumFreeGB uint   `yaml:"minimumFreeGB"`
	LogLevel      string `yaml:"logLevel"`
}

// LoadConfig reads a yaml config file and applies defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if fc.Path == "" {
		fc.Path = "tollgate-data"
	}
	if fc.MinimumFreeGB == 0 {
		fc.MinimumFreeGB = 1
	}

	level := slog.LevelInfo
	switch fc.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return Config{
		Path:          fc.Path,
		MinimumFreeGB: fc.MinimumFreeGB,
		Logger:        logging.New(level),
	}, nil
}
