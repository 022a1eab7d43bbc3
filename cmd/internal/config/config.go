// Package config implements configuration for the rulesengine executable
// using https://github.com/spf13/viper.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Keys of the shared config.
const (
	DBKey       = "db"
	LogLevelKey = "loglevel"
)

// Defaults for the shared config.
const (
	DefaultDB       = "rules.db"
	DefaultLogLevel = "error"
)

// Init loads the defaults and tells viper that the config can also come
// from RULESENGINE_<key> environment variables.
func Init() {
	viper.SetDefault(DBKey, DefaultDB)
	viper.SetDefault(LogLevelKey, DefaultLogLevel)

	viper.SetEnvPrefix("RULESENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigType("yaml")
}

// ReadFrom reads the config from file. An empty file is a no-op.
func ReadFrom(file string) error {
	if file == "" {
		return nil
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("could not read the config from %v: %w", file, err)
	}
	if err := viper.ReadConfig(bytes.NewReader(content)); err != nil {
		return fmt.Errorf("could not read the config from %v: %w", file, err)
	}
	return nil
}

// DB is the path of the rule store database.
func DB() string {
	return viper.GetString(DBKey)
}

// LogLevel is the minimum level the CLI logs at.
func LogLevel() string {
	return viper.GetString(LogLevelKey)
}

// NewLogger builds a JSON logger writing to w at level, using zap's
// production encoder.
func NewLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}
