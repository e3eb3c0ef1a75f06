package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimeLocation = "Local"
	consoleTimeFormat   = "15:04:05.000000"
	// frames between the zerolog event and the code calling the ContextLogger
	callerSkipFrames = 4
)

// GlobalConfig is the application wide logging configuration.
type GlobalConfig struct {
	DefaultLevel LogLevel
	// PackageLevels overrides DefaultLevel for loggers with given (normalized) name.
	PackageLevels   map[string]LogLevel
	Writer          io.Writer
	ConsoleFormat   bool
	ShowCaller      bool
	ShowGoroutineID bool
	// TimeLocation is IANA time zone name, see time.LoadLocation.
	TimeLocation string
}

func init() {
	// levels are controlled per logger
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// developerConfiguration is used when nothing has been configured before the first log call.
func developerConfiguration() GlobalConfig {
	return GlobalConfig{
		DefaultLevel:    DEBUG,
		PackageLevels:   map[string]LogLevel{},
		Writer:          os.Stdout,
		ConsoleFormat:   true,
		ShowCaller:      true,
		ShowGoroutineID: true,
		TimeLocation:    defaultTimeLocation,
	}
}

// LoadGlobalConfig reads logger configuration from YAML file.
func LoadGlobalConfig(fileName string) (GlobalConfig, error) {
	type LoggerConfiguration struct {
		DefaultLevel    string            `yaml:"defaultLevel"`
		PackageLevels   map[string]string `yaml:"packageLevels"`
		OutputPath      string            `yaml:"outputPath"`
		ConsoleFormat   bool              `yaml:"consoleFormat"`
		ShowCaller      bool              `yaml:"showCaller"`
		TimeLocation    string            `yaml:"timeLocation"`
		ShowGoroutineID bool              `yaml:"showGoroutineID"`
	}

	yamlFile, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("failed to read logger config file: %w", err)
	}
	config := &LoggerConfiguration{}
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return GlobalConfig{}, fmt.Errorf("failed to unmarshal logger config: %w", err)
	}

	globalConfig := GlobalConfig{
		DefaultLevel:    LevelFromString(config.DefaultLevel),
		PackageLevels:   make(map[string]LogLevel),
		Writer:          os.Stdout,
		ConsoleFormat:   config.ConsoleFormat,
		ShowCaller:      config.ShowCaller,
		TimeLocation:    config.TimeLocation,
		ShowGoroutineID: config.ShowGoroutineID,
	}
	switch strings.ToLower(config.OutputPath) {
	case "", "stdout":
	case "stderr":
		globalConfig.Writer = os.Stderr
	case "discard":
		globalConfig.Writer = io.Discard
	default:
		file, err := os.OpenFile(config.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return GlobalConfig{}, fmt.Errorf("failed to open log file: %w", err)
		}
		globalConfig.Writer = file
	}
	for k, v := range config.PackageLevels {
		globalConfig.PackageLevels[k] = LevelFromString(v)
	}
	return globalConfig, nil
}
