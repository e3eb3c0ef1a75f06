package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/bftnode/internal/logger"
)

type baseConfiguration struct {
	// The bftnode home directory
	HomeDir string
	// Configuration file URL. If it's relative, then it's relative from the HomeDir.
	CfgFile string
	// Logger configuration file URL.
	LogCfgFile string
}

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "BFT"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// the default bftnode directory.
	defaultBftnodeDir = ".bftnode"
	// The default logger configuration file name.
	defaultLoggerConfigFile = "logger-config.yaml"
	// The configuration key for home directory.
	keyHome = "home"
	// The configuration key for config file name.
	keyConfig = "config"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogLevel      = "log-level"
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the BFT_HOME for this invocation (default is %s)", bftnodeHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $BFT_HOME/%s)", defaultConfigFile))
	cmd.PersistentFlags().StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file URL. Considered absolute if starts with '/'. Otherwise relative from $BFT_HOME.")
	// no default value so that value from the logger config file is used unless the flag is set
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: NONE, ERROR, WARNING, INFO, DEBUG, TRACE")
}

func (r *baseConfiguration) initConfigFileLocation() {
	// Home directory and config file are loaded from command line argument, then from env, then default is used.
	if r.HomeDir == "" {
		r.HomeDir = os.Getenv(envKey(keyHome))
		if r.HomeDir == "" {
			r.HomeDir = bftnodeHomeDir()
		}
	}

	if r.CfgFile == "" {
		r.CfgFile = os.Getenv(envKey(keyConfig))
		if r.CfgFile == "" {
			r.CfgFile = defaultConfigFile
		}
	}
	if !filepath.IsAbs(r.CfgFile) {
		r.CfgFile = filepath.Join(r.HomeDir, r.CfgFile)
	}
}

/*
LoggerCfgFilename always returns non-empty filename - either the value
of the flag set by user or default cfg location.
*/
func (r *baseConfiguration) LoggerCfgFilename() string {
	if !filepath.IsAbs(r.LogCfgFile) {
		return filepath.Join(r.HomeDir, r.LogCfgFile)
	}
	return r.LogCfgFile
}

func (r *baseConfiguration) configFileExists() bool {
	_, err := os.Stat(r.CfgFile)
	return err == nil
}

/*
initLogger configures global logger from the logger configuration file (when it
exists) and the --log-level flag. Command output goes to stdout so log is
written to stderr unless configured otherwise.
*/
func (r *baseConfiguration) initLogger(cmd *cobra.Command) error {
	var overrides []func(*logger.GlobalConfig)
	if cmd.Flags().Changed(flagNameLogLevel) {
		level, err := cmd.Flags().GetString(flagNameLogLevel)
		if err != nil {
			return fmt.Errorf("failed to read %s flag value: %w", flagNameLogLevel, err)
		}
		overrides = append(overrides, func(c *logger.GlobalConfig) { c.DefaultLevel = logger.LevelFromString(level) })
	}

	loggerCfgFile := filepath.Clean(r.LoggerCfgFilename())
	_, err := os.Stat(loggerCfgFile)
	switch {
	case err == nil:
		return logger.UpdateGlobalConfigFromFile(loggerCfgFile, overrides...)
	case errors.Is(err, os.ErrNotExist) && loggerCfgFile == filepath.Join(r.HomeDir, defaultLoggerConfigFile):
		cfg := logger.GlobalConfig{
			DefaultLevel:  logger.WARNING,
			Writer:        os.Stderr,
			ConsoleFormat: true,
		}
		for _, o := range overrides {
			o(&cfg)
		}
		logger.UpdateGlobalConfig(cfg)
		return nil
	default:
		return fmt.Errorf("logger configuration file: %w", err)
	}
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}

func bftnodeHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultBftnodeDir)
}
