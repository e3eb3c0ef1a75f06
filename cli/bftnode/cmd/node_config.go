package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/bftnode/internal/config"
	"github.com/alphabill-org/bftnode/internal/storage"
)

const (
	defaultNodeConfigFile = "node.yaml"
	defaultDataDir        = "blocks"

	flagNameNodeConfig = "node-config"
	flagNameDataDir    = "data-dir"
)

// nodeConfiguration locates the node configuration file and the block store
// data directory. Relative paths are relative to the home directory.
type nodeConfiguration struct {
	Base *baseConfiguration

	NodeCfgFile string
	DataDir     string
}

func (c *nodeConfiguration) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.NodeCfgFile, flagNameNodeConfig, defaultNodeConfigFile, "node configuration file (YAML). Considered absolute if starts with '/'. Otherwise relative from $BFT_HOME.")
	cmd.PersistentFlags().StringVar(&c.DataDir, flagNameDataDir, defaultDataDir, "block store directory. Considered absolute if starts with '/'. Otherwise relative from $BFT_HOME.")
}

func (c *nodeConfiguration) nodeCfgFilename() string {
	return c.absPath(c.NodeCfgFile)
}

func (c *nodeConfiguration) dataDir() string {
	return c.absPath(c.DataDir)
}

func (c *nodeConfiguration) absPath(fn string) string {
	if filepath.IsAbs(fn) {
		return fn
	}
	return filepath.Join(c.Base.HomeDir, fn)
}

func (c *nodeConfiguration) loadAppConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(c.nodeCfgFilename())
	if err != nil {
		return nil, fmt.Errorf("loading node configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the block store bound to the genesis of the node configuration.
func (c *nodeConfiguration) openStore(ctx context.Context) (*storage.DiskStore, error) {
	cfg, err := c.loadAppConfig()
	if err != nil {
		return nil, err
	}
	s, err := storage.Open(ctx, cfg.Genesis, c.dataDir())
	if err != nil {
		return nil, fmt.Errorf("opening block store: %w", err)
	}
	return s, nil
}
