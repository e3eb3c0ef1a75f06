package cmd

import (
	"crypto"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &nodeConfiguration{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the node configuration",
	}
	config.addFlags(cmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Validates and prints the node configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.loadAppConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}
			h, err := cfg.Genesis.Hash(crypto.SHA256)
			if err != nil {
				return err
			}
			consoleWriter.Printf("# %s\n", config.nodeCfgFilename())
			consoleWriter.Printf("# genesis hash %X\n", h)
			consoleWriter.Println(string(data))
			return nil
		},
	})
	return cmd
}
