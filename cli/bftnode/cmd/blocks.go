package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/bftnode/internal/logger"
	"github.com/alphabill-org/bftnode/internal/storage"
	"github.com/alphabill-org/bftnode/internal/types"
)

var log = logger.CreateForPackage()

func newBlocksCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &nodeConfiguration{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Inspect the block store of the node",
	}
	config.addFlags(cmd)
	cmd.AddCommand(newBlocksDumpCmd(config))
	cmd.AddCommand(newBlocksInfoCmd(config))
	return cmd
}

func newBlocksDumpCmd(config *nodeConfiguration) *cobra.Command {
	var from uint64
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Prints stored blocks as JSON, one block per line",
		Long:  "Prints stored blocks as JSON, one block per line. Fails when the stored blocks do not form a contiguous sequence.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpBlocks(cmd, config, from)
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "number of the first block to dump (default is the first block of the genesis)")
	return cmd
}

func dumpBlocks(cmd *cobra.Command, config *nodeConfiguration, from uint64) (rErr error) {
	store, err := config.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil && rErr == nil {
			rErr = err
		}
	}()

	g, ctx := errgroup.WithContext(cmd.Context())
	blocks := make(chan *types.Block, 16)
	g.Go(func() error {
		defer close(blocks)
		return storage.Walk(ctx, store, from, func(b *types.Block) error {
			select {
			case blocks <- b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
	g.Go(func() error {
		cnt := 0
		for b := range blocks {
			data, err := json.Marshal(b)
			if err != nil {
				return fmt.Errorf("encoding block %d: %w", b.Number, err)
			}
			consoleWriter.Println(string(data))
			cnt++
		}
		log.Debug("dumped %d blocks", cnt)
		return nil
	})
	return g.Wait()
}

func newBlocksInfoCmd(config *nodeConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Prints summary of the block store",
		RunE: func(cmd *cobra.Command, args []string) (rErr error) {
			store, err := config.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil && rErr == nil {
					rErr = err
				}
			}()

			last, ok, err := store.LastBlockNumber(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading last block number: %w", err)
			}
			genesis := store.Genesis()
			consoleWriter.Printf("Database: %s\n", store.Path())
			consoleWriter.Printf("Genesis: %s\n", genesis)
			if !ok {
				consoleWriter.Println("Blocks: none")
				return nil
			}
			consoleWriter.Printf("Blocks: %d..%d (%d blocks)\n", genesis.FirstBlock, last, last-genesis.FirstBlock+1)
			return nil
		},
	}
}
