package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/bftnode/internal/config"
	"github.com/alphabill-org/bftnode/internal/storage"
	"github.com/alphabill-org/bftnode/internal/testutils/testchain"
	"github.com/alphabill-org/bftnode/internal/types"
)

type testConsoleWriter struct {
	lines []string
}

func (w *testConsoleWriter) Println(a ...any) {
	s := fmt.Sprintln(a...)
	w.lines = append(w.lines, s[:len(s)-1]) // remove newline
}

func (w *testConsoleWriter) Printf(format string, a ...any) {
	w.lines = append(w.lines, strings.TrimSuffix(fmt.Sprintf(format, a...), "\n"))
}

func execCommand(t *testing.T, homeDir, command string) (*testConsoleWriter, error) {
	t.Helper()
	outputWriter := &testConsoleWriter{}
	consoleWriter = outputWriter
	t.Cleanup(func() { consoleWriter = stdoutWrapper{} })

	cmd := New()
	args := "--home " + homeDir + " " + command
	cmd.baseCmd.SetArgs(strings.Split(args, " "))
	return outputWriter, cmd.addAndExecuteCommand(context.Background())
}

/*
setupTestHome creates home directory with node configuration and block store
containing "blocks" blocks.
*/
func setupTestHome(t *testing.T, blocks int) (string, *testchain.Setup) {
	t.Helper()
	homeDir := t.TempDir()
	setup := testchain.NewSetup(t, rand.New(rand.NewSource(int64(blocks))), 3)
	setup.PushBlocks(t, blocks)

	cfg := &config.AppConfig{
		ServerAddr:     netip.MustParseAddrPort("127.0.0.1:3054"),
		PublicAddr:     netip.MustParseAddrPort("10.0.0.1:3054"),
		Genesis:        setup.Genesis,
		MaxPayloadSize: 1 << 20,
	}
	require.NoError(t, config.Save(filepath.Join(homeDir, defaultNodeConfigFile), cfg))

	ctx := context.Background()
	s, err := storage.Open(ctx, setup.Genesis, filepath.Join(homeDir, defaultDataDir))
	require.NoError(t, err)
	for _, b := range setup.Blocks {
		require.NoError(t, s.StoreNextBlock(ctx, b))
	}
	require.NoError(t, s.Close())
	return homeDir, setup
}

func decodeBlocks(t *testing.T, lines []string) []*types.Block {
	t.Helper()
	var res []*types.Block
	for _, l := range lines {
		b := &types.Block{}
		require.NoError(t, json.Unmarshal([]byte(l), b))
		res = append(res, b)
	}
	return res
}

func TestBlocksDump(t *testing.T) {
	homeDir, setup := setupTestHome(t, 5)

	out, err := execCommand(t, homeDir, "blocks dump")
	require.NoError(t, err)
	require.Equal(t, setup.Blocks, decodeBlocks(t, out.lines))

	out, err = execCommand(t, homeDir, fmt.Sprintf("blocks dump --from %d", setup.Blocks[3].Number))
	require.NoError(t, err)
	require.Equal(t, setup.Blocks[3:], decodeBlocks(t, out.lines))
}

func TestBlocksDump_EmptyStore(t *testing.T) {
	homeDir, _ := setupTestHome(t, 0)

	out, err := execCommand(t, homeDir, "blocks dump")
	require.NoError(t, err)
	require.Empty(t, out.lines)
}

func TestBlocksDump_DataDirFromEnv(t *testing.T) {
	homeDir, setup := setupTestHome(t, 2)
	newDir := filepath.Join(homeDir, "moved")
	require.NoError(t, os.Rename(filepath.Join(homeDir, defaultDataDir), newDir))

	t.Setenv("BFT_DATA_DIR", newDir)
	out, err := execCommand(t, homeDir, "blocks dump")
	require.NoError(t, err)
	require.Equal(t, setup.Blocks, decodeBlocks(t, out.lines))
}

func TestBlocksDump_StoreLocked(t *testing.T) {
	homeDir, setup := setupTestHome(t, 1)
	s, err := storage.Open(context.Background(), setup.Genesis, filepath.Join(homeDir, defaultDataDir))
	require.NoError(t, err)
	defer s.Close()

	_, err = execCommand(t, homeDir, "blocks dump")
	require.ErrorIs(t, err, storage.ErrLocked)
}

func TestBlocksDump_GenesisMismatch(t *testing.T) {
	homeDir, setup := setupTestHome(t, 1)
	cfg, err := config.Load(filepath.Join(homeDir, defaultNodeConfigFile))
	require.NoError(t, err)
	cfg.Genesis.ForkNumber = setup.Genesis.ForkNumber + 1
	require.NoError(t, config.Save(filepath.Join(homeDir, defaultNodeConfigFile), cfg))

	_, err = execCommand(t, homeDir, "blocks info")
	require.ErrorIs(t, err, storage.ErrGenesisMismatch)
}

func TestBlocksInfo(t *testing.T) {
	homeDir, setup := setupTestHome(t, 3)

	out, err := execCommand(t, homeDir, "blocks info")
	require.NoError(t, err)
	require.Equal(t, []string{
		"Database: " + filepath.Join(homeDir, defaultDataDir, storage.DBFileName),
		"Genesis: " + setup.Genesis.String(),
		fmt.Sprintf("Blocks: %d..%d (3 blocks)", setup.Blocks[0].Number, setup.Blocks[2].Number),
	}, out.lines)

	homeDir, _ = setupTestHome(t, 0)
	out, err = execCommand(t, homeDir, "blocks info")
	require.NoError(t, err)
	require.Equal(t, "Blocks: none", out.lines[2])
}

func TestConfigShow(t *testing.T) {
	homeDir, setup := setupTestHome(t, 0)

	out, err := execCommand(t, homeDir, "config show")
	require.NoError(t, err)
	require.Len(t, out.lines, 3)
	require.Equal(t, "# "+filepath.Join(homeDir, defaultNodeConfigFile), out.lines[0])
	require.True(t, strings.HasPrefix(out.lines[1], "# genesis hash "))
	require.Contains(t, out.lines[2], "serverAddr: 127.0.0.1:3054")
	require.Contains(t, out.lines[2], setup.Genesis.RootHash.String())
}

func TestConfigShow_NoConfig(t *testing.T) {
	_, err := execCommand(t, t.TempDir(), "config show")
	require.ErrorIs(t, err, os.ErrNotExist)

	homeDir, _ := setupTestHome(t, 0)
	_, err = execCommand(t, homeDir, "config show --node-config "+filepath.Join(homeDir, "none.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoggerConfig(t *testing.T) {
	homeDir, _ := setupTestHome(t, 0)

	// explicitly set logger config file must exist
	_, err := execCommand(t, homeDir, "config show --logger-config none.yaml")
	require.ErrorContains(t, err, "logger configuration file")

	require.NoError(t, os.WriteFile(filepath.Join(homeDir, defaultLoggerConfigFile), []byte("defaultLevel: [INFO"), 0600))
	_, err = execCommand(t, homeDir, "config show")
	require.ErrorContains(t, err, "failed to unmarshal logger config")
}

func TestLoggerConfig_FromFile(t *testing.T) {
	homeDir, setup := setupTestHome(t, 2)
	logFile := filepath.Join(homeDir, "node.log")
	loggerCfg := "defaultLevel: ERROR\noutputPath: " + logFile + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(homeDir, defaultLoggerConfigFile), []byte(loggerCfg), 0600))

	// --log-level overrides level of the configuration file
	_, err := execCommand(t, homeDir, "blocks info --log-level INFO")
	require.NoError(t, err)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	var opened map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		if strings.HasPrefix(m["message"].(string), "opened block store") {
			opened = m
		}
	}
	require.NotNil(t, opened, "log: %s", data)
	require.Equal(t, "info", opened["level"])
	require.EqualValues(t, setup.Genesis.ForkNumber, opened["Fork"])
}
