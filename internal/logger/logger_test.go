package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// resetGlobalFactory discards all the loggers and global output configuration
// and directs output of the new configuration into returned buffer.
func resetGlobalFactory(t *testing.T, cfg GlobalConfig) *bytes.Buffer {
	t.Helper()
	prev := global
	global = newFactory()
	t.Cleanup(func() { global = prev })
	buf := &bytes.Buffer{}
	cfg.Writer = buf
	UpdateGlobalConfig(cfg)
	return buf
}

func create(name string) Logger {
	return global.create(name)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var res []map[string]any
	dec := json.NewDecoder(buf)
	for {
		m := map[string]any{}
		if err := dec.Decode(&m); err == io.EOF {
			return res
		} else {
			require.NoError(t, err)
		}
		res = append(res, m)
	}
}

func Test_LevelFromString(t *testing.T) {
	var cases = []struct {
		name  string
		level LogLevel
	}{
		{"NONE", NONE},
		{"error", ERROR},
		{"WARNING", WARNING},
		{"warn", WARNING},
		{"InfO", INFO},
		{"DEBUG", DEBUG},
		{"TRACE", TRACE},
		{"", DEBUG},
		{"foo", DEBUG},
	}
	for _, tc := range cases {
		if lvl := LevelFromString(tc.name); lvl != tc.level {
			t.Errorf("expected %q to return %s but got %s", tc.name, tc.level, lvl)
		}
	}
}

func Test_LevelRoundTrip(t *testing.T) {
	for _, lvl := range []LogLevel{NONE, ERROR, WARNING, INFO, DEBUG, TRACE} {
		require.Equal(t, lvl, fromZeroLevel(toZeroLevel(lvl)))
		require.Equal(t, lvl, LevelFromString(lvl.String()))
	}
	require.Panics(t, func() { toZeroLevel(TRACE + 1) })
}

func Test_packageOf(t *testing.T) {
	var cases = []struct {
		funcName string
		pkg      string
	}{
		{"github.com/alphabill-org/bftnode/internal/storage.Open", "internal/storage"},
		{"github.com/alphabill-org/bftnode/internal/storage.(*DiskStore).Close", "internal/storage"},
		{"github.com/alphabill-org/bftnode/internal/storage.init", "internal/storage"},
		{"github.com/alphabill-org/bftnode/cli/bftnode/cmd.newBlocksCmd.func1", "cli/bftnode/cmd"},
		{"example.org/other/pkg.Func", "example.org/other/pkg"},
		{"main.main", "main"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.pkg, packageOf(tc.funcName), tc.funcName)
	}
	require.Equal(t, "internal/logger", callerPackage(0))
}

func Test_normalizeName(t *testing.T) {
	require.Equal(t, "internal_storage", normalizeName("internal/storage"))
	require.Equal(t, "foo_bar_1", normalizeName("foo.bar-1"))
	require.Equal(t, "a_b", normalizeName("aäb"))
}

func Test_CreateForPackage(t *testing.T) {
	resetGlobalFactory(t, GlobalConfig{DefaultLevel: INFO, PackageLevels: map[string]LogLevel{"internal_logger": TRACE}})

	l := CreateForPackage()
	require.Same(t, l, CreateForPackage())
	require.Same(t, l, create("internal.logger"), "names are normalized")
	require.Contains(t, global.loggers, "internal_logger")
	require.Equal(t, TRACE, l.GetLevel())
	require.Equal(t, INFO, create("other").GetLevel())
}

func Test_LevelFiltering(t *testing.T) {
	buf := resetGlobalFactory(t, GlobalConfig{
		DefaultLevel:  WARNING,
		PackageLevels: map[string]LogLevel{"verbose": TRACE},
	})

	quiet := create("quiet")
	verbose := create("verbose")
	require.Equal(t, WARNING, quiet.GetLevel())
	require.Equal(t, TRACE, verbose.GetLevel())

	quiet.Info("not logged")
	quiet.Warning("block %d", 42)
	verbose.Trace("100% done")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	require.Equal(t, "warn", lines[0]["level"])
	require.Equal(t, "block 42", lines[0]["message"])
	require.Equal(t, "trace", lines[1]["level"])
	require.Equal(t, "100% done", lines[1]["message"])
}

func Test_UpdateGlobalConfig(t *testing.T) {
	buf := resetGlobalFactory(t, GlobalConfig{DefaultLevel: ERROR})

	// logger created before the configuration changes follows it
	l := create("existing")
	l.Info("not logged")
	UpdateGlobalConfig(GlobalConfig{DefaultLevel: INFO})
	require.Equal(t, INFO, l.GetLevel())
	l.Info("logged")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1, "writer is kept when new configuration has none")
	require.Equal(t, "logged", lines[0]["message"])
}

func Test_ChangeLevel(t *testing.T) {
	buf := resetGlobalFactory(t, GlobalConfig{DefaultLevel: ERROR})

	l := create("changing")
	l.Info("first")
	l.ChangeLevel(DEBUG)
	require.Equal(t, DEBUG, l.GetLevel())
	l.Info("second")
	l.ChangeLevel(NONE)
	l.Error("third")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	require.Equal(t, "second", lines[0]["message"])
}

func Test_SetContext(t *testing.T) {
	buf := resetGlobalFactory(t, GlobalConfig{DefaultLevel: INFO})

	l := create("ctx")
	l.Info("without context")
	SetContext(KeyFork, 3)
	l.Info("with context")
	create("created later").Info("with context too")
	SetContext(KeyFork, 4)
	l.Info("replaced")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)
	require.NotContains(t, lines[0], KeyFork)
	require.EqualValues(t, 3, lines[1][KeyFork])
	require.EqualValues(t, 3, lines[2][KeyFork])
	require.EqualValues(t, 4, lines[3][KeyFork])
}

func Test_ConcurrentReconfiguration(t *testing.T) {
	resetGlobalFactory(t, GlobalConfig{DefaultLevel: DEBUG})
	l := create("concurrent")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			SetContext(KeyFork, i)
		}
	}()
	for i := 0; i < 100; i++ {
		l.Debug("message %d", i)
	}
	<-done
}

func Test_GoroutineID(t *testing.T) {
	buf := resetGlobalFactory(t, GlobalConfig{DefaultLevel: INFO, ShowGoroutineID: true})

	create("goid").Info("msg")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	require.NotZero(t, lines[0]["GoID"])
	require.NotZero(t, goroutineID())
}

func Test_ShowCaller(t *testing.T) {
	buf := resetGlobalFactory(t, GlobalConfig{DefaultLevel: INFO, ShowCaller: true})

	create("caller").Info("msg")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0]["caller"], "logger_test.go")
}

func Test_LoadGlobalConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("file does not exist", func(t *testing.T) {
		_, err := LoadGlobalConfig(filepath.Join(dir, "none.yaml"))
		require.ErrorContains(t, err, "failed to read logger config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		fn := filepath.Join(dir, "invalid.yaml")
		require.NoError(t, os.WriteFile(fn, []byte("defaultLevel: [INFO"), 0600))
		_, err := LoadGlobalConfig(fn)
		require.ErrorContains(t, err, "failed to unmarshal logger config")
	})

	t.Run("valid config", func(t *testing.T) {
		fn := filepath.Join(dir, "logger.yaml")
		outFile := filepath.Join(dir, "out.log")
		content := "defaultLevel: WARNING\n" +
			"outputPath: " + outFile + "\n" +
			"consoleFormat: true\n" +
			"showGoroutineID: true\n" +
			"timeLocation: UTC\n" +
			"packageLevels:\n  internal_storage: TRACE\n"
		require.NoError(t, os.WriteFile(fn, []byte(content), 0600))

		cfg, err := LoadGlobalConfig(fn)
		require.NoError(t, err)
		require.Equal(t, WARNING, cfg.DefaultLevel)
		require.Equal(t, map[string]LogLevel{"internal_storage": TRACE}, cfg.PackageLevels)
		require.True(t, cfg.ConsoleFormat)
		require.False(t, cfg.ShowCaller)
		require.True(t, cfg.ShowGoroutineID)
		require.Equal(t, "UTC", cfg.TimeLocation)
		f, ok := cfg.Writer.(*os.File)
		require.True(t, ok)
		require.Equal(t, outFile, f.Name())
		require.NoError(t, f.Close())
	})

	t.Run("well known outputs", func(t *testing.T) {
		for path, w := range map[string]io.Writer{"": os.Stdout, "stderr": os.Stderr, "DISCARD": io.Discard} {
			fn := filepath.Join(dir, "out.yaml")
			require.NoError(t, os.WriteFile(fn, []byte("outputPath: \""+path+"\"\n"), 0600))
			cfg, err := LoadGlobalConfig(fn)
			require.NoError(t, err)
			require.Equal(t, w, cfg.Writer, "output path %q", path)
		}
	})
}

func Test_UpdateGlobalConfigFromFile(t *testing.T) {
	buf := resetGlobalFactory(t, GlobalConfig{DefaultLevel: ERROR})
	l := create("internal_storage")

	err := UpdateGlobalConfigFromFile(filepath.Join(t.TempDir(), "none.yaml"))
	require.ErrorContains(t, err, "failed to read logger config file")
	require.Equal(t, ERROR, l.GetLevel(), "configuration must not change on error")

	fn := filepath.Join(t.TempDir(), "logger.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("defaultLevel: WARNING\npackageLevels:\n  internal_storage: INFO\n"), 0600))
	require.NoError(t, UpdateGlobalConfigFromFile(fn, func(c *GlobalConfig) { c.Writer = buf }))
	require.Equal(t, INFO, l.GetLevel())
	require.Equal(t, WARNING, create("other").GetLevel())

	require.NoError(t, UpdateGlobalConfigFromFile(fn,
		func(c *GlobalConfig) { c.Writer = buf },
		func(c *GlobalConfig) { c.PackageLevels = nil; c.DefaultLevel = TRACE },
	))
	require.Equal(t, TRACE, l.GetLevel())
	l.Trace("traced")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	require.Equal(t, "traced", lines[0]["message"])
}

func Test_shortCaller(t *testing.T) {
	sep := string(os.PathSeparator)
	require.Equal(t, "", shortCaller(nil))
	require.Equal(t, "a.go:1", shortCaller("a.go:1"))
	require.Equal(t, "b"+sep+"a.go:1", shortCaller("b"+sep+"a.go:1"))
	require.Equal(t, "c"+sep+"b"+sep+"a.go:1", shortCaller("c"+sep+"b"+sep+"a.go:1"))
	require.Equal(t, "c"+sep+"b"+sep+"a.go:1", shortCaller(sep+"x"+sep+"c"+sep+"b"+sep+"a.go:1"))
}
