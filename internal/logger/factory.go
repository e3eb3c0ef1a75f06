package logger

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

/*
factory owns the application wide output configuration and every named logger
created so far. Loggers are rebuilt whenever configuration or context changes.
*/
type factory struct {
	mu      sync.Mutex
	config  GlobalConfig
	fields  Context
	base    zerolog.Logger
	loggers map[string]*ContextLogger
	// set after the first configuration has been applied
	configured atomic.Bool
}

var global = newFactory()

func newFactory() *factory {
	return &factory{
		fields:  make(Context),
		base:    zerolog.New(io.Discard),
		loggers: make(map[string]*ContextLogger),
	}
}

// CreateForPackage returns logger named after the package of the caller, ie
// "internal_storage". Level of the logger can be set by that name in PackageLevels.
func CreateForPackage() Logger {
	return global.create(callerPackage(1))
}

// UpdateGlobalConfig replaces the global configuration and reconfigures all the loggers.
func UpdateGlobalConfig(config GlobalConfig) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.apply(config)
}

/*
UpdateGlobalConfigFromFile loads configuration from YAML file, applies "overrides"
to it and then makes it the global configuration. In case of an error the
configuration is not changed.
*/
func UpdateGlobalConfigFromFile(fileName string, overrides ...func(*GlobalConfig)) error {
	config, err := LoadGlobalConfig(fileName)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		o(&config)
	}
	UpdateGlobalConfig(config)
	return nil
}

// SetContext adds field "key" with "value" to the output of all the loggers.
func SetContext(key string, value any) {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.fields[key] = value
	global.rebuildAll()
}

func (f *factory) create(name string) *ContextLogger {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = normalizeName(name)
	if l, ok := f.loggers[name]; ok {
		return l
	}
	l := &ContextLogger{f: f}
	l.zl.Store(f.build(name))
	f.loggers[name] = l
	return l
}

// ensureConfigured applies developer configuration when logger is used before
// anything has been configured.
func (f *factory) ensureConfigured() {
	if f.configured.Load() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.configured.Load() {
		f.apply(developerConfiguration())
	}
}

// apply must be called holding the lock.
func (f *factory) apply(config GlobalConfig) {
	if config.Writer == nil {
		config.Writer = f.config.Writer
	}
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.TimeLocation != "" {
		setTimeLocation(config.TimeLocation)
	}
	f.config = config
	f.base = newBaseLogger(config)
	f.rebuildAll()
	f.configured.Store(true)
}

func (f *factory) rebuildAll() {
	for name, l := range f.loggers {
		l.zl.Store(f.build(name))
	}
}

func (f *factory) build(name string) *zerolog.Logger {
	level, ok := f.config.PackageLevels[name]
	if !ok {
		level = f.config.DefaultLevel
	}
	zl := f.base.Level(toZeroLevel(level))
	if len(f.fields) > 0 {
		zl = zl.With().Fields(map[string]interface{}(f.fields)).Logger()
	}
	if f.config.ShowGoroutineID {
		zl = zl.Hook(goroutineIDHook{})
	}
	return &zl
}

func newBaseLogger(config GlobalConfig) zerolog.Logger {
	var zl zerolog.Logger
	if config.ConsoleFormat {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:          config.Writer,
			TimeFormat:   consoleTimeFormat,
			FormatCaller: shortCaller,
		})
	} else {
		zl = zerolog.New(config.Writer)
	}
	zl = zl.With().Timestamp().Logger()
	if config.ShowCaller {
		zl = zl.With().CallerWithSkipFrameCount(callerSkipFrames).Logger()
	}
	return zl
}

func setTimeLocation(location string) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		loc = time.Local
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(loc)
	}
}
