// Package logging defines the Logger interface used throughout the module.
// It also includes functions for setting the global log level and a per-package log level.
package logging

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logLevel      = zapcore.InfoLevel
	packageLevels = make(map[string]zapcore.Level)
	mut           sync.RWMutex
)

// ParseLevel converts a level name to a zap level.
// It returns false if the name is not recognized.
func ParseLevel(level string) (zapcore.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel, true
	case "info":
		return zap.InfoLevel, true
	case "warn":
		return zap.WarnLevel, true
	case "error":
		return zap.ErrorLevel, true
	case "panic":
		return zap.PanicLevel, true
	case "fatal":
		return zap.FatalLevel, true
	}
	return zap.InfoLevel, false
}

func mustParseLevel(level string) zapcore.Level {
	l, ok := ParseLevel(level)
	if !ok {
		panic("invalid log level '" + level + "'")
	}
	return l
}

// SetLogLevel sets the global log level.
func SetLogLevel(levelStr string) {
	level := mustParseLevel(levelStr)
	mut.Lock()
	logLevel = level
	mut.Unlock()
}

// SetPackageLogLevel sets a log level for a package, overriding the global level.
func SetPackageLogLevel(packageName, levelStr string) {
	level := mustParseLevel(levelStr)
	mut.Lock()
	packageLevels[packageName] = level
	mut.Unlock()
}

// Logger is the logging interface used by the paxos packages. It is based on zap.SugaredLogger.
type Logger interface {
	Debug(args ...any)
	Debugf(template string, args ...any)
	Info(args ...any)
	Infof(template string, args ...any)
	Warn(args ...any)
	Warnf(template string, args ...any)
	Error(args ...any)
	Errorf(template string, args ...any)
	Fatal(args ...any)
	Fatalf(template string, args ...any)
	Panic(args ...any)
	Panicf(template string, args ...any)
}

type wrapper struct {
	inner *zap.SugaredLogger
	level zap.AtomicLevel
	mut   sync.Mutex
}

// updateLevel picks the package level of the caller, if one was set.
// It must be called directly from one of the logging methods.
func (wr *wrapper) updateLevel() {
	mut.RLock()
	defer mut.RUnlock()

	if len(packageLevels) == 0 {
		wr.level.SetLevel(logLevel)
		return
	}

	if _, file, _, ok := runtime.Caller(3); ok {
		for pkg, level := range packageLevels {
			if strings.Contains(file, pkg) {
				wr.level.SetLevel(level)
				return
			}
		}
	}
	wr.level.SetLevel(logLevel)
}

func (wr *wrapper) log(f func(*zap.SugaredLogger)) {
	wr.mut.Lock()
	defer wr.mut.Unlock()
	wr.updateLevel()
	f(wr.inner)
}

func (wr *wrapper) Debug(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Debug(args...) }) }
func (wr *wrapper) Info(args ...any)  { wr.log(func(l *zap.SugaredLogger) { l.Info(args...) }) }
func (wr *wrapper) Warn(args ...any)  { wr.log(func(l *zap.SugaredLogger) { l.Warn(args...) }) }
func (wr *wrapper) Error(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Error(args...) }) }
func (wr *wrapper) Fatal(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Fatal(args...) }) }
func (wr *wrapper) Panic(args ...any) { wr.log(func(l *zap.SugaredLogger) { l.Panic(args...) }) }

func (wr *wrapper) Debugf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Debugf(template, args...) })
}

func (wr *wrapper) Infof(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Infof(template, args...) })
}

func (wr *wrapper) Warnf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Warnf(template, args...) })
}

func (wr *wrapper) Errorf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Errorf(template, args...) })
}

func (wr *wrapper) Fatalf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Fatalf(template, args...) })
}

func (wr *wrapper) Panicf(template string, args ...any) {
	wr.log(func(l *zap.SugaredLogger) { l.Panicf(template, args...) })
}

// New returns a new logger for stderr with the given name.
// Set PAXOS_LOG_TYPE=json to get structured output.
func New(name string) Logger {
	var config zap.Config
	if strings.ToLower(os.Getenv("PAXOS_LOG_TYPE")) == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	mut.RLock()
	config.Level.SetLevel(logLevel)
	mut.RUnlock()
	l, err := config.Build(zap.AddCallerSkip(3))
	if err != nil {
		panic(err)
	}
	return &wrapper{inner: l.Sugar().Named(name), level: config.Level}
}

// NewWithDest returns a new logger for the given destination with the given name.
func NewWithDest(dest io.Writer, name string) Logger {
	mut.RLock()
	atom := zap.NewAtomicLevelAt(logLevel)
	mut.RUnlock()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(dest), atom)
	l := zap.New(core, zap.AddCallerSkip(3))
	return &wrapper{inner: l.Sugar().Named(name), level: atom}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &wrapper{inner: zap.NewNop().Sugar(), level: zap.NewAtomicLevel()}
}
