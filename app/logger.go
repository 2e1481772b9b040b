package app

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envKey      = "APP_ENV"
	production  = "production"
	development = "development"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the process wide zap logger.
//
// The environment is taken from APP_ENV, falling back to `log.env` in the
// configuration and finally to "development". `log.level` overrides the level of
// the selected preset.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		logger = buildLogger()
	})
	return logger
}

func buildLogger() *zap.Logger {
	env := os.Getenv(envKey)
	level := ""
	if res := Config(); res.IsOk() {
		v := res.MustGet()
		if env == "" {
			env = v.GetString("log.env")
		}
		level = v.GetString("log.level")
	}

	var config zap.Config
	if env == production {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if level != "" {
		if lvl, err := zap.ParseAtomicLevel(level); err == nil {
			config.Level = lvl
		}
	}

	l, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
