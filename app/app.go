package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

const (
	cfgName     = "application"
	testCfgName = "application_test"
	cfgType     = "yml"
)

var (
	cfg    *viper.Viper
	cfgErr error
	once   sync.Once
)

// Config loads the application configuration.
//
// Rules:
//  1. When running under `go test`, application_test.yml is preferred.
//  2. Otherwise application.yml is used.
//  3. Both are searched in the project root, the current working directory and
//     the "config" sub directory of each.
//
// A missing file is reported as an error; a malformed file is reported with the
// parser error wrapped.
func Config() mo.Result[*viper.Viper] {
	once.Do(func() {
		cfg, cfgErr = loadViper()
	})
	if cfgErr != nil {
		return mo.Err[*viper.Viper](cfgErr)
	}
	return lo.If(cfg == nil, mo.Err[*viper.Viper](fmt.Errorf("can not find %s.%s", cfgName, cfgType))).Else(mo.Ok(cfg))
}

func loadViper() (*viper.Viper, error) {
	names := []string{cfgName}
	if testing.Testing() {
		names = []string{testCfgName, cfgName}
	}
	for _, name := range names {
		for _, dir := range searchPaths() {
			cand := filepath.Join(dir, name+"."+cfgType)
			if _, err := os.Stat(cand); err != nil {
				continue
			}
			v := viper.New()
			v.SetConfigFile(cand)
			if err := v.ReadInConfig(); err != nil {
				var parseErr viper.ConfigParseError
				if errors.As(err, &parseErr) {
					return nil, fmt.Errorf("read %s: %w", cand, err)
				}
				continue
			}
			return v, nil
		}
	}
	return nil, nil
}

// searchPaths lists the directories scanned for configuration files: the
// project root and the working directory, each followed by its config dir.
func searchPaths() []string {
	cwd, err := os.Getwd()
	if err != nil {
		return []string{".", "config"}
	}
	bases := []string{cwd}
	if root, ok := projectRoot(cwd).Get(); ok {
		bases = []string{root, cwd}
	}
	return lo.Uniq(lo.FlatMap(bases, func(dir string, _ int) []string {
		return []string{dir, filepath.Join(dir, "config")}
	}))
}

// projectRoot returns the nearest directory at or above dir holding a go.mod.
func projectRoot(dir string) mo.Option[string] {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return mo.Some(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return mo.None[string]()
		}
		dir = parent
	}
}

// reset drops the cached configuration and logger. Tests only.
func reset() {
	cfg, cfgErr = nil, nil
	once = sync.Once{}
	logger = nil
	loggerOnce = sync.Once{}
}
