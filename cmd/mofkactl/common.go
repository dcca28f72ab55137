// Command mofkactl is the operator-facing CLI over a running mofkad:
// topic/partition administration plus ad hoc produce/consume,
// structured the way the teacher's cmd package splits one cobra
// subcommand per file sharing a package-level logger and flag set
// (cmd/run.go, cmd/status.go, ...), generalized from a single load
// generator's subcommands to Mofka's admin/producer/consumer surface.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/mochi-hpc/mofka-sub001/internal/config"
	"github.com/mochi-hpc/mofka-sub001/internal/log"
	"github.com/mochi-hpc/mofka-sub001/pkg/driver"
	"github.com/mochi-hpc/mofka-sub001/pkg/metadata"
)

type globalFlags struct {
	configPath string
	address    string
	logFormat  string
	verbose    bool
	noColor    bool
}

// resolve overlays MOFKA_ env vars and an optional JSON config file
// onto f, letting any flag the caller explicitly set on cmd win.
func (f *globalFlags) resolve(addressChanged, logFormatChanged bool) error {
	cfg, err := config.LoadClient(afero.NewOsFs(), f.configPath)
	if err != nil {
		return err
	}
	if !addressChanged {
		f.address = cfg.ServerAddress
	}
	if !logFormatChanged {
		f.logFormat = cfg.LogFormat
	}
	return nil
}

func newLogger(f globalFlags) *logrus.Logger {
	logger := log.New(os.Stderr, log.Format(f.logFormat))
	if f.noColor {
		if tf, ok := logger.Formatter.(*logrus.TextFormatter); ok {
			tf.ForceColors, tf.DisableColors = false, true
		}
	}
	if f.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func persistentFlagSet(f *globalFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVarP(&f.configPath, "config", "c", "", "JSON config file overlaying MOFKA_ env vars")
	flags.StringVarP(&f.address, "address", "a", "", "mofkad address to connect to (overrides config)")
	flags.StringVar(&f.logFormat, "log-format", "", "log output format: text or json (overrides config)")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	return flags
}

func connect(f globalFlags) (*driver.Driver, error) {
	d, err := driver.Connect(f.address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", f.address, err)
	}
	return d, nil
}

// parseMetadata parses raw as a JSON document, defaulting to "{}"
// when raw is empty (the usual CLI convenience of an optional flag).
func parseMetadata(raw string) (metadata.Metadata, error) {
	if raw == "" {
		return metadata.Empty(), nil
	}
	return metadata.New([]byte(raw))
}
