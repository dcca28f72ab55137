// Command mofkad runs one Mofka Provider as a standalone network
// daemon: a single address hosting zero or more PartitionManagers,
// reachable by mofkactl and any Driver that dials it (spec.md §4.5,
// grounded on original_source/include/mofka/Provider.hpp). Its
// configuration loading follows internal/config, env vars under a
// MOFKA_ prefix overlaid by an optional JSON file, the way the
// teacher threads GlobalState.FS through instead of touching disk
// directly.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mochi-hpc/mofka-sub001/internal/config"
	"github.com/mochi-hpc/mofka-sub001/internal/log"
	"github.com/mochi-hpc/mofka-sub001/pkg/policy"
	"github.com/mochi-hpc/mofka-sub001/pkg/provider"
	"github.com/mochi-hpc/mofka-sub001/pkg/transport"
)

func newRootCommand() *cobra.Command {
	var configPath, address, logFormat string
	var noColor, verbose bool

	root := &cobra.Command{
		Use:           "mofkad",
		Short:         "run a Mofka provider daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file overlaying MOFKA_ env vars")
	root.PersistentFlags().StringVarP(&address, "address", "a", "", "address to listen on (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log output format: text or json (overrides config)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "listen and serve Provider RPCs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDaemon(afero.NewOsFs(), configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				cfg.ListenAddress = address
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}

			logger := log.New(os.Stderr, log.Format(cfg.LogFormat))
			if noColor {
				if tf, ok := logger.Formatter.(*logrus.TextFormatter); ok {
					tf.ForceColors, tf.DisableColors = false, true
				}
			}
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			return runServe(cmd.Context(), cfg, logger)
		},
	}
	root.AddCommand(serveCmd)
	return root
}

func runServe(ctx context.Context, cfg config.Daemon, logger *logrus.Logger) error {
	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}

	policy.LibraryDir = cfg.PluginLibraryDir

	p := provider.New(ln.Addr().String(), logger)
	server := transport.NewServer(ln, logger)
	server.SetConcurrencyLimit(cfg.PoolSize)
	p.AttachHandlers(server)

	logger.WithField("address", ln.Addr().String()).Info("mofkad listening")

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sig:
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
	return server.Close()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mofkad:", err)
		os.Exit(1)
	}
}
