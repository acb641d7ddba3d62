// Package app builds the squawk-bridge command tree.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/opensquawk/simbridge/cmd/squawk-bridge/app/options"
	"github.com/opensquawk/simbridge/internal/bridge/identity"
	"github.com/opensquawk/simbridge/internal/bridge/runtime"
	"github.com/opensquawk/simbridge/internal/bridge/transport"
	"github.com/opensquawk/simbridge/internal/simsource"
	_ "github.com/opensquawk/simbridge/internal/simsource/mqttsource"
	_ "github.com/opensquawk/simbridge/internal/simsource/synthetic"
	"github.com/opensquawk/simbridge/internal/statusserver"
	"github.com/opensquawk/simbridge/pkg/log"
)

const (
	commandName = "squawk-bridge"
	commandDesc = `The OpenSquawk bridge pairs a flight simulator with an OpenSquawk
account and streams cockpit telemetry to the backend: a status heartbeat
while idle, full telemetry while a flight is active, and inbound cockpit
commands applied back into the simulator.`

	envPrefix = "SQUAWK_BRIDGE"
)

// NewCommand builds the root command with its subcommands.
func NewCommand() *cobra.Command {
	opts := options.NewBridgeOptions()
	configFile := ""

	cmd := &cobra.Command{
		Use:          commandName,
		Short:        "Stream flight simulator telemetry to OpenSquawk",
		Long:         commandDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := mergeConfig(cmd.Flags(), configFile); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			return opts.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.Init(opts.Log)
			return run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (YAML/TOML/JSON).")
	opts.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(newEndpointsCommand(opts))
	cmd.AddCommand(newResetTokenCommand(opts))
	return cmd
}

// mergeConfig overlays config-file and environment values onto flags the
// user did not set explicitly. Flags win over both; the environment wins
// over the file.
func mergeConfig(fs *pflag.FlagSet, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var mergeErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := f.Value.Set(fmt.Sprintf("%v", v.Get(f.Name))); err != nil && mergeErr == nil {
			mergeErr = fmt.Errorf("invalid config value for %s: %w", f.Name, err)
		}
	})
	return mergeErr
}

// run wires and launches the bridge plus the optional status server.
func run(parent context.Context, opts *options.BridgeOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := simsource.New(opts.Sim.Provider, opts.SourceConfig())
	if err != nil {
		if simsource.IsSourceLoadFailure(err) {
			return fmt.Errorf("telemetry source failed to load: %w", err)
		}
		return err
	}

	store := identity.NewStore(opts.Bridge.StateFile)
	client := transport.New(opts.Backend.Timeout, opts.Backend.Bearer)
	rt := runtime.New(opts.RuntimeConfig(), store, source, client)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Run(ctx)
	})
	if opts.Serve.Enabled {
		srv := statusserver.New(opts.Serve.Addr, rt)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}
	return g.Wait()
}

// newEndpointsCommand prints the resolved endpoint set.
func newEndpointsCommand(opts *options.BridgeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "Print the resolved backend endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := uitable.New()
			table.AddRow("ENDPOINT", "URL")
			table.AddRow("pairing-check", opts.Backend.ResolvedMeURL())
			table.AddRow("status", opts.Backend.ResolvedStatusURL())
			table.AddRow("telemetry", opts.Backend.ResolvedTelemetryURL())
			table.AddRow("diagnostics", opts.Backend.ResolvedDiagURL())
			table.AddRow("login", opts.Backend.LoginBase())
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

// newResetTokenCommand mints a fresh pairing token in the state file.
func newResetTokenCommand(opts *options.BridgeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-token",
		Short: "Discard the pairing token and print the new login URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.Init(opts.Log)
			store := identity.NewStore(opts.Bridge.StateFile)
			token := store.ResetToken()
			fmt.Fprintf(cmd.OutOrStdout(), "new token: %s\nlogin: %s?token=%s\n",
				token, opts.Backend.LoginBase(), token)
			return nil
		},
	}
}
