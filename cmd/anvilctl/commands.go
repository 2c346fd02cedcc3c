package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anvilops/anvilctl/internal/config"
	"github.com/anvilops/anvilctl/internal/history"
	"github.com/anvilops/anvilctl/internal/history/factory"
	"github.com/anvilops/anvilctl/internal/logger"
	"github.com/anvilops/anvilctl/internal/logsink"
	"github.com/anvilops/anvilctl/internal/metrics"
	"github.com/anvilops/anvilctl/internal/pidfile"
	"github.com/anvilops/anvilctl/internal/server"
	"github.com/anvilops/anvilctl/internal/statestore"
	"github.com/anvilops/anvilctl/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

// app wires the config file into the supervisor and its collaborators.
// Built once in the root PersistentPreRunE, shared by all subcommands.
type app struct {
	configPath string
	cfg        config.Config
	sup        *supervisor.Supervisor
	hist       history.Sink
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger.Setup(logger.Config{
		File:       cfg.Log.SelfFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Debug:      cfg.Log.Debug,
	})

	opts := []supervisor.Option{supervisor.WithLogger(slog.Default())}
	if cfg.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			slog.Warn("history sink unavailable, continuing without it", "dsn", cfg.History.DSN, "error", err)
		} else {
			a.hist = sink
			opts = append(opts, supervisor.WithHistory(sink))
		}
	}

	a.sup = supervisor.New(
		supervisor.Config{
			Binary:    cfg.Node.Binary,
			Host:      cfg.Node.Host,
			Port:      cfg.Node.Port,
			ExtraArgs: cfg.Node.ExtraArgs,
			Endpoint:  cfg.Endpoint(),
		},
		pidfile.New(cfg.Files.PIDFile),
		logsink.New(cfg.Files.LogFile, cfg.Log.Append),
		statestore.New(cfg.Files.StateFile, cfg.RPCTimeout()),
		opts...,
	)
	return nil
}

func (a *app) close() {
	if a.hist != nil {
		_ = a.hist.Close()
	}
}

func buildRoot() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "anvilctl",
		Short:         "Lifecycle manager for a local anvil development node",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to TOML config file")

	root.AddCommand(
		newStartCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newSaveCmd(a),
		newLogsCmd(a),
		newResetCmd(a),
		newGenesisCmd(a),
		newServeCmd(a),
		newMenuCmd(a),
	)
	return root
}

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the node as a detached background process",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := a.sup.Start(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("node started, pid %d, listening on %s:%d\n", pid, a.cfg.Node.Host, a.cfg.Node.Port)
			return nil
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Snapshot the node state, terminate the process, and clear the record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sup.Stop(cmd.Context()); err != nil {
				if errors.Is(err, supervisor.ErrNotRunning) {
					fmt.Println("node does not appear to be running")
					return nil
				}
				return err
			}
			fmt.Println("node stopped")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the derived node status",
		RunE: func(cmd *cobra.Command, args []string) error {
			printStatus(a.sup.Status())
			return nil
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Capture a state snapshot from the running node without stopping it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sup.Save(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("state saved to %s\n", a.cfg.Files.StateFile)
			return nil
		},
	}
}

func newLogsCmd(a *app) *cobra.Command {
	var follow bool
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show captured node output",
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := a.sup.Sink()
			if !follow {
				tail, err := sink.Tail(lines)
				if err != nil {
					return err
				}
				for _, line := range tail {
					fmt.Println(line)
				}
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := sink.Follow(ctx, os.Stdout)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream new output until interrupted")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of trailing lines to show")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the persisted state snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.sup.Handle().IsLikelyRunning() {
				return fmt.Errorf("refusing to reset while a node record exists; stop the node first")
			}
			if !yes && !confirm(bufio.NewReader(os.Stdin), fmt.Sprintf("delete %s and reset the chain?", a.cfg.Files.StateFile)) {
				fmt.Println("aborted")
				return nil
			}
			if err := a.sup.Store().Reset(); err != nil {
				return err
			}
			fmt.Println("snapshot removed; the next start launches a fresh chain")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose status, control, and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
				return err
			}
			srv, err := server.NewServer(a.cfg.Server.Listen, a.cfg.Server.BasePath, a.sup)
			if err != nil {
				return err
			}
			slog.Info("serving", "addr", a.cfg.Server.Listen, "base_path", a.cfg.Server.BasePath)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return srv.Close()
		},
	}
}

func printStatus(st supervisor.Status) {
	switch {
	case st.State == supervisor.StateRunning:
		fmt.Printf("running, pid %d\n", st.PID)
	case st.Stale:
		fmt.Printf("stopped (stale record for pid %d; a stop will reconcile it)\n", st.PID)
	default:
		fmt.Println("stopped")
	}
	if st.SnapshotPresent {
		fmt.Println("snapshot present: next start loads the saved state")
	} else {
		fmt.Println("no snapshot: next start launches a fresh chain")
	}
}
