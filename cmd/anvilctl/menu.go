package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anvilops/anvilctl/internal/logsink"
	"github.com/anvilops/anvilctl/internal/supervisor"
)

// menuAction maps one numbered choice to one operation. The menu itself is
// a plain dispatch table; no lifecycle logic lives here.
type menuAction struct {
	label string
	run   func(ctx context.Context, a *app, in *bufio.Reader) error
}

func menuActions() []menuAction {
	return []menuAction{
		{"Start node", func(ctx context.Context, a *app, _ *bufio.Reader) error {
			pid, err := a.sup.Start(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("node started, pid %d\n", pid)
			return nil
		}},
		{"Stop node", func(ctx context.Context, a *app, _ *bufio.Reader) error {
			err := a.sup.Stop(ctx)
			if errors.Is(err, supervisor.ErrNotRunning) {
				fmt.Println("node does not appear to be running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println("node stopped")
			return nil
		}},
		{"Save state", func(ctx context.Context, a *app, _ *bufio.Reader) error {
			if err := a.sup.Save(ctx); err != nil {
				return err
			}
			fmt.Printf("state saved to %s\n", a.cfg.Files.StateFile)
			return nil
		}},
		{"Status", func(_ context.Context, a *app, _ *bufio.Reader) error {
			printStatus(a.sup.Status())
			return nil
		}},
		{"View latest logs", func(_ context.Context, a *app, _ *bufio.Reader) error {
			lines, err := a.sup.Sink().Tail(20)
			if errors.Is(err, logsink.ErrSinkNotFound) {
				fmt.Println("no log captured yet; start the node first")
				return nil
			}
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		}},
		{"Follow logs (Ctrl-C to return)", func(ctx context.Context, a *app, _ *bufio.Reader) error {
			fctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := a.sup.Sink().Follow(fctx, os.Stdout)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, logsink.ErrSinkNotFound) {
				fmt.Println("no log captured yet; start the node first")
				return nil
			}
			return err
		}},
		{"Generate genesis.json and password.txt", func(_ context.Context, a *app, in *bufio.Reader) error {
			return runGenesisPrompts(in)
		}},
		{"Delete snapshot and reset", func(_ context.Context, a *app, in *bufio.Reader) error {
			if a.sup.Handle().IsLikelyRunning() {
				fmt.Println("a node record exists; stop the node before resetting")
				return nil
			}
			if !confirm(in, fmt.Sprintf("delete %s and reset the chain?", a.cfg.Files.StateFile)) {
				fmt.Println("aborted")
				return nil
			}
			if err := a.sup.Store().Reset(); err != nil {
				return err
			}
			fmt.Println("snapshot removed")
			return nil
		}},
	}
}

func newMenuCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive operator menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context(), a, os.Stdin)
		},
	}
}

func runMenu(ctx context.Context, a *app, stdin io.Reader) error {
	in := bufio.NewReader(stdin)
	actions := menuActions()
	for {
		fmt.Println("\n--- anvil management menu ---")
		for i, act := range actions {
			fmt.Printf("%d. %s\n", i+1, act.label)
		}
		fmt.Printf("%d. Exit\n", len(actions)+1)
		fmt.Print("Select an option: ")

		line, err := in.ReadString('\n')
		if err != nil {
			return nil // EOF ends the session
		}
		choice := strings.TrimSpace(line)
		idx := -1
		for i := range actions {
			if choice == fmt.Sprintf("%d", i+1) {
				idx = i
				break
			}
		}
		if choice == fmt.Sprintf("%d", len(actions)+1) {
			if a.sup.Handle().IsLikelyRunning() {
				fmt.Println("note: the node still appears to be running; it keeps running after exit")
			}
			return nil
		}
		if idx < 0 {
			fmt.Println("invalid option, try again")
			continue
		}
		if err := actions[idx].run(ctx, a, in); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// confirm asks a yes/no question, reading the answer from in. The menu
// shares one buffered reader across prompts; building a fresh reader here
// would lose input it has already buffered.
func confirm(in *bufio.Reader, question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, err := in.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
