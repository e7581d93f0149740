package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"go.aimuz.me/signal/config"
	"go.aimuz.me/signal/internal/app"
	"go.aimuz.me/signal/internal/types"
	"go.aimuz.me/signal/journal"
	"go.aimuz.me/signal/render"
)

var (
	runListen    bool
	runNoConnect bool
	runWidth     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the backend and open the interactive prompt",
	RunE:  runCopilot,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(c *cobra.Command) {
	c.Flags().BoolVarP(&runListen, "listen", "l", false, "Start listening after connecting")
	c.Flags().BoolVar(&runNoConnect, "no-connect", false, "Do not connect on start")
	c.Flags().IntVar(&runWidth, "width", 72, "Card width in columns")
}

func runCopilot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []app.Option
	if cfg.Journal.Enabled {
		j, err := openJournal(cfg)
		if err != nil {
			slog.Warn("clip journal disabled", "error", err)
		} else {
			defer j.Close()
			opts = append(opts, app.WithJournal(j))
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(types.StatusDisconnected),
		HistoryFile:     historyFile(),
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer rl.Close()
	stopOnCancel := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stopOnCancel()

	r := render.New(rl.Stdout(), runWidth)
	svc := app.New(cfg, opts...)
	defer svc.Shutdown()

	svc.Subscribe(func(name string, data any) {
		switch ev := data.(type) {
		case app.StatusEvent:
			rl.SetPrompt(promptFor(ev.To))
			r.Status(ev.To, svc.MIMEType())
			rl.Refresh()
		case app.ActiveEvent:
			r.Display(ev.Display, ev.Total, ev.ResponseReady)
			rl.Refresh()
		case app.CommandEvent:
			if ev.Copied {
				r.Notice(fmt.Sprintf("suggested response copied (%s)", ev.Source))
			} else {
				r.Notice(fmt.Sprintf("%s sent (%s)", ev.Command, ev.Source))
			}
			rl.Refresh()
		case error:
			r.Error(ev)
			rl.Refresh()
		default:
			slog.Debug("event", "name", name)
		}
	})

	if err := svc.Start(ctx); err != nil {
		return err
	}

	if !runNoConnect {
		if err := svc.Connect(ctx); err != nil {
			r.Error(err)
		} else if runListen {
			if err := svc.StartListening(ctx); err != nil {
				r.Error(err)
			}
		}
	}

	p := &prompt{svc: svc, r: r}
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		if p.exec(ctx, line) {
			return nil
		}
	}
}

func promptFor(s types.Status) string {
	switch s {
	case types.StatusListening:
		return "signal ● "
	case types.StatusConnected:
		return "signal ○ "
	default:
		return "signal ✕ "
	}
}

func historyFile() string {
	path, err := config.Path()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(path), "history")
}

func openJournal(c *config.Config) (*journal.Journal, error) {
	path, err := c.JournalPath()
	if err != nil {
		return nil, err
	}
	return journal.Open(path, c.Journal.TTL.Std())
}
