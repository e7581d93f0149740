package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go.aimuz.me/signal/clip"
	"go.aimuz.me/signal/journal"
)

var clipsOut string

var clipsCmd = &cobra.Command{
	Use:   "clips",
	Short: "Inspect audio clips recorded by the clip journal",
	Long: `Inspect audio clips recorded by the clip journal.

Clips are kept for journal.ttl (24h by default) when journal.enabled is set.
The journal cannot be read while a session is running.`,
}

var clipsListCmd = &cobra.Command{
	Use:   "list [session-id]",
	Short: "List sessions, or the clips of one session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer j.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		if len(args) == 0 {
			ids, err := j.Sessions()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(w, "no recorded sessions")
				return nil
			}
			fmt.Fprintln(w, "SESSION\tCLIPS")
			for _, id := range ids {
				entries, err := j.List(id)
				if err != nil && !errors.Is(err, journal.ErrNotFound) {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\n", id, len(entries))
			}
			return nil
		}

		entries, err := j.List(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "SEQ\tCAPTURED\tDURATION\tFORMAT\tBYTES\tVOICED")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\n", e.Seq, e.CapturedAt.Local().Format(time.DateTime),
				e.Duration.Round(time.Millisecond), e.MIMEType, len(e.Data), e.Voiced)
		}
		return nil
	},
}

var clipsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Write the clips of a session to files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.List(args[0])
		if err != nil {
			return err
		}
		dir := clipsOut
		if dir == "" {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		for _, e := range entries {
			path := filepath.Join(dir, fmt.Sprintf("clip-%04d%s", e.Seq, extFor(e.MIMEType)))
			if err := os.WriteFile(path, e.Data, 0644); err != nil {
				return fmt.Errorf("write clip: %w", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d clips to %s\n", len(entries), dir)
		return nil
	},
}

// extFor maps a clip MIME type to a file extension.
func extFor(mime string) string {
	switch mime {
	case clip.MIMEWAV:
		return ".wav"
	case clip.MIMEOggOpus:
		return ".ogg"
	case clip.MIMEWebM, clip.MIMEWebMOpus:
		return ".webm"
	default:
		return ".bin"
	}
}

func init() {
	clipsExportCmd.Flags().StringVarP(&clipsOut, "out", "o", "", "Output directory (default: the session id)")
	clipsCmd.AddCommand(clipsListCmd, clipsExportCmd)
	rootCmd.AddCommand(clipsCmd)
}
