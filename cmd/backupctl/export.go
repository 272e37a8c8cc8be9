package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teamboard/engine/internal/backup"
)

func newExportCmd() *cobra.Command {
	var (
		output string
		opts   = backup.AllOptions()
	)

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export a project into a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q: %w", args[0], err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Exporter.Export(cmd.Context(), projectID, opts, nil)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = res.Filename
			} else if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				path = filepath.Join(path, res.Filename)
			}
			if err := os.WriteFile(path, res.Archive, 0o644); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %s (%s, sha256 %s)\n", path, humanize.Bytes(uint64(res.SizeBytes)), res.Checksum)
			if res.FilesFailed > 0 {
				fmt.Fprintf(out, "warning: %d stored files could not be read and were left out\n", res.FilesFailed)
			}
			fmt.Fprintln(out, tallyTable(res.Tally))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "archive path or directory (default: suggested file name)")
	f.BoolVar(&opts.Messages, "messages", true, "include chat messages")
	f.BoolVar(&opts.Notes, "notes", true, "include task notes and attachments")
	f.BoolVar(&opts.Comments, "comments", true, "include task comments")
	f.BoolVar(&opts.Resources, "resources", true, "include resources and folders")
	f.BoolVar(&opts.ActivityLogs, "activity", true, "include the activity log")
	f.BoolVar(&opts.Scores, "scores", true, "include weights, scores and appeals")
	f.BoolVar(&opts.IncludeReport, "report", true, "embed the human-readable report")
	return cmd
}
