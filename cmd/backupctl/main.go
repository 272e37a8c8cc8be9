// Command backupctl exports, restores and inspects project archives from an
// operator shell. It talks to the database and object store directly and
// does not go through the API's authorization checks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/teamboard/engine/internal/app"
	"github.com/teamboard/engine/internal/backup/manifest"
	"github.com/teamboard/engine/pkg/config"
	"github.com/teamboard/engine/pkg/logger"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "backupctl",
		Short:         "Project backup and restore",
		Long:          "backupctl exports a project into a zip archive, restores archives as new projects, and inspects archives offline.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "backupctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// openApp loads configuration and connects to the database and object store.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// tallyTable renders non-zero section counts.
func tallyTable(t manifest.Tally) *uitable.Table {
	tbl := uitable.New()
	tbl.MaxColWidth = 40
	tbl.AddRow("SECTION", "ROWS")
	rows := []struct {
		name string
		n    int
	}{
		{"members", t.Members},
		{"stages", t.Stages},
		{"tasks", t.Tasks},
		{"assignments", t.Assignments},
		{"scores", t.Scores},
		{"submissions", t.Submissions},
		{"files", t.Files},
		{"messages", t.Messages},
		{"notes", t.Notes},
		{"attachments", t.Attachments},
		{"comments", t.Comments},
		{"folders", t.Folders},
		{"resources", t.Resources},
		{"activity logs", t.Activity},
		{"score rows", t.ScoreRows},
	}
	for _, r := range rows {
		if r.n > 0 {
			tbl.AddRow(r.name, r.n)
		}
	}
	return tbl
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
