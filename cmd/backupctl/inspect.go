package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/teamboard/engine/internal/backup/archive"
)

func newInspectCmd() *cobra.Command {
	var (
		showFiles  bool
		showReport bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Summarise an archive without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}
			a, err := archive.Unpack(blob)
			if err != nil {
				return err
			}
			m := a.Manifest
			out := cmd.OutOrStdout()

			head := uitable.New()
			head.AddRow("Project:", m.Group.Name)
			head.AddRow("Format:", m.Version)
			head.AddRow("Exported:", humanize.Time(m.ExportedAt)+" ("+m.ExportedAt.UTC().Format("2006-01-02 15:04 MST")+")")
			head.AddRow("Size:", humanize.Bytes(uint64(len(blob))))
			_, hasReport := a.Report()
			head.AddRow("Report:", yesNo(hasReport))
			fmt.Fprintln(out, head)
			fmt.Fprintln(out)
			fmt.Fprintln(out, tallyTable(m.Tally()))

			if missing := missingPayload(a); len(missing) > 0 {
				fmt.Fprintf(out, "\n%d listed files have no payload entry\n", len(missing))
			}

			if showFiles && len(m.Files) > 0 {
				files := uitable.New()
				files.MaxColWidth = 60
				files.AddRow("ENTRY", "NAME", "SIZE", "BUCKET")
				for _, f := range m.Files {
					files.AddRow(f.ZipPath, f.FileName, humanize.Bytes(uint64(f.FileSize)), f.Bucket)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, files)
			}

			if showReport {
				report, ok := a.Report()
				if !ok {
					return fmt.Errorf("archive has no embedded report")
				}
				fmt.Fprintln(out)
				_, _ = out.Write(report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFiles, "files", false, "list the stored files")
	cmd.Flags().BoolVar(&showReport, "report", false, "print the embedded report")
	return cmd
}

// missingPayload lists manifest files whose zip entry is absent.
func missingPayload(a *archive.Archive) []string {
	var out []string
	for _, f := range a.Manifest.Files {
		if !a.Has(f.ZipPath) {
			out = append(out, f.ZipPath)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
