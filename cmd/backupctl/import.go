package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/teamboard/engine/internal/models"
	appErr "github.com/teamboard/engine/pkg/errors"
)

func newImportCmd() *cobra.Command {
	var asStudent string

	cmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Restore an archive as a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if int64(len(blob)) > a.Config.MaxArchiveBytes {
				return fmt.Errorf("archive is %s, limit is %s",
					humanize.Bytes(uint64(len(blob))), humanize.Bytes(uint64(a.Config.MaxArchiveBytes)))
			}

			var actor models.User
			if err := a.Users.GetByStudentID(cmd.Context(), asStudent, &actor); err != nil {
				if appErr.IsCode(err, appErr.CodeNotFound) {
					return fmt.Errorf("no user with student id %q", asStudent)
				}
				return err
			}

			out := cmd.OutOrStdout()
			res, err := a.Importer.Import(cmd.Context(), blob, actor.ID, func(percent int, phase string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%3d%% %s\n", percent, phase)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "restored %q as project %s (leader %s)\n", res.ProjectName, res.ProjectID, actor.StudentID)
			if len(res.Dropped) > 0 {
				fmt.Fprintf(out, "members without an account here: %v\n", res.Dropped)
			}
			if res.RowsSkipped+res.RowsFailed+res.FilesFailed > 0 {
				fmt.Fprintf(out, "skipped %d rows, %d rows failed, %d files failed\n", res.RowsSkipped, res.RowsFailed, res.FilesFailed)
			}
			fmt.Fprintln(out, tallyTable(res.Restored))
			return nil
		},
	}

	cmd.Flags().StringVar(&asStudent, "as", "", "student id of the user who will lead the restored project")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
