package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	failedCmd = &cobra.Command{
		Use:   "failed",
		Short: "List jobs that failed",
		Long:  paragraph(fmt.Sprintf("\n%s jobs whose pipeline failed. Failed jobs are never retried automatically; use %s to run one again.", keyword("List"), keyword("failed retry"))),
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			failures, err := a.dead.List()
			if err != nil {
				return err
			}
			if len(failures) == 0 {
				fmt.Println(faint("No failed jobs."))
				return nil
			}
			for _, f := range failures {
				name := f.Job.TargetName
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Printf("%s  %s  %s  %s\n",
					keyword(f.Job.ShortID()),
					name,
					faint(humanize.Time(f.FailedAt)),
					truncate.StringWithTail(strings.ReplaceAll(f.Error, "\n", " "), 60, "…"))
			}
			fmt.Println(faint("\nRecorded in " + a.dead.Path()))
			return nil
		},
	}

	failedRetryCmd = &cobra.Command{
		Use:   "retry ID",
		Short: "Run a failed job again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			f, err := a.dead.Take(resolveFailureID(a, args[0]))
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return a.worker.Run(gctx) })
			g.Go(func() error {
				defer func() { _ = a.worker.Queue().Close() }()
				res, err := a.worker.SubmitAndWait(gctx, f.Job)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "%s %s\n", keyword("Saved"), res.AudioPath)
				return nil
			})
			return g.Wait()
		},
	}
)

// resolveFailureID expands a short ID prefix to the full job ID.
func resolveFailureID(a *app, id string) string {
	failures, err := a.dead.List()
	if err != nil {
		return id
	}
	for _, f := range failures {
		if strings.HasPrefix(f.Job.ID, id) {
			return f.Job.ID
		}
	}
	return id
}

func init() {
	failedCmd.AddCommand(failedRetryCmd)
}
