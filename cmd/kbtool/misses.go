package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/storage"
)

func newMissesCmd(opts *options) *cobra.Command {
	var (
		since    time.Duration
		limit    int
		contains string
		dbPath   string
	)
	cmd := &cobra.Command{
		Use:   "misses",
		Short: "List the most frequent unanswered questions from the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = opts.cfg.SQLitePath()
			}
			ctx := cmd.Context()
			db, err := storage.New(ctx, dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			misses, err := db.TopMisses(ctx, time.Now().Add(-since), limit, contains)
			if err != nil {
				return err
			}
			if len(misses) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no misses")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "COUNT\tLAST SEEN\tQUESTION")
			for _, m := range misses {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Count, m.LastSeen.Format("2006-01-02 15:04"), m.Example)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "look back this far")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	cmd.Flags().StringVar(&contains, "contains", "", "only questions containing this text")
	cmd.Flags().StringVar(&dbPath, "db", "", "event log path (default from KALYAN_DATA_DIR)")
	return cmd
}
