package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/smartroutine/internal/progress"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	creds := &credentials{}
	var zone string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print this week's validated minutes and goal progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(zone)
			if err != nil {
				return fmt.Errorf("unknown time zone %q", zone)
			}
			ctx := cmd.Context()
			b, err := rootOpts.open(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer b.close()
			actor, err := b.signIn(ctx, creds.Email, creds.password())
			if err != nil {
				return err
			}

			now := time.Now().In(loc)
			stats, err := b.service.WeeklyStatistics(ctx, actor, now)
			if err != nil {
				return err
			}
			goals, err := b.service.GoalProgress(ctx, actor, now)
			if err != nil {
				return err
			}

			type goalLine struct {
				Title    string  `json:"title"`
				Percent  float64 `json:"percent"`
				Complete bool    `json:"complete"`
			}
			lines := make([]goalLine, 0, len(goals))
			for _, g := range goals {
				lines = append(lines, goalLine{Title: g.Goal.Title, Percent: g.Progress.Percent, Complete: g.Progress.Complete()})
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			payload := map[string]any{
				"total_minutes":      stats.TotalMinutes,
				"most_frequent_type": stats.MostFrequentType,
				"days":               dayLines(stats),
				"goals":              lines,
			}
			return out.Emit(payload, func(w io.Writer) error {
				writeWeek(w, stats)
				for _, line := range lines {
					fmt.Fprintf(w, "goal %-24s %5.1f%%\n", line.Title, line.Percent)
				}
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&zone, "tz", "Local", "IANA time zone used for calendar days")
	return cmd
}

// writeWeek renders one bar per day, scaled to the best day.
func writeWeek(w io.Writer, stats progress.WeeklyStatistics) {
	const width = 30
	for _, day := range stats.Days {
		bar := 0
		if stats.BestDay.Minutes > 0 {
			bar = day.Minutes * width / stats.BestDay.Minutes
		}
		fmt.Fprintf(w, "%-4s %-30s %4d min\n", day.Label, strings.Repeat("#", bar), day.Minutes)
	}
	fmt.Fprintf(w, "total %d min, most frequent: %s\n", stats.TotalMinutes, stats.MostFrequentType)
}

func dayLines(stats progress.WeeklyStatistics) []map[string]any {
	out := make([]map[string]any, 0, len(stats.Days))
	for _, day := range stats.Days {
		out = append(out, map[string]any{
			"date":    day.Date.Format(time.DateOnly),
			"label":   day.Label,
			"minutes": day.Minutes,
		})
	}
	return out
}
