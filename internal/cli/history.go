package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit     int
	historyPublishes bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent bot run attempts or publishes",
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of entries to show")
	historyCmd.Flags().BoolVar(&historyPublishes, "publishes", false, "show GitHub publishes instead of runs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("History needs database.url; in-memory history is lost on exit")
		os.Exit(1)
	}

	ctx := context.Background()
	s, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	defer func() {
		_ = w.Flush()
	}()

	if historyPublishes {
		records, err := s.publish.ListRecent(ctx, historyLimit)
		if err != nil {
			slog.Error("Failed to query publishes", "error", err)
			return
		}
		_, _ = fmt.Fprintln(w, "TIME\tTARGET\tLABEL\tRESULT\tFINGERPRINT")
		for _, r := range records {
			result := "failed"
			switch {
			case r.Skipped:
				result = "unchanged"
			case r.Success:
				result = "published"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.12s\n",
				r.CreatedAt.Format(time.RFC3339), r.Target, r.Label, result, r.Fingerprint)
		}
		return
	}

	runs, err := s.runs.ListRecent(ctx, historyLimit)
	if err != nil {
		slog.Error("Failed to query runs", "error", err)
		return
	}
	_, _ = fmt.Fprintln(w, "STARTED\tATTEMPT\tOUTCOME\tCONNECTIVITY\tDURATION\tERROR")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%s\t%s\n",
			r.StartedAt.Format(time.RFC3339), r.Attempt, r.Outcome, r.Connectivity,
			r.Duration().Round(time.Millisecond), strings.Join(r.Errors, "; "))
	}
}
