package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
	"github.com/ogulcanaydogan/motion-guardian/pkg/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded alert sequences",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of alerts")
	historyCmd.Flags().String("since", "", "Only alerts after this time (RFC 3339) or within this duration (e.g. 24h)")
	historyCmd.Flags().Bool("detailed", false, "Show individual deliveries")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	sinceFlag, _ := cmd.Flags().GetString("since")
	detailed, _ := cmd.Flags().GetBool("detailed")

	since, err := parseSince(sinceFlag, time.Now())
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	records, err := journal.ListAlerts(cmd.Context(), model.HistoryFilter{Since: since, Limit: limit})
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No alerts recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TRIGGERED\tDEVICE\tDX\tDY\tDZ\tARTIFACTS\tDELIVERED\tFAILED\tID\n")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\t%d\t%d\t%d\t%s\n",
			r.TriggeredAt.Local().Format("2006-01-02 15:04:05"),
			r.Device,
			r.Delta.X, r.Delta.Y, r.Delta.Z,
			r.Artifacts,
			r.Delivered(), len(r.Deliveries)-r.Delivered(),
			r.ID,
		)
	}
	w.Flush()

	if detailed {
		fmt.Printf("\nDeliveries:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  ALERT\tSENT\tNOTIFIER\tARTIFACT\tRESULT\n")
		for _, r := range records {
			for _, d := range r.Deliveries {
				result := "ok " + d.Ack
				if !d.OK {
					result = "error: " + d.Error
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
					shortID(r.ID), d.SentAt.Local().Format("15:04:05"), d.Notifier, d.ArtifactPath, result)
			}
		}
		w.Flush()

		if v, ok := schemaVersion(journal); ok {
			fmt.Printf("\nJournal schema version: %d (%s)\n", v, cfg.Storage.Path)
		}
	}

	return nil
}

// schemaVersion reports the migration level of journals that track one.
func schemaVersion(j storage.Journal) (int, bool) {
	sv, ok := j.(interface{ SchemaVersion() (int, error) })
	if !ok {
		return 0, false
	}
	v, err := sv.SchemaVersion()
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseSince accepts an RFC 3339 timestamp or a duration back from now.
func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC 3339 or a duration like 24h", v)
	}
	return t, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
