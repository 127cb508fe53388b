package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Print averaged motion deltas to tune the threshold",
	Long: `Capture a baseline, then print a number of averaged deltas with the
verdict the daemon would reach. Nothing is captured, sent or blinked.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntP("count", "n", 10, "Number of readings")
	probeCmd.Flags().Duration("interval", time.Second, "Pause between readings")
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	count, _ := cmd.Flags().GetInt("count")
	interval, _ := cmd.Flags().GetDuration("interval")

	logger := newLogger(cfg)
	clk := clock.Real{}
	sampler, err := initSampler(cfg, clk, logger)
	if err != nil {
		return err
	}

	b := sampler.Baseline()
	fmt.Printf("Baseline: x=%.4f y=%.4f z=%.4f g  pitch=%.1f roll=%.1f yaw=%.1f\n",
		b.Acceleration.X, b.Acceleration.Y, b.Acceleration.Z,
		b.Orientation.Pitch, b.Orientation.Roll, b.Orientation.Yaw)
	fmt.Printf("Threshold: %.4f g over %d samples\n\n", cfg.Detection.Threshold, cfg.Detection.Samples)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tDX\tDY\tDZ\tVERDICT\n")
	for i := 1; i <= count; i++ {
		delta, err := sampler.SampleDelta(cmd.Context(), cfg.Detection.Samples, cfg.Detection.SampleDelay)
		if err != nil {
			w.Flush()
			return err
		}
		verdict := "still"
		if delta.AnyAbove(cfg.Detection.Threshold) {
			verdict = "MOVED"
		}
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f\t%s\n", i, delta.X, delta.Y, delta.Z, verdict)
		w.Flush()

		if i < count {
			if err := clk.Sleep(cmd.Context(), interval); err != nil {
				return err
			}
		}
	}
	return nil
}
