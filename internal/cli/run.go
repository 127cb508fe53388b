package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/motion-guardian/internal/server"
	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
	"github.com/ogulcanaydogan/motion-guardian/pkg/engine"
	"github.com/ogulcanaydogan/motion-guardian/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch for motion and send alerts until interrupted",
	Long: `Capture a baseline from the accelerometer, then poll it at a fixed
interval. When the device moves, take photos or a clip, deliver them to the
configured notifiers and flash the LED matrix. Stops on SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "Log alerts instead of uploading them")
	runCmd.Flags().StringP("listen", "l", "", "Status API listen address (default from config)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		// Credentials are not needed when nothing is uploaded.
		cfg.Telegram.Enabled = false
		cfg.Webhook.Enabled = false
		cfg.MQTT.Enabled = false
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real{}

	sampler, err := initSampler(cfg, clk, logger)
	if err != nil {
		return err
	}

	notifiers, closeNotifiers, err := initNotifiers(cfg, dryRun, logger)
	if err != nil {
		return err
	}
	defer closeNotifiers()

	journal, err := initJournal(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := engine.New(engineConfig(cfg), engine.Deps{
		Sampler:   sampler,
		Capture:   initCapture(cfg, clk, logger),
		Indicator: initIndicator(cfg, clk, logger),
		Notifiers: notifiers,
		Journal:   journal,
		Metrics:   metrics.New(reg),
		Clock:     clk,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Server.Enabled {
		srv := server.NewServer(eng, journal, reg, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
				logger.Error("status server", "listen", cfg.Server.Listen, "error", err)
			}
		}()
	}

	if dryRun {
		fmt.Fprintln(os.Stderr, "Motion Guardian running in dry-run mode: alerts are logged, not sent")
	}
	err = eng.Run(ctx)

	stop()
	wg.Wait()
	return err
}
