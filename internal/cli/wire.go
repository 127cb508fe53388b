package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ogulcanaydogan/motion-guardian/internal/config"
	"github.com/ogulcanaydogan/motion-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/motion-guardian/pkg/capture"
	"github.com/ogulcanaydogan/motion-guardian/pkg/clock"
	"github.com/ogulcanaydogan/motion-guardian/pkg/engine"
	"github.com/ogulcanaydogan/motion-guardian/pkg/indicator"
	"github.com/ogulcanaydogan/motion-guardian/pkg/sensor"
	"github.com/ogulcanaydogan/motion-guardian/pkg/storage"
)

const (
	graphicsSysfs = "/sys/class/graphics"
	devRoot       = "/dev"
)

// initSampler opens the IMU and captures the baseline.
func initSampler(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*sensor.SignalSampler, error) {
	imu, err := sensor.DiscoverIIO(sensor.DefaultIIORoot, cfg.Sensor.AccelDevice, cfg.Sensor.MagnDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sensor.ErrSensorUnavailable, err)
	}
	logger.Info("sensor found", "accel", imu.AccelDir(), "magn", imu.MagnDir())

	sampler, err := sensor.NewSignalSampler(imu, clk)
	if err != nil {
		return nil, err
	}
	b := sampler.Baseline()
	logger.Info("baseline captured",
		"x", b.Acceleration.X, "y", b.Acceleration.Y, "z", b.Acceleration.Z,
		"pitch", b.Orientation.Pitch, "roll", b.Orientation.Roll, "yaw", b.Orientation.Yaw,
	)
	return sampler, nil
}

// initIndicator drives the Sense HAT LED matrix, or logs when it is absent.
func initIndicator(cfg *config.Config, clk clock.Clock, logger *slog.Logger) *indicator.AlarmIndicator {
	path := cfg.Indicator.Device
	if path == "" {
		found, err := indicator.FindFramebuffer(graphicsSysfs, devRoot)
		if err != nil {
			logger.Warn("LED matrix not found, indicator will only log", "error", err)
			return indicator.NewAlarmIndicator(indicator.NewLogDevice(logger), clk)
		}
		path = found
	}

	fb, err := indicator.NewFramebuffer(path)
	if err != nil {
		logger.Warn("open LED matrix, indicator will only log", "path", path, "error", err)
		return indicator.NewAlarmIndicator(indicator.NewLogDevice(logger), clk)
	}
	logger.Info("LED matrix found", "path", fb.Path())
	return indicator.NewAlarmIndicator(fb, clk)
}

// initCapture selects the still or video camera by capture.mode.
func initCapture(cfg *config.Config, clk clock.Clock, logger *slog.Logger) *capture.Source {
	c := cfg.Capture
	var cam capture.Camera
	if c.Mode == config.ModeVideo {
		cam = capture.NewVideoCamera(capture.VideoConfig{
			Command:       c.VideoCommand,
			FFmpegCommand: c.FFmpegCommand,
			Dir:           c.Dir,
			Width:         c.Width,
			Height:        c.Height,
			Duration:      c.VideoDuration,
			FPS:           c.VideoFPS,
		}, nil, clk)
	} else {
		cam = capture.NewStillCamera(capture.StillConfig{
			Command: c.StillCommand,
			Dir:     c.Dir,
			Width:   c.Width,
			Height:  c.Height,
		}, nil, clk)
	}
	return capture.NewSource(cam, clk, logger)
}

// initNotifiers creates alert notifiers from config. In dry-run mode every
// alert goes to the log instead.
func initNotifiers(cfg *config.Config, dryRun bool, logger *slog.Logger) ([]alerts.Notifier, func(), error) {
	if dryRun {
		return []alerts.Notifier{alerts.NewLogNotifier(logger)}, func() {}, nil
	}

	var notifiers []alerts.Notifier
	cleanup := func() {}

	if cfg.Telegram.Enabled {
		notifiers = append(notifiers, alerts.NewTelegramNotifier(
			cfg.Telegram.APIURL,
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Notify.Timeout,
		))
	}

	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Webhook.URL,
			cfg.Webhook.Secret,
			cfg.Notify.Timeout,
		))
	}

	if cfg.MQTT.Enabled {
		m, err := alerts.NewMQTTNotifier(alerts.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Timeout:  cfg.Notify.Timeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect mqtt: %w", err)
		}
		notifiers = append(notifiers, m)
		cleanup = func() { _ = m.Close() }
	}

	if len(notifiers) == 0 {
		logger.Warn("no notifiers enabled, alerts will only blink the indicator")
	}
	return notifiers, cleanup, nil
}

// initJournal opens the alert journal, or returns nil when it is disabled.
func initJournal(cfg *config.Config) (storage.Journal, error) {
	if !cfg.Storage.Enabled {
		return nil, nil
	}
	db, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// openJournal is initJournal for commands that need the journal to exist.
func openJournal(cfg *config.Config) (storage.Journal, error) {
	if !cfg.Storage.Enabled {
		return nil, errors.New("alert journal is disabled (storage.enabled=false)")
	}
	return initJournal(cfg)
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Device:          cfg.Device.Name,
		Samples:         cfg.Detection.Samples,
		SampleDelay:     cfg.Detection.SampleDelay,
		Threshold:       cfg.Detection.Threshold,
		PollInterval:    cfg.Detection.PollInterval,
		Cooldown:        cfg.Detection.Cooldown,
		CaptureCount:    cfg.Capture.BurstCount(),
		CaptureInterval: cfg.Capture.Interval,
		BlinkPeriod:     cfg.Indicator.BlinkPeriod,
		BlinkTotal:      cfg.Indicator.BlinkTotal,
		NotifyTimeout:   cfg.Notify.Timeout,
	}
}
