package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration marks a configuration that cannot start the daemon.
var ErrConfiguration = errors.New("invalid configuration")

// Capture modes.
const (
	ModePhoto = "photo"
	ModeVideo = "video"
)

// Config holds all Motion Guardian configuration.
type Config struct {
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Sensor    SensorConfig    `mapstructure:"sensor" yaml:"sensor"`
	Capture   CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	Indicator IndicatorConfig `mapstructure:"indicator" yaml:"indicator"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Telegram  TelegramConfig  `mapstructure:"telegram" yaml:"telegram"`
	Webhook   WebhookConfig   `mapstructure:"webhook" yaml:"webhook"`
	MQTT      MQTTConfig      `mapstructure:"mqtt" yaml:"mqtt"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// DeviceConfig names this installation in alerts and the journal.
type DeviceConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
}

// DetectionConfig defines sampling and thresholding.
type DetectionConfig struct {
	Samples      int           `mapstructure:"samples" yaml:"samples"`
	SampleDelay  time.Duration `mapstructure:"sample_delay" yaml:"sample_delay"`
	Threshold    float64       `mapstructure:"threshold" yaml:"threshold"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Cooldown     time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// SensorConfig points at IIO device directories. Empty means auto-discover.
type SensorConfig struct {
	AccelDevice string `mapstructure:"accel_device" yaml:"accel_device"`
	MagnDevice  string `mapstructure:"magn_device" yaml:"magn_device"`
}

// CaptureConfig defines the camera.
type CaptureConfig struct {
	Mode          string        `mapstructure:"mode" yaml:"mode"`
	Count         int           `mapstructure:"count" yaml:"count"`
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	Width         int           `mapstructure:"width" yaml:"width"`
	Height        int           `mapstructure:"height" yaml:"height"`
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	StillCommand  string        `mapstructure:"still_command" yaml:"still_command"`
	VideoCommand  string        `mapstructure:"video_command" yaml:"video_command"`
	FFmpegCommand string        `mapstructure:"ffmpeg_command" yaml:"ffmpeg_command"`
	VideoDuration time.Duration `mapstructure:"video_duration" yaml:"video_duration"`
	VideoFPS      float64       `mapstructure:"video_fps" yaml:"video_fps"`
}

// BurstCount is the number of artifacts per alert. Video mode records one clip.
func (c CaptureConfig) BurstCount() int {
	if c.Mode == ModeVideo {
		return 1
	}
	return c.Count
}

// IndicatorConfig defines the alarm blink pattern.
type IndicatorConfig struct {
	BlinkPeriod time.Duration `mapstructure:"blink_period" yaml:"blink_period"`
	BlinkTotal  time.Duration `mapstructure:"blink_total" yaml:"blink_total"`
	Device      string        `mapstructure:"device" yaml:"device"`
}

// NotifyConfig bounds every notifier call.
type NotifyConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TelegramConfig defines Telegram Bot API settings.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	APIURL   string `mapstructure:"api_url" yaml:"api_url"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Secret  string `mapstructure:"secret" yaml:"secret"`
}

// MQTTConfig defines broker settings.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	QoS      int    `mapstructure:"qos" yaml:"qos"`
}

// StorageConfig defines the alert journal database.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ServerConfig defines the status API.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("find home directory: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(filepath.Join(home, ".mguard"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "mguard"
	}

	// Defaults
	v.SetDefault("device.name", hostname)
	v.SetDefault("detection.samples", 10)
	v.SetDefault("detection.sample_delay", "10ms")
	v.SetDefault("detection.threshold", 0.03)
	v.SetDefault("detection.poll_interval", "5s")
	v.SetDefault("detection.cooldown", "8s")
	v.SetDefault("sensor.accel_device", "")
	v.SetDefault("sensor.magn_device", "")
	v.SetDefault("capture.mode", ModePhoto)
	v.SetDefault("capture.count", 3)
	v.SetDefault("capture.interval", "1s")
	v.SetDefault("capture.width", 1280)
	v.SetDefault("capture.height", 720)
	v.SetDefault("capture.dir", filepath.Join(home, ".mguard", "captured"))
	v.SetDefault("capture.still_command", "rpicam-still")
	v.SetDefault("capture.video_command", "rpicam-vid")
	v.SetDefault("capture.ffmpeg_command", "ffmpeg")
	v.SetDefault("capture.video_duration", "3s")
	v.SetDefault("capture.video_fps", 25)
	v.SetDefault("indicator.blink_period", "500ms")
	v.SetDefault("indicator.blink_total", "3s")
	v.SetDefault("indicator.device", "")
	v.SetDefault("notify.timeout", "30s")
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "mguard/alerts")
	v.SetDefault("mqtt.client_id", "mguard")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", filepath.Join(home, ".mguard", "alerts.db"))
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen", ":9100")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("MG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bot credentials also come from the bare variables used by existing deployments.
	if err := v.BindEnv("telegram.bot_token", "MG_TELEGRAM_BOT_TOKEN", "BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("telegram.chat_id", "MG_TELEGRAM_CHAT_ID", "CHAT_ID"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Capture.Dir = expandHome(cfg.Capture.Dir, home)
	cfg.Storage.Path = expandHome(cfg.Storage.Path, home)
	cfg.Capture.Mode = strings.ToLower(strings.TrimSpace(cfg.Capture.Mode))
	cfg.Telegram.BotToken = strings.TrimSpace(cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = strings.TrimSpace(cfg.Telegram.ChatID)

	return &cfg, nil
}

// Validate reports every problem found, wrapped in ErrConfiguration.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	d := c.Detection
	if d.Samples < 1 {
		add("detection.samples must be positive, got %d", d.Samples)
	}
	if d.SampleDelay < 0 {
		add("detection.sample_delay must not be negative, got %s", d.SampleDelay)
	}
	if d.Threshold < 0 {
		add("detection.threshold must not be negative, got %g", d.Threshold)
	}
	if d.PollInterval <= 0 {
		add("detection.poll_interval must be positive, got %s", d.PollInterval)
	}
	if d.Cooldown < 0 {
		add("detection.cooldown must not be negative, got %s", d.Cooldown)
	}

	switch c.Capture.Mode {
	case ModePhoto:
		if c.Capture.Count < 1 {
			add("capture.count must be positive, got %d", c.Capture.Count)
		}
	case ModeVideo:
		if c.Capture.VideoDuration <= 0 {
			add("capture.video_duration must be positive, got %s", c.Capture.VideoDuration)
		}
		if c.Capture.VideoFPS <= 0 {
			add("capture.video_fps must be positive, got %g", c.Capture.VideoFPS)
		}
	default:
		add("capture.mode must be %q or %q, got %q", ModePhoto, ModeVideo, c.Capture.Mode)
	}
	if c.Capture.Interval < 0 {
		add("capture.interval must not be negative, got %s", c.Capture.Interval)
	}

	if c.Indicator.BlinkPeriod <= 0 {
		add("indicator.blink_period must be positive, got %s", c.Indicator.BlinkPeriod)
	}
	if c.Indicator.BlinkTotal < 0 {
		add("indicator.blink_total must not be negative, got %s", c.Indicator.BlinkTotal)
	}
	if c.Notify.Timeout <= 0 {
		add("notify.timeout must be positive, got %s", c.Notify.Timeout)
	}

	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.BotToken) == "" {
			add("telegram.bot_token is required (set BOT_TOKEN or MG_TELEGRAM_BOT_TOKEN)")
		}
		if strings.TrimSpace(c.Telegram.ChatID) == "" {
			add("telegram.chat_id is required (set CHAT_ID or MG_TELEGRAM_CHAT_ID)")
		}
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		add("webhook.url is required when the webhook is enabled")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			add("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			add("mqtt.topic is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			add("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		add("storage.path is required when storage is enabled")
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		add("server.listen is required when the server is enabled")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(problems...))
}

// Masked returns a copy safe to print, with credentials replaced.
func (c *Config) Masked() *Config {
	out := *c
	out.Telegram.BotToken = mask(c.Telegram.BotToken)
	out.Webhook.Secret = mask(c.Webhook.Secret)
	out.MQTT.Password = mask(c.MQTT.Password)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
