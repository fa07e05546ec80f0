package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stationagent/internal/model"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config enumerates every tunable of the agent.
type Config struct {
	Backend     BackendConfig     `mapstructure:"backend"`
	Camera      CameraConfig      `mapstructure:"camera"`
	Stations    []StationConfig   `mapstructure:"stations"`
	Inference   InferenceConfig   `mapstructure:"inference"`
	Stream      StreamConfig      `mapstructure:"stream"`
	AutoCapture AutoCaptureConfig `mapstructure:"autocapture"`
	Poller      PollerConfig      `mapstructure:"poller"`
	Status      StatusConfig      `mapstructure:"status"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Log         LogConfig         `mapstructure:"log"`
}

// BackendConfig controls the remote API client. Each call type has its own timeout.
type BackendConfig struct {
	URL             string        `mapstructure:"url"`
	ServiceRecordID string        `mapstructure:"service_record_id"`
	UserAgent       string        `mapstructure:"user_agent"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	PushTimeout     time.Duration `mapstructure:"push_timeout"`
	CaptureTimeout  time.Duration `mapstructure:"capture_timeout"`
	HealthTimeout   time.Duration `mapstructure:"health_timeout"`
}

// CameraConfig is applied to every device right after it is opened.
type CameraConfig struct {
	Width        int `mapstructure:"width"`
	Height       int `mapstructure:"height"`
	FPS          int `mapstructure:"fps"`
	BufferSize   int `mapstructure:"buffer_size"`
	WarmupFrames int `mapstructure:"warmup_frames"` // frames discarded after open
}

// StationConfig binds a device id to a station. Model defaults by station.
type StationConfig struct {
	ID      int    `mapstructure:"id"`
	Station string `mapstructure:"station"`
	Model   string `mapstructure:"model"`
}

type InferenceConfig struct {
	DamageModelPath  string  `mapstructure:"damage_model_path"`
	DamageLabelsPath string  `mapstructure:"damage_labels_path"`
	BrakeModelPath   string  `mapstructure:"brake_model_path"`
	BrakeLabelsPath  string  `mapstructure:"brake_labels_path"`
	Confidence       float64 `mapstructure:"confidence"`
	NMSThreshold     float64 `mapstructure:"nms_threshold"`
	InputSize        int     `mapstructure:"input_size"`
	MaxFrameDim      int     `mapstructure:"max_frame_dim"` // longest side before inference
	MaxDetections    int     `mapstructure:"max_detections"`
}

type StreamConfig struct {
	TargetFPS         float64       `mapstructure:"target_fps"`
	JPEGQuality       int           `mapstructure:"jpeg_quality"`
	IdleDelay         time.Duration `mapstructure:"idle_delay"`
	ErrorBackoff      time.Duration `mapstructure:"error_backoff"`
	FPSReportInterval time.Duration `mapstructure:"fps_report_interval"`
}

type AutoCaptureConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"` // dwell per station
	StabilizeDelay time.Duration `mapstructure:"stabilize_delay"`
	ErrorBackoff   time.Duration `mapstructure:"error_backoff"`
}

type PollerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// StatusConfig controls the local ops server. An empty token disables auth.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Token   string `mapstructure:"token"`
}

type StorageConfig struct {
	DatabasePath         string        `mapstructure:"database_path"`
	JournalFlushInterval time.Duration `mapstructure:"journal_flush_interval"`
	JournalBufferLimit   int           `mapstructure:"journal_buffer_limit"`
}

type LogConfig struct {
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

// Load reads .env, the optional YAML file at path (or ./agent.yaml) and
// AGENT_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("agent")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.service_record_id", "")
	v.SetDefault("backend.user_agent", "station-agent/1.0")
	v.SetDefault("backend.poll_timeout", time.Second)
	v.SetDefault("backend.push_timeout", 2*time.Second)
	v.SetDefault("backend.capture_timeout", 5*time.Second)
	v.SetDefault("backend.health_timeout", 5*time.Second)

	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("camera.fps", 10)
	v.SetDefault("camera.buffer_size", 1)
	v.SetDefault("camera.warmup_frames", 5)

	stations := make([]map[string]any, 0, 4)
	for _, slot := range model.DefaultSlots() {
		stations = append(stations, map[string]any{
			"id":      slot.ID,
			"station": string(slot.Station),
			"model":   string(slot.Model),
		})
	}
	v.SetDefault("stations", stations)

	v.SetDefault("inference.damage_model_path", filepath.Join(".", "models", "damage.onnx"))
	v.SetDefault("inference.damage_labels_path", filepath.Join(".", "models", "damage.names"))
	v.SetDefault("inference.brake_model_path", filepath.Join(".", "models", "brake.onnx"))
	v.SetDefault("inference.brake_labels_path", filepath.Join(".", "models", "brake.names"))
	v.SetDefault("inference.confidence", 0.25)
	v.SetDefault("inference.nms_threshold", 0.45)
	v.SetDefault("inference.input_size", 640)
	v.SetDefault("inference.max_frame_dim", 640)
	v.SetDefault("inference.max_detections", 50)

	v.SetDefault("stream.target_fps", 10.0)
	v.SetDefault("stream.jpeg_quality", 95)
	v.SetDefault("stream.idle_delay", 100*time.Millisecond)
	v.SetDefault("stream.error_backoff", 500*time.Millisecond)
	v.SetDefault("stream.fps_report_interval", 5*time.Second)

	v.SetDefault("autocapture.enabled", true)
	v.SetDefault("autocapture.interval", 10*time.Second)
	v.SetDefault("autocapture.stabilize_delay", 500*time.Millisecond)
	v.SetDefault("autocapture.error_backoff", 5*time.Second)

	v.SetDefault("poller.interval", 300*time.Millisecond)
	v.SetDefault("poller.error_backoff", time.Second)
	v.SetDefault("poller.startup_delay", time.Second)

	v.SetDefault("status.enabled", true)
	v.SetDefault("status.addr", ":8090")
	v.SetDefault("status.token", "")

	v.SetDefault("storage.database_path", filepath.Join(".", "data", "agent.db"))
	v.SetDefault("storage.journal_flush_interval", 30*time.Second)
	v.SetDefault("storage.journal_buffer_limit", 100)

	v.SetDefault("log.directory", filepath.Join(".", "logs"))
	v.SetDefault("log.level", "info")
}

// Validate checks every tunable and the station mapping.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.Backend.URL != "", "backend.url is required")
	check(c.Backend.PollTimeout > 0, "backend.poll_timeout must be positive")
	check(c.Backend.PushTimeout > 0, "backend.push_timeout must be positive")
	check(c.Backend.CaptureTimeout > 0, "backend.capture_timeout must be positive")
	check(c.Backend.HealthTimeout > 0, "backend.health_timeout must be positive")

	check(c.Camera.Width > 0 && c.Camera.Height > 0, "camera resolution must be positive")
	check(c.Camera.FPS > 0, "camera.fps must be positive")
	check(c.Camera.WarmupFrames >= 0, "camera.warmup_frames must not be negative")

	check(c.Inference.Confidence > 0 && c.Inference.Confidence < 1, "inference.confidence must be in (0,1)")
	check(c.Inference.NMSThreshold > 0 && c.Inference.NMSThreshold < 1, "inference.nms_threshold must be in (0,1)")
	check(c.Inference.InputSize > 0, "inference.input_size must be positive")
	check(c.Inference.MaxFrameDim > 0, "inference.max_frame_dim must be positive")
	check(c.Inference.DamageModelPath != "", "inference.damage_model_path is required")

	check(c.Stream.TargetFPS > 0, "stream.target_fps must be positive")
	check(c.Stream.JPEGQuality >= 1 && c.Stream.JPEGQuality <= 100, "stream.jpeg_quality must be in 1..100")
	check(c.Stream.IdleDelay > 0, "stream.idle_delay must be positive")
	check(c.Stream.ErrorBackoff > 0, "stream.error_backoff must be positive")
	check(c.Stream.FPSReportInterval > 0, "stream.fps_report_interval must be positive")

	check(c.AutoCapture.Interval > 0, "autocapture.interval must be positive")
	check(c.AutoCapture.StabilizeDelay >= 0, "autocapture.stabilize_delay must not be negative")
	check(c.AutoCapture.ErrorBackoff > 0, "autocapture.error_backoff must be positive")

	check(c.Poller.Interval > 0, "poller.interval must be positive")
	check(c.Poller.ErrorBackoff > 0, "poller.error_backoff must be positive")
	check(c.Poller.StartupDelay >= 0, "poller.startup_delay must not be negative")

	check(!c.Status.Enabled || c.Status.Addr != "", "status.addr is required when the status server is enabled")
	check(c.Storage.JournalFlushInterval > 0, "storage.journal_flush_interval must be positive")
	check(c.Storage.JournalBufferLimit > 0, "storage.journal_buffer_limit must be positive")

	if _, err := c.SlotTable(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// SlotTable builds the validated device mapping from Stations.
func (c *Config) SlotTable() (*model.SlotTable, error) {
	slots := make([]model.DeviceSlot, 0, len(c.Stations))
	for _, sc := range c.Stations {
		st, err := model.ParseStation(sc.Station)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", sc.ID, err)
		}
		kind := st.DefaultModel()
		if sc.Model != "" {
			kind = model.ModelKind(strings.ToLower(sc.Model))
		}
		slots = append(slots, model.DeviceSlot{ID: sc.ID, Station: st, Model: kind})
	}
	return model.NewSlotTable(slots)
}

// FrameInterval is the pacing period derived from TargetFPS.
func (c StreamConfig) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TargetFPS)
}
