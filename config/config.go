package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/AngHelll/AutomationFrameworkP/report"
	"github.com/AngHelll/AutomationFrameworkP/types"
)

// Debug toggles debug level logging for the entire process.
var Debug bool

type contextKey string

// LoggerCtxKey is the context key under which a scoped logger travels.
const LoggerCtxKey = contextKey("logger")

func GetLogLevel() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Browser kinds accepted by BrowserConfig.Kind.
const (
	BrowserChromium = "chromium"
	BrowserFirefox  = "firefox"
	BrowserEdge     = "edge"
)

// BrowserConfig defines how sessions are launched. Values will be taken
// from a config yml file or environment variables or both.
type BrowserConfig struct {
	Kind           string `yaml:"kind" env:"BROWSER_KIND" env-default:"chromium"`
	Headless       bool   `yaml:"headless" env:"BROWSER_HEADLESS" env-default:"true"`
	ExecPath       string `yaml:"exec_path" env:"BROWSER_EXEC_PATH"`
	UserAgent      string `yaml:"user_agent" env:"BROWSER_USER_AGENT"`
	WindowWidth    int    `yaml:"window_width" env:"BROWSER_WINDOW_WIDTH" env-default:"1920"`
	WindowHeight   int    `yaml:"window_height" env:"BROWSER_WINDOW_HEIGHT" env-default:"1080"`
	DisableScripts bool   `yaml:"disable_scripts" env:"BROWSER_DISABLE_SCRIPTS"`
	DisableImages  bool   `yaml:"disable_images" env:"BROWSER_DISABLE_IMAGES"`
}

func (c BrowserConfig) Validate() error {
	switch c.Kind {
	case BrowserChromium, BrowserFirefox, BrowserEdge:
		return nil
	}
	return fmt.Errorf("unknown browser kind %q", c.Kind)
}

// WaitConfig bounds explicit waits.
type WaitConfig struct {
	TimeoutMS  int `yaml:"timeout_ms" env:"WAIT_TIMEOUT_MS" env-default:"10000"`
	PollMS     int `yaml:"poll_ms" env:"WAIT_POLL_MS" env-default:"250"`
	PageLoadMS int `yaml:"page_load_ms" env:"WAIT_PAGE_LOAD_MS" env-default:"30000"`
}

func (c WaitConfig) Timeout() time.Duration  { return time.Duration(c.TimeoutMS) * time.Millisecond }
func (c WaitConfig) Poll() time.Duration     { return time.Duration(c.PollMS) * time.Millisecond }
func (c WaitConfig) PageLoad() time.Duration { return time.Duration(c.PageLoadMS) * time.Millisecond }

// RetryConfig bounds how often and how fast fallible operations are
// reattempted.
type RetryConfig struct {
	MaxAttempts   int     `yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	DelayMS       int     `yaml:"delay_ms" env:"RETRY_DELAY_MS" env-default:"500"`
	BackoffFactor float64 `yaml:"backoff_factor" env:"RETRY_BACKOFF_FACTOR" env-default:"2"`
	MaxDelayMS    int     `yaml:"max_delay_ms" env:"RETRY_MAX_DELAY_MS" env-default:"5000"`
}

func (c RetryConfig) Delay() time.Duration    { return time.Duration(c.DelayMS) * time.Millisecond }
func (c RetryConfig) MaxDelay() time.Duration { return time.Duration(c.MaxDelayMS) * time.Millisecond }

// DiagnosticsConfig controls failure artifacts.
type DiagnosticsConfig struct {
	Dir          string `yaml:"dir" env:"DIAGNOSTICS_DIR" env-default:"diagnostics"`
	CaptureHTML  bool   `yaml:"capture_html" env:"DIAGNOSTICS_CAPTURE_HTML"`
	TraceActions bool   `yaml:"trace_actions" env:"DIAGNOSTICS_TRACE_ACTIONS"`
}

// Config defines the overall structure of the runner configuration.
type Config struct {
	Browser     BrowserConfig       `yaml:"browser"`
	Wait        WaitConfig          `yaml:"wait"`
	Retry       RetryConfig         `yaml:"retry"`
	Diagnostics DiagnosticsConfig   `yaml:"diagnostics"`
	Writer      report.WriterConfig `yaml:"writer"`
	LogFile     string              `yaml:"log_file" env:"LOG_FILE"`
	Workers     int                 `yaml:"workers" env:"WORKERS" env-default:"1"`
	Checks      []types.Check       `yaml:"checks"`
}

func NewConfig(configPath string) (*Config, error) {
	var config Config

	if err := cleanenv.ReadConfig(configPath, &config); err != nil {
		return nil, err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	d := yaml.NewDecoder(file)
	if err := d.Decode(&config); err != nil {
		return nil, err
	}
	if err := config.Browser.Validate(); err != nil {
		return nil, err
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &config, nil
}
