package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/schedule"
)

// Client variants for the meeting surface.
const (
	ClientWeb     = "web"
	ClientDesktop = "desktop"
)

// Poll generation integration methods.
const (
	GenerateBrowser = "browser"
	GenerateAPI     = "api"
)

// Reschedule policies (next fire time after a completed cycle).
const (
	RescheduleFixedDelay = "fixed_delay" // completion time + interval
	RescheduleFixedRate  = "fixed_rate"  // previous target time + interval
)

const defaultPollPrompt = `Based on the transcript below from a Zoom meeting, generate one engaging poll question with exactly four answer options. Format your response as a JSON object with "question" and "options" keys, where "options" is a list of four answer choices. The poll should be relevant to the content discussed in the transcript and encourage participation.

Transcript:
{transcript}

Response format:
{
  "question": "Your poll question here?",
  "options": [
    "Option A",
    "Option B",
    "Option C",
    "Option D"
  ]
}
`

// Config is the full daemon configuration.
//
// The file may be JSON or YAML (YAML is coerced to JSON before strict
// decoding). Interval fields deliberately keep the units of the original
// tool: minutes for the capture/post cadence, seconds for the scheduler
// check interval, milliseconds for adapter wait budgets. Everything else
// uses Go duration strings.
type Config struct {
	ZoomClientType           string `json:"zoom_client_type"`           // web|desktop
	TranscriptInterval       int    `json:"transcript_interval"`        // minutes
	PollInterval             int    `json:"poll_interval"`              // minutes
	DisplayName              string `json:"display_name"`
	AutoEnableCaptions       bool   `json:"auto_enable_captions"`
	AutoStart                bool   `json:"auto_start"`
	ChatGPTIntegrationMethod string `json:"chatgpt_integration_method"` // browser|api
	CheckInterval            int    `json:"check_interval"`             // seconds
	SaveTranscripts          bool   `json:"save_transcripts"`
	TranscriptsFolder        string `json:"transcripts_folder"`
	PollGenerationPrompt     string `json:"poll_generation_prompt,omitempty"`

	// WaitTimes are per-phase millisecond budgets handed to the automation
	// adapter (how long a driver may spend on each UI phase).
	WaitTimes WaitTimes `json:"wait_times"`

	// Optional cron specs (standard 5-field or "@every ...") that override
	// the minute intervals for the recurring entries.
	CaptureSchedule string `json:"capture_schedule,omitempty"`
	PostSchedule    string `json:"post_schedule,omitempty"`

	// ReschedulePolicy selects how the next fire time is computed after a
	// cycle completes. Default fixed_delay.
	ReschedulePolicy string `json:"reschedule_policy,omitempty"`

	Retry   RetryConfig    `json:"retry,omitempty"`
	Vault   VaultConfig    `json:"vault,omitempty"`
	Logging LoggingConfig  `json:"logging"`
	Web     WebConfig      `json:"web"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Driver  DriverConfig   `json:"driver,omitempty"`
	OpenAI  OpenAIConfig   `json:"openai,omitempty"`
}

type WaitTimes struct {
	ZoomLaunchMS  int `json:"zoom_launch_ms,omitempty"`
	JoinScreenMS  int `json:"join_screen_ms,omitempty"`
	MeetingLoadMS int `json:"meeting_load_ms,omitempty"`
	UIActionMS    int `json:"ui_action_ms,omitempty"`
}

// RetryConfig controls the per-cycle retry policy, shared by all action kinds.
// Durations are Go duration strings.
type RetryConfig struct {
	MaxAttempts int    `json:"max_attempts,omitempty"`
	BaseDelay   string `json:"base_delay,omitempty"`
	MaxDelay    string `json:"max_delay,omitempty"`
}

// VaultConfig controls the in-memory credential store.
type VaultConfig struct {
	TTL           string `json:"ttl,omitempty"`            // default 30m
	SweepInterval string `json:"sweep_interval,omitempty"` // default: check_interval
}

type LoggingConfig struct {
	Level      string      `json:"level"`
	Console    bool        `json:"console"`
	File       LoggingFile `json:"file"`
	BufferSize int         `json:"buffer_size,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WebConfig controls the HTTP mirror of the command surface.
//
// The bearer token is never configured here; it comes from the
// SESSION_SECRET environment variable.
type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8787"

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// StorageConfig controls the optional history store.
type StorageConfig struct {
	Driver      string `json:"driver"` // sqlite|off
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DriverConfig points at the external automation helper used by the script
// adapter (the pixel/DOM driver lives outside this process).
type DriverConfig struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// OpenAIConfig is honored only when chatgpt_integration_method is "api".
// The API key is read from OPENAI_API_KEY, never from the file.
type OpenAIConfig struct {
	BaseURL        string `json:"base_url,omitempty"`
	Model          string `json:"model,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// Default returns the configuration used when a key is omitted.
func Default() *Config {
	return &Config{
		ZoomClientType:           ClientWeb,
		TranscriptInterval:       10,
		PollInterval:             15,
		DisplayName:              "Poll Generator",
		AutoEnableCaptions:       true,
		AutoStart:                false,
		ChatGPTIntegrationMethod: GenerateBrowser,
		CheckInterval:            30,
		SaveTranscripts:          true,
		TranscriptsFolder:        "./transcripts",
		WaitTimes: WaitTimes{
			ZoomLaunchMS:  8000,
			JoinScreenMS:  5000,
			MeetingLoadMS: 10000,
			UIActionMS:    2000,
		},
		ReschedulePolicy: RescheduleFixedDelay,
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Web: WebConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8787",
		},
	}
}

// withDefaults fills zero values in-place after decoding.
func (c *Config) withDefaults() {
	d := Default()
	if strings.TrimSpace(c.ZoomClientType) == "" {
		c.ZoomClientType = d.ZoomClientType
	}
	if c.TranscriptInterval == 0 {
		c.TranscriptInterval = d.TranscriptInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if strings.TrimSpace(c.DisplayName) == "" {
		c.DisplayName = d.DisplayName
	}
	if strings.TrimSpace(c.ChatGPTIntegrationMethod) == "" {
		c.ChatGPTIntegrationMethod = d.ChatGPTIntegrationMethod
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = d.CheckInterval
	}
	if strings.TrimSpace(c.TranscriptsFolder) == "" {
		c.TranscriptsFolder = d.TranscriptsFolder
	}
	if c.WaitTimes == (WaitTimes{}) {
		c.WaitTimes = d.WaitTimes
	}
	if strings.TrimSpace(c.ReschedulePolicy) == "" {
		c.ReschedulePolicy = d.ReschedulePolicy
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = d.Logging.Level
	}
	if strings.TrimSpace(c.Web.Addr) == "" {
		c.Web.Addr = d.Web.Addr
	}
}

// Validate rejects configurations the daemon cannot run with.
// Called both at startup (fatal) and before committing a hot reload.
func (c *Config) Validate() error {
	switch c.ZoomClientType {
	case ClientWeb, ClientDesktop:
	default:
		return fmt.Errorf("zoom_client_type: must be %q or %q, got %q", ClientWeb, ClientDesktop, c.ZoomClientType)
	}
	switch c.ChatGPTIntegrationMethod {
	case GenerateBrowser, GenerateAPI:
	default:
		return fmt.Errorf("chatgpt_integration_method: must be %q or %q, got %q", GenerateBrowser, GenerateAPI, c.ChatGPTIntegrationMethod)
	}
	switch c.ReschedulePolicy {
	case RescheduleFixedDelay, RescheduleFixedRate:
	default:
		return fmt.Errorf("reschedule_policy: must be %q or %q, got %q", RescheduleFixedDelay, RescheduleFixedRate, c.ReschedulePolicy)
	}
	if c.TranscriptInterval < 1 {
		return fmt.Errorf("transcript_interval: must be >= 1 minute")
	}
	if c.PollInterval < 1 {
		return fmt.Errorf("poll_interval: must be >= 1 minute")
	}
	if c.CheckInterval < 1 {
		return fmt.Errorf("check_interval: must be >= 1 second")
	}
	if c.CaptureSchedule != "" {
		if _, err := schedule.ParseSpec(c.CaptureSchedule); err != nil {
			return fmt.Errorf("capture_schedule: %w", err)
		}
	}
	if c.PostSchedule != "" {
		if _, err := schedule.ParseSpec(c.PostSchedule); err != nil {
			return fmt.Errorf("post_schedule: %w", err)
		}
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts: must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"retry.base_delay", c.Retry.BaseDelay},
		{"retry.max_delay", c.Retry.MaxDelay},
		{"vault.ttl", c.Vault.TTL},
		{"vault.sweep_interval", c.Vault.SweepInterval},
		{"web.read_timeout", c.Web.ReadTimeout},
		{"web.write_timeout", c.Web.WriteTimeout},
		{"web.idle_timeout", c.Web.IdleTimeout},
		{"openai.request_timeout", c.OpenAI.RequestTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		switch c.Storage.Driver {
		case "", "off", "sqlite":
		default:
			return fmt.Errorf("storage.driver: must be \"sqlite\" or \"off\", got %q", c.Storage.Driver)
		}
		if c.Storage.Driver == "sqlite" && strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path: required with the sqlite driver")
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

// TranscriptEvery returns the capture cadence as a duration.
func (c *Config) TranscriptEvery() time.Duration {
	return time.Duration(c.TranscriptInterval) * time.Minute
}

// PollEvery returns the posting cadence as a duration.
func (c *Config) PollEvery() time.Duration {
	return time.Duration(c.PollInterval) * time.Minute
}

// CheckEvery returns the scheduler wake interval as a duration.
func (c *Config) CheckEvery() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// Prompt returns the poll generation prompt template.
func (c *Config) Prompt() string {
	if strings.TrimSpace(c.PollGenerationPrompt) != "" {
		return c.PollGenerationPrompt
	}
	return defaultPollPrompt
}
