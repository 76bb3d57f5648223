package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Telegram contains configuration for the inbound Bot API edge.
type Telegram struct {
	BotToken           string `toml:"bot_token"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
}

// Publisher contains configuration for the upload-post Instagram publisher.
type Publisher struct {
	APIKey string `toml:"api_key"`
	User   string `toml:"user"`
}

// Translation contains configuration for caption translation.
type Translation struct {
	DeepLAPIKey    string `toml:"deepl_api_key"`
	OpenAIAPIKey   string `toml:"openai_api_key"`
	TargetLanguage string `toml:"target_language"`
}

// Conversion contains configuration for CloudConvert video transcoding.
type Conversion struct {
	APIKey              string `toml:"api_key"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	WaitTimeoutSeconds  int    `toml:"wait_timeout_seconds"`
}

// Dubbing contains configuration for HeyGen voice translation.
type Dubbing struct {
	APIKey              string `toml:"api_key"`
	OutputLanguage      string `toml:"output_language"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Subtitles contains configuration for cue synthesis and burning.
type Subtitles struct {
	StyleProfile  string  `toml:"style_profile"`
	ChunkPolicy   string  `toml:"chunk_policy"`
	WordsPerCue   int     `toml:"words_per_cue"`
	MinCueSeconds float64 `toml:"min_cue_seconds"`
	OutputFormat  string  `toml:"output_format"`
	Language      string  `toml:"language"`
}

// Carousel contains configuration for media group aggregation.
type Carousel struct {
	QuietPeriodSeconds int `toml:"quiet_period_seconds"`
	MaxItems           int `toml:"max_items"`
}

// Captions contains configuration for published captions.
type Captions struct {
	MaxLength int `toml:"max_length"`
}

// Retry contains configuration for provider call retries.
type Retry struct {
	Attempts     int `toml:"attempts"`
	DelaySeconds int `toml:"delay_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Reelay.
//
// Configuration sections by subsystem:
//   - Paths: data (journal, lock) and log directories
//   - Telegram: bot token and long-poll timing
//   - Publisher: upload-post credentials and profile
//   - Translation: DeepL primary / OpenAI fallback settings
//   - Conversion: CloudConvert transcoding settings
//   - Dubbing: HeyGen voice translation settings
//   - Subtitles: cue planning policy, style, and output format
//   - Carousel: media group quiet period and size limit
//   - Captions: published caption length limit
//   - Retry: provider retry attempts and delay
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Telegram      Telegram      `toml:"telegram"`
	Publisher     Publisher     `toml:"publisher"`
	Translation   Translation   `toml:"translation"`
	Conversion    Conversion    `toml:"conversion"`
	Dubbing       Dubbing       `toml:"dubbing"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Carousel      Carousel      `toml:"carousel"`
	Captions      Captions      `toml:"captions"`
	Retry         Retry         `toml:"retry"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelay/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelay.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used by the compositor.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
