package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"reelay/internal/subtitle"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateDubbing(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateCarousel(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTelegram() error {
	if c.Telegram.BotToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reelay/config.toml"
		}
		return fmt.Errorf("telegram.bot_token is required. Edit %s (create with 'reelay config init')", defaultPath)
	}
	if c.Telegram.PollTimeoutSeconds <= 0 {
		return errors.New("telegram.poll_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePublisher() error {
	if c.Publisher.APIKey == "" {
		return errors.New("publisher.api_key must be set")
	}
	if c.Publisher.User == "" {
		return errors.New("publisher.user must be set")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if c.Translation.DeepLAPIKey == "" && c.Translation.OpenAIAPIKey == "" {
		return errors.New("translation requires at least one of translation.deepl_api_key or translation.openai_api_key")
	}
	if c.Translation.TargetLanguage == "" {
		return errors.New("translation.target_language must be set")
	}
	if _, err := language.Parse(c.Translation.TargetLanguage); err != nil {
		return fmt.Errorf("translation.target_language %q is not a valid language tag: %w", c.Translation.TargetLanguage, err)
	}
	return nil
}

func (c *Config) validateConversion() error {
	if c.Conversion.APIKey == "" {
		return errors.New("conversion.api_key must be set")
	}
	return ensurePositiveMap(map[string]int{
		"conversion.poll_interval_seconds": c.Conversion.PollIntervalSeconds,
		"conversion.wait_timeout_seconds":  c.Conversion.WaitTimeoutSeconds,
	})
}

func (c *Config) validateDubbing() error {
	if c.Dubbing.APIKey == "" {
		return errors.New("dubbing.api_key must be set")
	}
	if c.Dubbing.OutputLanguage == "" {
		return errors.New("dubbing.output_language must be set")
	}
	return ensurePositiveMap(map[string]int{
		"dubbing.poll_interval_seconds": c.Dubbing.PollIntervalSeconds,
		"dubbing.timeout_seconds":       c.Dubbing.TimeoutSeconds,
	})
}

func (c *Config) validateSubtitles() error {
	if !subtitle.KnownProfile(c.Subtitles.StyleProfile) {
		return fmt.Errorf("subtitles.style_profile %q is unknown (known: %s)",
			c.Subtitles.StyleProfile, strings.Join(subtitle.ProfileNames(), ", "))
	}
	if _, ok := subtitle.ParsePolicy(c.Subtitles.ChunkPolicy); !ok {
		return fmt.Errorf("subtitles.chunk_policy %q is unknown", c.Subtitles.ChunkPolicy)
	}
	if _, ok := subtitle.ParseFormat(c.Subtitles.OutputFormat); !ok {
		return fmt.Errorf("subtitles.output_format %q must be \"srt\" or \"ass\"", c.Subtitles.OutputFormat)
	}
	if c.Subtitles.WordsPerCue < 1 || c.Subtitles.WordsPerCue > 3 {
		return errors.New("subtitles.words_per_cue must be between 1 and 3")
	}
	if c.Subtitles.MinCueSeconds <= 0 {
		return errors.New("subtitles.min_cue_seconds must be positive")
	}
	if c.Subtitles.Language != "" {
		if _, err := language.Parse(c.Subtitles.Language); err != nil {
			return fmt.Errorf("subtitles.language %q is not a valid language tag: %w", c.Subtitles.Language, err)
		}
	}
	return nil
}

func (c *Config) validateCarousel() error {
	return ensurePositiveMap(map[string]int{
		"carousel.quiet_period_seconds": c.Carousel.QuietPeriodSeconds,
		"carousel.max_items":            c.Carousel.MaxItems,
	})
}

func (c *Config) validateCaptions() error {
	if c.Captions.MaxLength < 0 {
		return errors.New("captions.max_length must be >= 0 (0 disables truncation)")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.Attempts < 1 {
		return errors.New("retry.attempts must be >= 1")
	}
	if c.Retry.DelaySeconds < 0 {
		return errors.New("retry.delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be \"console\" or \"json\"", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
