package config

import (
	"fmt"
	"strings"
)

// normalize expands path fields and trims string values so validation and the
// rest of the repository see canonical settings.
func (c *Config) normalize() error {
	expanded, err := expandPath(c.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("normalize paths.data_dir: %w", err)
	}
	c.Paths.DataDir = expanded

	expanded, err = expandPath(c.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("normalize paths.log_dir: %w", err)
	}
	c.Paths.LogDir = expanded

	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Publisher.APIKey = strings.TrimSpace(c.Publisher.APIKey)
	c.Publisher.User = strings.TrimSpace(c.Publisher.User)
	c.Translation.DeepLAPIKey = strings.TrimSpace(c.Translation.DeepLAPIKey)
	c.Translation.OpenAIAPIKey = strings.TrimSpace(c.Translation.OpenAIAPIKey)
	c.Translation.TargetLanguage = strings.TrimSpace(c.Translation.TargetLanguage)
	c.Conversion.APIKey = strings.TrimSpace(c.Conversion.APIKey)
	c.Dubbing.APIKey = strings.TrimSpace(c.Dubbing.APIKey)
	c.Dubbing.OutputLanguage = strings.TrimSpace(c.Dubbing.OutputLanguage)
	c.Subtitles.StyleProfile = strings.ToLower(strings.TrimSpace(c.Subtitles.StyleProfile))
	c.Subtitles.ChunkPolicy = strings.ToLower(strings.TrimSpace(c.Subtitles.ChunkPolicy))
	c.Subtitles.OutputFormat = strings.ToLower(strings.TrimSpace(c.Subtitles.OutputFormat))
	c.Subtitles.Language = strings.TrimSpace(c.Subtitles.Language)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	return nil
}
