package config

const (
	defaultDataDir            = "~/.local/share/reelay"
	defaultLogDir             = "~/.local/share/reelay/logs"
	defaultPollTimeoutSeconds = 25
	defaultTargetLanguage     = "es"
	defaultConvertPollSeconds = 5
	defaultConvertWaitSeconds = 300
	defaultDubbingPollSeconds = 10
	defaultDubbingWaitSeconds = 600
	defaultDubbingLanguage    = "Spanish"
	defaultStyleProfile       = "classic"
	defaultChunkPolicy        = "equal_division"
	defaultWordsPerCue        = 2
	defaultMinCueSeconds      = 0.5
	defaultOutputFormat       = "ass"
	defaultSubtitleLanguage   = "es"
	defaultQuietPeriodSeconds = 30
	defaultMaxCarouselItems   = 10
	defaultCaptionMaxLength   = 2200
	defaultRetryAttempts      = 3
	defaultRetryDelaySeconds  = 1
	defaultNtfyRequestTimeout = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Telegram: Telegram{
			PollTimeoutSeconds: defaultPollTimeoutSeconds,
		},
		Translation: Translation{
			TargetLanguage: defaultTargetLanguage,
		},
		Conversion: Conversion{
			PollIntervalSeconds: defaultConvertPollSeconds,
			WaitTimeoutSeconds:  defaultConvertWaitSeconds,
		},
		Dubbing: Dubbing{
			OutputLanguage:      defaultDubbingLanguage,
			PollIntervalSeconds: defaultDubbingPollSeconds,
			TimeoutSeconds:      defaultDubbingWaitSeconds,
		},
		Subtitles: Subtitles{
			StyleProfile:  defaultStyleProfile,
			ChunkPolicy:   defaultChunkPolicy,
			WordsPerCue:   defaultWordsPerCue,
			MinCueSeconds: defaultMinCueSeconds,
			OutputFormat:  defaultOutputFormat,
			Language:      defaultSubtitleLanguage,
		},
		Carousel: Carousel{
			QuietPeriodSeconds: defaultQuietPeriodSeconds,
			MaxItems:           defaultMaxCarouselItems,
		},
		Captions: Captions{
			MaxLength: defaultCaptionMaxLength,
		},
		Retry: Retry{
			Attempts:     defaultRetryAttempts,
			DelaySeconds: defaultRetryDelaySeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
