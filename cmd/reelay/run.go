package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reelay/internal/compositor"
	"reelay/internal/config"
	"reelay/internal/convert"
	"reelay/internal/daemon"
	"reelay/internal/dubbing"
	"reelay/internal/journal"
	"reelay/internal/logging"
	"reelay/internal/notify"
	"reelay/internal/processor"
	"reelay/internal/publisher"
	"reelay/internal/retry"
	"reelay/internal/subtitle"
	"reelay/internal/telegram"
	"reelay/internal/transcribe"
	"reelay/internal/translate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the republishing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "reelay.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := journal.Open(cfg.Paths.DataDir)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	bot := telegram.New(cfg.Telegram.BotToken, logger)
	proc := buildProcessor(cfg, bot, store, logger)

	d, err := daemon.New(daemon.Options{
		Poller:      bot,
		Handler:     proc,
		Journal:     store,
		PollTimeout: time.Duration(cfg.Telegram.PollTimeoutSeconds) * time.Second,
		DataDir:     cfg.Paths.DataDir,
		Logger:      logger,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelay daemon shutting down")
	return nil
}

// buildProcessor wires the provider clients into a processor from validated
// configuration.
func buildProcessor(cfg *config.Config, bot *telegram.Client, store *journal.Store, logger *slog.Logger) *processor.Processor {
	var primary, fallback translate.Provider
	if cfg.Translation.DeepLAPIKey != "" {
		primary = translate.NewDeepL(cfg.Translation.DeepLAPIKey, cfg.Translation.TargetLanguage, logger)
	}
	if cfg.Translation.OpenAIAPIKey != "" {
		openAI := translate.NewOpenAI(cfg.Translation.OpenAIAPIKey, cfg.Translation.TargetLanguage, logger)
		if primary == nil {
			primary = openAI
		} else {
			fallback = openAI
		}
	}

	policy, _ := subtitle.ParsePolicy(cfg.Subtitles.ChunkPolicy)
	format, _ := subtitle.ParseFormat(cfg.Subtitles.OutputFormat)

	return processor.New(processor.Options{
		Source:     bot,
		Translator: translate.NewTranslator(primary, fallback, logger),
		Converter: convert.New(cfg.Conversion.APIKey,
			time.Duration(cfg.Conversion.PollIntervalSeconds)*time.Second,
			time.Duration(cfg.Conversion.WaitTimeoutSeconds)*time.Second,
			logger),
		Dubber: dubbing.New(cfg.Dubbing.APIKey,
			time.Duration(cfg.Dubbing.PollIntervalSeconds)*time.Second,
			time.Duration(cfg.Dubbing.TimeoutSeconds)*time.Second,
			logger),
		Publisher:   publisher.New(cfg.Publisher.APIKey, cfg.Publisher.User, logger),
		Compositor:  compositor.New(cfg.FFmpegBinary(), cfg.FFprobeBinary(), logger),
		Transcriber: transcribe.New(cfg.Translation.OpenAIAPIKey, logger),
		Journal:     store,
		Notifier: notify.NewService(cfg.Notifications.NtfyTopic,
			time.Duration(cfg.Notifications.RequestTimeout)*time.Second),
		Retry: retry.New(cfg.Retry.Attempts,
			time.Duration(cfg.Retry.DelaySeconds)*time.Second, logger),
		Subtitles: processor.SubtitleOptions{
			Policy:        policy,
			WordsPerCue:   cfg.Subtitles.WordsPerCue,
			MinCueSeconds: cfg.Subtitles.MinCueSeconds,
			Format:        format,
			Style:         subtitle.ResolveStyle(cfg.Subtitles.StyleProfile),
			Language:      cfg.Subtitles.Language,
		},
		DubLanguage:  cfg.Dubbing.OutputLanguage,
		CaptionLimit: cfg.Captions.MaxLength,
		QuietPeriod:  time.Duration(cfg.Carousel.QuietPeriodSeconds) * time.Second,
		MaxCarousel:  cfg.Carousel.MaxItems,
		Logger:       logger,
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
