// Package processor classifies inbound Telegram messages and drives the
// publishing pipelines: single photos, dubbed and subtitled videos, and
// buffered carousels. One failure aborts the message's pipeline; nothing
// partial is ever published.
package processor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelay/internal/carousel"
	"reelay/internal/journal"
	"reelay/internal/notify"
	"reelay/internal/retry"
	"reelay/internal/services"
	"reelay/internal/subtitle"
	"reelay/internal/telegram"
	"reelay/internal/transcribe"
	"reelay/internal/translate"
)

// Source downloads Telegram file attachments.
type Source interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Translator produces the target-language caption.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Converter transcodes a raw video into a hosted MP4 URL.
type Converter interface {
	ConvertToMP4URL(ctx context.Context, video []byte, filename string) (string, error)
}

// Dubber voice-translates a hosted video and returns the result URL.
type Dubber interface {
	Dub(ctx context.Context, videoURL, outputLanguage, title string) (string, error)
}

// Publisher posts finished media to Instagram.
type Publisher interface {
	PublishPhoto(ctx context.Context, photo []byte, caption string) error
	PublishCarousel(ctx context.Context, photos [][]byte, caption string) error
	PublishVideo(ctx context.Context, video []byte, caption string) error
}

// Compositor runs the ffmpeg operations the video pipeline needs.
type Compositor interface {
	ExtractAudio(ctx context.Context, video []byte) ([]byte, error)
	BurnSubtitles(ctx context.Context, video []byte, document string, format subtitle.Format, style subtitle.StyleProfile) ([]byte, error)
}

// Transcriber produces timed transcripts from audio.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string, granularity subtitle.Granularity) (transcribe.Transcript, error)
}

// SubtitleOptions carries the configured cue synthesis settings.
type SubtitleOptions struct {
	Policy        subtitle.Policy
	WordsPerCue   int
	MinCueSeconds float64
	Format        subtitle.Format
	Style         subtitle.StyleProfile
	Language      string
}

// Options wires a Processor.
type Options struct {
	Source      Source
	Translator  Translator
	Converter   Converter
	Dubber      Dubber
	Publisher   Publisher
	Compositor  Compositor
	Transcriber Transcriber
	Journal     *journal.Store
	Notifier    notify.Service
	Retry       retry.Policy
	Subtitles   SubtitleOptions
	DubLanguage string
	// CaptionLimit truncates published captions; 0 disables truncation.
	CaptionLimit int
	QuietPeriod  time.Duration
	MaxCarousel  int
	Logger       *slog.Logger
	// Fetch downloads a URL's content; defaults to an HTTP GET.
	Fetch func(ctx context.Context, url string) ([]byte, error)
}

// Processor owns message classification and the per-kind pipelines.
type Processor struct {
	source      Source
	translator  Translator
	converter   Converter
	dubber      Dubber
	publisher   Publisher
	compositor  Compositor
	transcriber Transcriber
	journal     *journal.Store
	notifier    notify.Service
	retry       retry.Policy
	subs        SubtitleOptions
	dubLanguage string
	captionCap  int
	maxCarousel int
	logger      *slog.Logger
	fetch       func(ctx context.Context, url string) ([]byte, error)

	aggregator *carousel.Aggregator

	mu           sync.Mutex
	groupRecords map[string][]int64
}

// New constructs a processor and its carousel aggregator.
func New(opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewService("", 0)
	}
	fetch := opts.Fetch
	if fetch == nil {
		fetch = fetchURL
	}

	p := &Processor{
		source:       opts.Source,
		translator:   opts.Translator,
		converter:    opts.Converter,
		dubber:       opts.Dubber,
		publisher:    opts.Publisher,
		compositor:   opts.Compositor,
		transcriber:  opts.Transcriber,
		journal:      opts.Journal,
		notifier:     notifier,
		retry:        opts.Retry,
		subs:         opts.Subtitles,
		dubLanguage:  opts.DubLanguage,
		captionCap:   opts.CaptionLimit,
		maxCarousel:  opts.MaxCarousel,
		logger:       logger.With("component", "processor"),
		fetch:        fetch,
		groupRecords: make(map[string][]int64),
	}
	p.aggregator = carousel.New(opts.QuietPeriod, opts.MaxCarousel, p.flushCarousel, logger)
	p.aggregator.OnAbandon(p.abandonCarousel)
	return p
}

// Close flushes nothing: groups still collecting are abandoned, matching
// daemon shutdown semantics.
func (p *Processor) Close() {
	p.aggregator.Close()
}

// HandleMessage classifies one inbound message and runs its pipeline. It is
// safe to call from concurrent goroutines.
func (p *Processor) HandleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg == nil {
		return services.Wrap(services.ErrValidation, "processor", "handle message", "nil message", nil)
	}

	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	logger := p.logger.With("request_id", requestID, "chat_id", msg.Chat.ID, "message_id", msg.MessageID)

	seen, err := p.journal.Seen(ctx, msg.Chat.ID, msg.MessageID)
	if err != nil {
		return err
	}
	if seen {
		logger.Info("message already handled, skipping")
		return nil
	}

	switch {
	case msg.MediaGroupID != "" && len(msg.Photo) > 0:
		return p.handleGroupedPhoto(ctx, logger, msg)
	case len(msg.Photo) > 0 && strings.TrimSpace(msg.Caption) != "":
		return p.runPipeline(ctx, logger, msg, journal.KindPhoto, p.photoPipeline)
	case msg.Video != nil && strings.TrimSpace(msg.Caption) != "":
		return p.runPipeline(ctx, logger, msg, journal.KindVideo, p.videoPipeline)
	default:
		logger.Warn("message matches no pipeline, skipping",
			"has_photo", len(msg.Photo) > 0,
			"has_video", msg.Video != nil,
			"has_caption", strings.TrimSpace(msg.Caption) != "")
		record, err := p.journal.Begin(ctx, msg.Chat.ID, msg.MessageID, journal.KindSkipped)
		if err != nil {
			return err
		}
		return p.journal.Finish(ctx, record.ID, journal.StatusSkipped, "")
	}
}

func (p *Processor) runPipeline(ctx context.Context, logger *slog.Logger, msg *telegram.Message, kind journal.Kind, pipeline func(context.Context, *slog.Logger, *telegram.Message) error) error {
	record, err := p.journal.Begin(ctx, msg.Chat.ID, msg.MessageID, kind)
	if err != nil {
		return err
	}
	if err := pipeline(ctx, logger, msg); err != nil {
		logger.Error("pipeline failed", "kind", string(kind), "error", err)
		_ = p.journal.Finish(ctx, record.ID, journal.StatusFailed, err.Error())
		_ = p.notifier.NotifyError(ctx, err, string(kind)+" pipeline")
		return err
	}
	return p.journal.Finish(ctx, record.ID, journal.StatusPublished, "")
}

// photoPipeline: download, translate the caption, truncate, publish.
func (p *Processor) photoPipeline(ctx context.Context, logger *slog.Logger, msg *telegram.Message) error {
	photo := msg.LargestPhoto()
	data, err := retry.DoValue(ctx, p.retry, "download photo", func(ctx context.Context) ([]byte, error) {
		return p.source.DownloadFile(ctx, photo.FileID)
	})
	if err != nil {
		return err
	}

	caption, err := p.prepareCaption(ctx, msg.Caption)
	if err != nil {
		return err
	}

	if err := p.retry.Do(ctx, "publish photo", func(ctx context.Context) error {
		return p.publisher.PublishPhoto(ctx, data, caption)
	}); err != nil {
		return err
	}
	logger.Info("photo published", "caption_len", len(caption))
	return p.notifier.NotifyPublished(ctx, "photo", caption)
}

// videoPipeline: download, convert to a hosted URL, dub, synthesize and burn
// subtitles, translate the caption, publish.
func (p *Processor) videoPipeline(ctx context.Context, logger *slog.Logger, msg *telegram.Message) error {
	video, err := retry.DoValue(ctx, p.retry, "download video", func(ctx context.Context) ([]byte, error) {
		return p.source.DownloadFile(ctx, msg.Video.FileID)
	})
	if err != nil {
		return err
	}

	name := fmt.Sprintf("msg-%d", msg.MessageID)
	hostedURL, err := retry.DoValue(ctx, p.retry, "convert video", func(ctx context.Context) (string, error) {
		return p.converter.ConvertToMP4URL(ctx, video, name)
	})
	if err != nil {
		return err
	}
	logger.Info("video hosted for dubbing", "url", hostedURL)

	dubbedURL, err := retry.DoValue(ctx, p.retry, "dub video", func(ctx context.Context) (string, error) {
		return p.dubber.Dub(ctx, hostedURL, p.dubLanguage, name)
	})
	if err != nil {
		return err
	}

	dubbed, err := retry.DoValue(ctx, p.retry, "download dubbed video", func(ctx context.Context) ([]byte, error) {
		return p.fetch(ctx, dubbedURL)
	})
	if err != nil {
		return err
	}
	logger.Info("dubbed video downloaded", "bytes", len(dubbed))

	document, err := p.synthesizeSubtitles(ctx, logger, dubbed)
	if err != nil {
		return err
	}

	burned, err := p.compositor.BurnSubtitles(ctx, dubbed, document, p.subs.Format, p.subs.Style)
	if err != nil {
		return err
	}

	caption, err := p.prepareCaption(ctx, msg.Caption)
	if err != nil {
		return err
	}

	if err := p.retry.Do(ctx, "publish video", func(ctx context.Context) error {
		return p.publisher.PublishVideo(ctx, burned, caption)
	}); err != nil {
		return err
	}
	logger.Info("video published", "caption_len", len(caption))
	return p.notifier.NotifyPublished(ctx, "video", caption)
}

// synthesizeSubtitles extracts audio, transcribes it, and emits the subtitle
// document in the configured format.
func (p *Processor) synthesizeSubtitles(ctx context.Context, logger *slog.Logger, video []byte) (string, error) {
	audio, err := p.compositor.ExtractAudio(ctx, video)
	if err != nil {
		return "", err
	}

	granularity := subtitle.GranularitySegment
	if p.subs.Policy == subtitle.PolicyFixedWordCount {
		granularity = subtitle.GranularityWord
	}

	transcript, err := retry.DoValue(ctx, p.retry, "transcribe", func(ctx context.Context) (transcribe.Transcript, error) {
		return p.transcriber.Transcribe(ctx, audio, p.subs.Language, granularity)
	})
	if err != nil {
		return "", err
	}

	if p.subs.Format == subtitle.FormatASS {
		segments, _ := transcript.Units(subtitle.GranularitySegment)
		if len(segments) == 0 {
			return "", services.Wrap(services.ErrValidation, "processor", "synthesize subtitles", "transcript has no segments", nil)
		}
		return subtitle.EmitASS(segments, p.subs.Style, p.subs.Policy), nil
	}

	units, effective := transcript.Units(granularity)
	planner := subtitle.NewPlanner(p.subs.Policy, p.subs.WordsPerCue, p.subs.MinCueSeconds)
	cues, err := planner.Plan(units, effective)
	if err != nil {
		return "", err
	}
	logger.Info("subtitle document planned", "cues", len(cues), "policy", string(p.subs.Policy))
	return subtitle.EmitSRT(cues), nil
}

// handleGroupedPhoto downloads the photo and hands it to the aggregator. The
// journal record stays in processing until the group flushes or is abandoned.
func (p *Processor) handleGroupedPhoto(ctx context.Context, logger *slog.Logger, msg *telegram.Message) error {
	record, err := p.journal.Begin(ctx, msg.Chat.ID, msg.MessageID, journal.KindCarousel)
	if err != nil {
		return err
	}

	photo := msg.LargestPhoto()
	data, err := retry.DoValue(ctx, p.retry, "download carousel photo", func(ctx context.Context) ([]byte, error) {
		return p.source.DownloadFile(ctx, photo.FileID)
	})
	if err != nil {
		logger.Error("carousel photo download failed", "group_id", msg.MediaGroupID, "error", err)
		_ = p.journal.Finish(ctx, record.ID, journal.StatusFailed, err.Error())
		return err
	}

	p.mu.Lock()
	p.groupRecords[msg.MediaGroupID] = append(p.groupRecords[msg.MediaGroupID], record.ID)
	p.mu.Unlock()

	p.aggregator.Add(msg.MediaGroupID, data, msg.Caption)
	logger.Info("photo added to carousel group", "group_id", msg.MediaGroupID)
	return nil
}

// flushCarousel publishes a completed group and closes its journal records.
func (p *Processor) flushCarousel(ctx context.Context, groupID string, items [][]byte, caption string) {
	logger := p.logger.With("group_id", groupID, "count", len(items))

	caption, err := p.prepareCaption(ctx, caption)
	if err != nil {
		logger.Error("carousel caption translation failed", "error", err)
		p.finishGroup(ctx, groupID, journal.StatusFailed, err.Error())
		_ = p.notifier.NotifyError(ctx, err, "carousel pipeline")
		return
	}

	if err := p.retry.Do(ctx, "publish carousel", func(ctx context.Context) error {
		return p.publisher.PublishCarousel(ctx, items, caption)
	}); err != nil {
		logger.Error("carousel publish failed", "error", err)
		p.finishGroup(ctx, groupID, journal.StatusFailed, err.Error())
		_ = p.notifier.NotifyError(ctx, err, "carousel pipeline")
		return
	}

	logger.Info("carousel published")
	p.finishGroup(ctx, groupID, journal.StatusPublished, "")
	_ = p.notifier.NotifyPublished(ctx, "carousel", caption)
}

func (p *Processor) abandonCarousel(groupID string, count int) {
	ctx := context.Background()
	p.logger.Warn("carousel group abandoned", "group_id", groupID, "count", count)
	p.finishGroup(ctx, groupID, journal.StatusAbandoned, fmt.Sprintf("group collected %d items", count))
	_ = p.notifier.NotifyCarouselAbandoned(ctx, groupID, count, p.maxCarousel)
}

func (p *Processor) finishGroup(ctx context.Context, groupID string, status journal.Status, message string) {
	p.mu.Lock()
	ids := p.groupRecords[groupID]
	delete(p.groupRecords, groupID)
	p.mu.Unlock()
	for _, id := range ids {
		if err := p.journal.Finish(ctx, id, status, message); err != nil {
			p.logger.Error("journal update failed", "record_id", id, "error", err)
		}
	}
}

// prepareCaption translates and truncates the caption. Empty captions pass
// through untouched.
func (p *Processor) prepareCaption(ctx context.Context, caption string) (string, error) {
	if strings.TrimSpace(caption) == "" {
		return "", nil
	}
	translated, err := retry.DoValue(ctx, p.retry, "translate caption", func(ctx context.Context) (string, error) {
		return p.translator.Translate(ctx, caption)
	})
	if err != nil {
		return "", err
	}
	return translate.Truncate(translated, p.captionCap), nil
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "processor", "fetch", "build request", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "processor", "fetch", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrProvider, "processor", "fetch",
			fmt.Sprintf("status %d for %s", resp.StatusCode, url), nil)
	}
	return io.ReadAll(resp.Body)
}
