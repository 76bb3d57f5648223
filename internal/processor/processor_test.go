package processor_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"reelay/internal/journal"
	"reelay/internal/processor"
	"reelay/internal/retry"
	"reelay/internal/services"
	"reelay/internal/subtitle"
	"reelay/internal/telegram"
	"reelay/internal/transcribe"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type stubSource struct {
	files map[string][]byte
	err   error
}

func (s *stubSource) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("unknown file %q", fileID)
	}
	return data, nil
}

type stubTranslator struct {
	prefix string
	err    error
}

func (s *stubTranslator) Translate(_ context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.prefix + text, nil
}

type stubConverter struct{ url string }

func (s *stubConverter) ConvertToMP4URL(context.Context, []byte, string) (string, error) {
	return s.url, nil
}

type stubDubber struct {
	url      string
	language string
}

func (s *stubDubber) Dub(_ context.Context, _, outputLanguage, _ string) (string, error) {
	s.language = outputLanguage
	return s.url, nil
}

type stubPublisher struct {
	mu        sync.Mutex
	photos    [][]byte
	videos    [][]byte
	carousels [][][]byte
	captions  []string
	err       error
	done      chan struct{}
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{done: make(chan struct{}, 8)}
}

func (s *stubPublisher) record(caption string) {
	s.captions = append(s.captions, caption)
	select {
	case s.done <- struct{}{}:
	default:
	}
}

func (s *stubPublisher) PublishPhoto(_ context.Context, photo []byte, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.photos = append(s.photos, photo)
	s.record(caption)
	return nil
}

func (s *stubPublisher) PublishCarousel(_ context.Context, photos [][]byte, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.carousels = append(s.carousels, photos)
	s.record(caption)
	return nil
}

func (s *stubPublisher) PublishVideo(_ context.Context, video []byte, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.videos = append(s.videos, video)
	s.record(caption)
	return nil
}

type stubCompositor struct {
	audio    []byte
	burned   []byte
	document string
}

func (s *stubCompositor) ExtractAudio(context.Context, []byte) ([]byte, error) {
	return s.audio, nil
}

func (s *stubCompositor) BurnSubtitles(_ context.Context, _ []byte, document string, _ subtitle.Format, _ subtitle.StyleProfile) ([]byte, error) {
	s.document = document
	return s.burned, nil
}

type stubTranscriber struct {
	transcript transcribe.Transcript
	language   string
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, language string, _ subtitle.Granularity) (transcribe.Transcript, error) {
	s.language = language
	return s.transcript, nil
}

type fixture struct {
	processor  *processor.Processor
	journal    *journal.Store
	source     *stubSource
	publisher  *stubPublisher
	compositor *stubCompositor
	translator *stubTranslator
}

func newFixture(t *testing.T, mutate func(*processor.Options)) *fixture {
	t.Helper()
	store, err := journal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	source := &stubSource{files: map[string][]byte{
		"photo-big": []byte("jpeg-big"),
		"video-1":   []byte("raw-video"),
	}}
	publisher := newStubPublisher()
	compositor := &stubCompositor{audio: []byte("mp3"), burned: []byte("subtitled-video")}
	translator := &stubTranslator{prefix: "es: "}

	opts := processor.Options{
		Source:     source,
		Translator: translator,
		Converter:  &stubConverter{url: "https://hosted.example/in.mp4"},
		Dubber:     &stubDubber{url: "https://hosted.example/dubbed.mp4"},
		Publisher:  publisher,
		Compositor: compositor,
		Transcriber: &stubTranscriber{transcript: transcribe.Transcript{
			Language: "es",
			Segments: []subtitle.Unit{{Start: 0, End: 1.2, Text: "hola mundo"}},
		}},
		Journal: store,
		Retry:   retry.New(2, time.Millisecond, discard()),
		Subtitles: processor.SubtitleOptions{
			Policy:        subtitle.PolicyEqualDivision,
			WordsPerCue:   2,
			MinCueSeconds: 0.5,
			Format:        subtitle.FormatASS,
			Style:         subtitle.ResolveStyle("classic"),
			Language:      "es",
		},
		DubLanguage:  "Spanish",
		CaptionLimit: 2200,
		QuietPeriod:  30 * time.Millisecond,
		MaxCarousel:  10,
		Logger:       discard(),
		Fetch: func(context.Context, string) ([]byte, error) {
			return []byte("dubbed-video"), nil
		},
	}
	if mutate != nil {
		mutate(&opts)
	}

	p := processor.New(opts)
	t.Cleanup(p.Close)
	return &fixture{
		processor:  p,
		journal:    store,
		source:     source,
		publisher:  publisher,
		compositor: compositor,
		translator: translator,
	}
}

func photoMessage(id int64, caption string) *telegram.Message {
	return &telegram.Message{
		MessageID: id,
		Chat:      telegram.Chat{ID: 1},
		Caption:   caption,
		Photo: []telegram.PhotoSize{
			{FileID: "photo-small", Width: 90, Height: 90},
			{FileID: "photo-big", Width: 1280, Height: 1280},
		},
	}
}

func videoMessage(id int64, caption string) *telegram.Message {
	return &telegram.Message{
		MessageID: id,
		Chat:      telegram.Chat{ID: 1},
		Caption:   caption,
		Video:     &telegram.Video{FileID: "video-1", Duration: 12},
	}
}

func TestPhotoPipeline(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.processor.HandleMessage(t.Context(), photoMessage(10, "un gato")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(f.publisher.photos) != 1 || string(f.publisher.photos[0]) != "jpeg-big" {
		t.Fatalf("expected the largest photo published, got %+v", f.publisher.photos)
	}
	if f.publisher.captions[0] != "es: un gato" {
		t.Fatalf("caption = %q", f.publisher.captions[0])
	}

	records, err := f.journal.List(t.Context())
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	if len(records) != 1 || records[0].Status != journal.StatusPublished || records[0].Kind != journal.KindPhoto {
		t.Fatalf("unexpected journal state %+v", records)
	}
}

func TestDuplicateMessageSkipped(t *testing.T) {
	f := newFixture(t, nil)

	msg := photoMessage(11, "dup")
	if err := f.processor.HandleMessage(t.Context(), msg); err != nil {
		t.Fatalf("first HandleMessage: %v", err)
	}
	if err := f.processor.HandleMessage(t.Context(), msg); err != nil {
		t.Fatalf("second HandleMessage: %v", err)
	}
	if len(f.publisher.photos) != 1 {
		t.Fatalf("duplicate message was republished: %d photos", len(f.publisher.photos))
	}
}

func TestVideoPipelineBurnsASSKaraoke(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.processor.HandleMessage(t.Context(), videoMessage(12, "mira esto")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(f.publisher.videos) != 1 || string(f.publisher.videos[0]) != "subtitled-video" {
		t.Fatalf("expected the burned video published, got %+v", f.publisher.videos)
	}
	if !strings.Contains(f.compositor.document, "Dialogue:") {
		t.Fatalf("expected an ASS document, got %q", f.compositor.document)
	}
	if !strings.Contains(f.compositor.document, `{\k`) {
		t.Fatalf("expected karaoke reveal tags, got %q", f.compositor.document)
	}
	if f.publisher.captions[0] != "es: mira esto" {
		t.Fatalf("caption = %q", f.publisher.captions[0])
	}
}

func TestVideoPipelineSRTFormat(t *testing.T) {
	f := newFixture(t, func(opts *processor.Options) {
		opts.Subtitles.Format = subtitle.FormatSRT
	})

	if err := f.processor.HandleMessage(t.Context(), videoMessage(13, "srt")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(f.compositor.document, "-->") {
		t.Fatalf("expected an SRT document, got %q", f.compositor.document)
	}
	if !strings.Contains(f.compositor.document, "HOLA MUNDO") {
		t.Fatalf("expected upper-cased cue text, got %q", f.compositor.document)
	}
}

func TestUnclassifiedMessageSkipped(t *testing.T) {
	f := newFixture(t, nil)

	msg := &telegram.Message{MessageID: 14, Chat: telegram.Chat{ID: 1}, Caption: "text only"}
	if err := f.processor.HandleMessage(t.Context(), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(f.publisher.captions) != 0 {
		t.Fatal("nothing may be published for unclassified messages")
	}
	records, _ := f.journal.List(t.Context())
	if len(records) != 1 || records[0].Status != journal.StatusSkipped {
		t.Fatalf("expected skipped record, got %+v", records)
	}
}

func TestPipelineFailureRecordsError(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = services.Wrap(services.ErrProvider, "publisher", "publish photo", "status 500", nil)

	err := f.processor.HandleMessage(t.Context(), photoMessage(15, "fail"))
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	records, _ := f.journal.List(t.Context())
	if len(records) != 1 || records[0].Status != journal.StatusFailed {
		t.Fatalf("expected failed record, got %+v", records)
	}
	if !strings.Contains(records[0].ErrorMessage, "status 500") {
		t.Fatalf("error message not journaled: %+v", records[0])
	}
}

func groupedMessage(id int64, groupID, fileID, caption string) *telegram.Message {
	return &telegram.Message{
		MessageID:    id,
		Chat:         telegram.Chat{ID: 1},
		MediaGroupID: groupID,
		Caption:      caption,
		Photo:        []telegram.PhotoSize{{FileID: fileID, Width: 640, Height: 640}},
	}
}

func TestCarouselFlush(t *testing.T) {
	f := newFixture(t, nil)
	f.source.files["c1"] = []byte("foto-1")
	f.source.files["c2"] = []byte("foto-2")

	if err := f.processor.HandleMessage(t.Context(), groupedMessage(20, "grp", "c1", "vacaciones")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := f.processor.HandleMessage(t.Context(), groupedMessage(21, "grp", "c2", "")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	select {
	case <-f.publisher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for carousel flush")
	}

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	if len(f.publisher.carousels) != 1 || len(f.publisher.carousels[0]) != 2 {
		t.Fatalf("expected one carousel with 2 items, got %+v", f.publisher.carousels)
	}
	if string(f.publisher.carousels[0][0]) != "foto-1" || string(f.publisher.carousels[0][1]) != "foto-2" {
		t.Fatal("carousel items out of order")
	}
	if f.publisher.captions[0] != "es: vacaciones" {
		t.Fatalf("caption = %q", f.publisher.captions[0])
	}
}

func TestCarouselJournalPublishedAfterFlush(t *testing.T) {
	f := newFixture(t, nil)
	f.source.files["c1"] = []byte("foto-1")

	if err := f.processor.HandleMessage(t.Context(), groupedMessage(30, "g2", "c1", "cap")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	select {
	case <-f.publisher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}

	deadline := time.Now().Add(time.Second)
	for {
		records, err := f.journal.List(t.Context(), journal.StatusPublished)
		if err != nil {
			t.Fatalf("journal list: %v", err)
		}
		if len(records) == 1 && records[0].Kind == journal.KindCarousel {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("carousel record never marked published: %+v", records)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCarouselAbandonedOnShutdown(t *testing.T) {
	f := newFixture(t, func(opts *processor.Options) {
		opts.QuietPeriod = time.Hour
	})
	f.source.files["c1"] = []byte("foto-1")
	f.source.files["c2"] = []byte("foto-2")

	if err := f.processor.HandleMessage(t.Context(), groupedMessage(50, "grp", "c1", "cap")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := f.processor.HandleMessage(t.Context(), groupedMessage(51, "grp", "c2", "")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	f.processor.Close()

	records, err := f.journal.List(t.Context(), journal.StatusAbandoned)
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("shutdown must abandon the collecting group's records, got %+v", records)
	}
	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	if len(f.publisher.carousels) != 0 {
		t.Fatal("shutdown must not publish a collecting group")
	}
}

func TestOverfullCarouselAbandoned(t *testing.T) {
	f := newFixture(t, func(opts *processor.Options) {
		opts.MaxCarousel = 2
	})
	for i := 0; i < 3; i++ {
		fileID := fmt.Sprintf("o%d", i)
		f.source.files[fileID] = []byte{byte(i)}
		if err := f.processor.HandleMessage(t.Context(), groupedMessage(int64(40+i), "big", fileID, "")); err != nil {
			t.Fatalf("HandleMessage %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		records, err := f.journal.List(t.Context(), journal.StatusAbandoned)
		if err != nil {
			t.Fatalf("journal list: %v", err)
		}
		if len(records) == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 abandoned records, got %d", len(records))
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	if len(f.publisher.carousels) != 0 {
		t.Fatal("overfull group must not publish")
	}
}
