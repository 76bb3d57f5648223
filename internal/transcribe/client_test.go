package transcribe_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelay/internal/services"
	"reelay/internal/subtitle"
	"reelay/internal/transcribe"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestTranscribeParsesVerboseJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Fatalf("response_format = %q", got)
		}
		if got := r.FormValue("language"); got != "es" {
			t.Fatalf("language = %q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if data, _ := io.ReadAll(file); string(data) != "mp3-bytes" {
			t.Fatalf("unexpected upload payload %q", data)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"language": "spanish",
			"segments": [
				{"start": 0.0, "end": 1.4, "text": " hola mundo "},
				{"start": 1.4, "end": 1.5, "text": "   "}
			]
		}`)
	}))
	defer server.Close()

	client := transcribe.New("test-key", discard(), transcribe.WithBaseURL(server.URL))
	transcript, err := client.Transcribe(t.Context(), []byte("mp3-bytes"), "es", subtitle.GranularitySegment)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(transcript.Segments) != 1 {
		t.Fatalf("expected 1 usable segment, got %d", len(transcript.Segments))
	}
	seg := transcript.Segments[0]
	if seg.Start != 0 || seg.End != 1.4 || seg.Text != "hola mundo" {
		t.Fatalf("unexpected segment: %+v", seg)
	}
}

func TestTranscribeRequestsWordGranularity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("timestamp_granularities[]"); got != "word" {
			t.Fatalf("expected word granularity request, got %q", got)
		}
		io.WriteString(w, `{
			"language": "spanish",
			"segments": [{"start": 0, "end": 1, "text": "hola mundo"}],
			"words": [
				{"start": 0.0, "end": 0.4, "word": "hola"},
				{"start": 0.4, "end": 1.0, "word": "mundo"}
			]
		}`)
	}))
	defer server.Close()

	client := transcribe.New("key", discard(), transcribe.WithBaseURL(server.URL))
	transcript, err := client.Transcribe(t.Context(), []byte("audio"), "es", subtitle.GranularityWord)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	units, granularity := transcript.Units(subtitle.GranularityWord)
	if granularity != subtitle.GranularityWord || len(units) != 2 {
		t.Fatalf("expected 2 word units, got %d (%s)", len(units), granularity)
	}
}

func TestTranscribeUnitsFallsBackToSegments(t *testing.T) {
	transcript := transcribe.Transcript{
		Segments: []subtitle.Unit{{Start: 0, End: 1, Text: "hola"}},
	}
	units, granularity := transcript.Units(subtitle.GranularityWord)
	if granularity != subtitle.GranularitySegment || len(units) != 1 {
		t.Fatalf("expected segment fallback, got %d units (%s)", len(units), granularity)
	}
}

func TestTranscribeNon200IsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"invalid file"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := transcribe.New("key", discard(), transcribe.WithBaseURL(server.URL))
	_, err := client.Transcribe(t.Context(), []byte("audio"), "es", subtitle.GranularitySegment)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("error must carry status, got %v", err)
	}
}

func TestTranscribeEmptyTranscriptIsValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"language":"spanish","segments":[]}`)
	}))
	defer server.Close()

	client := transcribe.New("key", discard(), transcribe.WithBaseURL(server.URL))
	_, err := client.Transcribe(t.Context(), []byte("audio"), "es", subtitle.GranularitySegment)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client := transcribe.New("key", discard())
	_, err := client.Transcribe(t.Context(), nil, "es", subtitle.GranularitySegment)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
