package telegram_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelay/internal/telegram"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGetUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken123/getUpdates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("offset"); got != "42" {
			t.Errorf("offset = %q", got)
		}
		if got := r.URL.Query().Get("timeout"); got != "25" {
			t.Errorf("timeout = %q", got)
		}
		io.WriteString(w, `{"ok":true,"result":[
			{"update_id":43,"message":{"message_id":7,"chat":{"id":99},"caption":"un gato",
			 "photo":[{"file_id":"small","width":90,"height":90},{"file_id":"big","width":1280,"height":1280}]}},
			{"update_id":44,"message":{"message_id":8,"chat":{"id":99},"media_group_id":"g1",
			 "photo":[{"file_id":"p2","width":640,"height":640}]}}
		]}`)
	}))
	defer server.Close()

	client := telegram.New("token123", discard()).WithBaseURL(server.URL)
	updates, err := client.GetUpdates(t.Context(), 42, 25*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	first := updates[0].Message
	if first.Caption != "un gato" || first.MessageID != 7 {
		t.Fatalf("unexpected first message %+v", first)
	}
	if got := first.LargestPhoto(); got == nil || got.FileID != "big" {
		t.Fatalf("LargestPhoto = %+v, want big rendition", got)
	}
	if updates[1].Message.MediaGroupID != "g1" {
		t.Fatalf("media group id = %q", updates[1].Message.MediaGroupID)
	}
}

func TestGetUpdatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"ok":false,"description":"Unauthorized"}`)
	}))
	defer server.Close()

	client := telegram.New("bad", discard()).WithBaseURL(server.URL)
	_, err := client.GetUpdates(t.Context(), 0, time.Second)
	if err == nil {
		t.Fatal("expected error from api failure")
	}
}

func TestDownloadFile(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/bottoken123/getFile", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("file_id"); got != "big" {
			t.Errorf("file_id = %q", got)
		}
		io.WriteString(w, `{"ok":true,"result":{"file_path":"photos/file_1.jpg"}}`)
	})
	mux.HandleFunc("/file/bottoken123/photos/file_1.jpg", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "jpeg-bytes")
	})

	client := telegram.New("token123", discard()).WithBaseURL(server.URL)
	data, err := client.DownloadFile(t.Context(), "big")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestLargestPhotoEmpty(t *testing.T) {
	m := &telegram.Message{}
	if got := m.LargestPhoto(); got != nil {
		t.Fatalf("expected nil for message without photos, got %+v", got)
	}
}
