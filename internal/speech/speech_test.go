package speech

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model=%q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"broke a window"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "", "", "")
	text, err := c.Transcribe(context.Background(), "clip.webm", bytes.NewReader([]byte("fake audio")), "audio/webm")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "broke a window" {
		t.Fatalf("text=%q", text)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported format", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "", "", "")
	_, err := c.Transcribe(context.Background(), "clip.xyz", bytes.NewReader(nil), "application/octet-stream")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("error lost server detail: %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	mp3 := []byte{0xFF, 0xFB, 0x90, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write(mp3)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "", "", "")
	audio, err := c.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !bytes.Equal(audio, mp3) {
		t.Fatalf("audio mismatch")
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	c := NewClient("http://unused", "test-key", "", "", "")
	if _, err := c.Synthesize(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}
