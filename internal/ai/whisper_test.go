package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWhisper(t *testing.T, handler http.HandlerFunc) *WhisperClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewWhisperClient("test-key", "whisper-1", time.Minute, testLogger())
	c.baseURL = srv.URL
	return c
}

func TestTranscribeSendsMultipartRequest(t *testing.T) {
	var gotAuth, gotModel, gotFormat, gotFile string
	c := newTestWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		if f, _, err := r.FormFile("file"); err == nil {
			b, _ := io.ReadAll(f)
			gotFile = string(b)
			f.Close()
		}
		io.WriteString(w, "  hello world\n")
	})

	text, err := c.Transcribe(context.Background(), "rec.webm", strings.NewReader("audio bytes"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want trimmed %q", text, "hello world")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q", gotModel)
	}
	if gotFormat != "text" {
		t.Errorf("response_format = %q", gotFormat)
	}
	if gotFile != "audio bytes" {
		t.Errorf("file payload = %q", gotFile)
	}
}

func TestTranscribeClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrQuota},
		{"payment required", http.StatusPaymentRequired, ErrQuota},
		{"server error", http.StatusInternalServerError, ErrTransient},
		{"bad gateway", http.StatusBadGateway, ErrTransient},
		{"bad request", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", http.StatusUnauthorized, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestWhisper(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			_, err := c.Transcribe(context.Background(), "a.mp3", strings.NewReader("x"))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTranscribeWithoutAPIKey(t *testing.T) {
	c := NewWhisperClient("", "whisper-1", time.Minute, testLogger())
	_, err := c.Transcribe(context.Background(), "a.mp3", strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestTranscribeConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewWhisperClient("test-key", "whisper-1", time.Second, testLogger())
	c.baseURL = srv.URL
	_, err := c.Transcribe(context.Background(), "a.mp3", strings.NewReader("x"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
}
