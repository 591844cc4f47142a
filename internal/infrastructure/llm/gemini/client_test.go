package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/infrastructure/resilience"
)

func fastConfig() Config {
	return Config{
		TimeoutImage:  2 * time.Second,
		TimeoutAV:     2 * time.Second,
		MaxConcurrent: 2,
		RatePerSecond: 1000,
		Executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     2 * time.Millisecond,
			RetryMultiplier:     2,
			BreakerEnabled:      false,
		}),
	}
}

func candidateResponse(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func testAsset() *domain.MediaAsset {
	return &domain.MediaAsset{
		Data:     []byte{0xFF, 0xD8, 0xFF},
		Type:     domain.MediaImage,
		MimeType: "image/jpeg",
		FileName: "photo.jpg",
		Size:     3,
	}
}

func TestObservePromptForbidsVerdict(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		var payload generateRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt = payload.Contents[0].Parts[0].Text
		_, _ = w.Write([]byte(candidateResponse(`["soft edges near the jawline"]`)))
	}))
	defer server.Close()

	client := New(server.URL, "key", "test-model", fastConfig())
	text, err := client.Observe(context.Background(), testAsset(), domain.LanguageEnglish)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if !strings.Contains(text, "jawline") {
		t.Fatalf("unexpected response text: %s", text)
	}
	if !strings.Contains(capturedPrompt, "Do NOT decide") {
		t.Fatalf("observation prompt must bar verdicts, got: %s", capturedPrompt)
	}
	if strings.Contains(capturedPrompt, "likely_fake") {
		t.Fatalf("observation prompt must not mention verdict values")
	}
}

func TestExaminePromptCarriesObservationsAndChecklist(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload generateRequest
		_ = json.NewDecoder(r.Body).Decode(&payload)
		capturedPrompt = payload.Contents[0].Parts[0].Text
		_, _ = w.Write([]byte(candidateResponse(`{"verdict":"authentic","confidence":90}`)))
	}))
	defer server.Close()

	client := New(server.URL, "key", "test-model", fastConfig())
	obs := []string{"uniform grain across the frame", "EXIF timestamps coherent"}
	if _, err := client.Examine(context.Background(), testAsset(), obs, domain.LanguageArabic); err != nil {
		t.Fatalf("Examine() error = %v", err)
	}
	for _, o := range obs {
		if !strings.Contains(capturedPrompt, o) {
			t.Fatalf("forensic prompt missing observation %q", o)
		}
	}
	if !strings.Contains(capturedPrompt, "lighting direction and shadow coherence") {
		t.Fatalf("forensic prompt missing image checklist")
	}
	if !strings.Contains(capturedPrompt, "Respond in Arabic") {
		t.Fatalf("forensic prompt missing language instruction")
	}
	if !strings.Contains(capturedPrompt, "must NOT on their own justify a likely_fake") {
		t.Fatalf("forensic prompt missing false-positive calibration")
	}
}

func TestGenerateRetriesOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "backend overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(candidateResponse(`["ok"]`)))
	}))
	defer server.Close()

	client := New(server.URL, "key", "test-model", fastConfig())
	if _, err := client.Observe(context.Background(), testAsset(), domain.LanguageEnglish); err != nil {
		t.Fatalf("Observe() after retry error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestGenerateFailsAfterExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "backend overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "key", "test-model", fastConfig())
	_, err := client.Observe(context.Background(), testAsset(), domain.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d", calls.Load())
	}
}

func TestGenerateTreatsSafetyBlockAsRefusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "key", "test-model", fastConfig())
	_, err := client.Observe(context.Background(), testAsset(), domain.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrModelRefusal) {
		t.Fatalf("expected ErrModelRefusal, got %v", err)
	}
}

func TestGenerateMapsAttemptTimeoutToModelTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(candidateResponse(`["late"]`)))
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.TimeoutImage = 20 * time.Millisecond
	cfg.TimeoutAV = 20 * time.Millisecond
	client := New(server.URL, "key", "test-model", cfg)

	_, err := client.Observe(context.Background(), testAsset(), domain.LanguageEnglish)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrModelTimeout) {
		t.Fatalf("expected ErrModelTimeout, got %v", err)
	}
}
