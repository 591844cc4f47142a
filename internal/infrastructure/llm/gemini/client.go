package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/infrastructure/resilience"
)

// Client is the gateway to the external model. It is stateless between calls:
// each pass is an independent request carrying its own prompt and media.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	executor *resilience.Executor
	limiter  *rate.Limiter
	sem      *semaphore.Weighted

	timeoutImage time.Duration
	timeoutAV    time.Duration
}

type Config struct {
	TimeoutImage  time.Duration
	TimeoutAV     time.Duration
	MaxConcurrent int64
	RatePerSecond float64
	Executor      *resilience.Executor
}

func New(baseURL, apiKey, model string, cfg Config) *Client {
	if cfg.TimeoutImage <= 0 {
		cfg.TimeoutImage = 45 * time.Second
	}
	if cfg.TimeoutAV <= 0 {
		cfg.TimeoutAV = 90 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Executor == nil {
		cfg.Executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		// Per-attempt deadlines come from the call context, not the client.
		httpClient:   &http.Client{},
		executor:     cfg.Executor,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		sem:          semaphore.NewWeighted(cfg.MaxConcurrent),
		timeoutImage: cfg.TimeoutImage,
		timeoutAV:    cfg.TimeoutAV,
	}
}

func (c *Client) Observe(ctx context.Context, media *domain.MediaAsset, lang domain.Language) (string, error) {
	return c.generate(ctx, "model.observe", media, buildObservationPrompt(media.Type, lang))
}

func (c *Client) Examine(ctx context.Context, media *domain.MediaAsset, observations []string, lang domain.Language) (string, error) {
	return c.generate(ctx, "model.examine", media, buildForensicPrompt(media.Type, observations, lang))
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (c *Client) generate(ctx context.Context, operation string, media *domain.MediaAsset, prompt string) (string, error) {
	// Concurrency ceiling toward the external capability; held across the
	// retry so one request cannot occupy two slots.
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	reqBody := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{
					MimeType: media.MimeType,
					Data:     base64.StdEncoding.EncodeToString(media.Data),
				}},
			},
		}},
		GenerationConfig: &generationConfig{Temperature: 0.2},
	}
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	timeout := c.timeoutFor(media.Type)

	var text string
	err := c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var resp generateResponse
		if err := c.postJSON(attemptCtx, path, reqBody, &resp, operation); err != nil {
			if attemptCtx.Err() != nil && ctx.Err() == nil {
				return domain.WrapError(domain.ErrModelTimeout, operation, err)
			}
			return err
		}

		extracted, err := extractCandidateText(operation, resp)
		if err != nil {
			return err
		}
		text = extracted
		return nil
	}, classifyGeminiError)
	if err != nil {
		return "", wrapModelError(operation, err)
	}
	return text, nil
}

// extractCandidateText treats safety-blocked and empty responses as refusals
// so they get the same retry-then-fail handling as transport faults.
func extractCandidateText(operation string, resp generateResponse) (string, error) {
	if resp.PromptFeedback.BlockReason != "" {
		return "", domain.WrapError(domain.ErrModelRefusal, operation,
			fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", domain.WrapError(domain.ErrModelRefusal, operation,
			fmt.Errorf("no candidates in response"))
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return "", domain.WrapError(domain.ErrModelRefusal, operation,
			fmt.Errorf("candidate finished with reason SAFETY"))
	}

	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", domain.WrapError(domain.ErrModelRefusal, operation,
			fmt.Errorf("empty candidate text"))
	}
	return text, nil
}

func (c *Client) timeoutFor(mediaType domain.MediaType) time.Duration {
	if mediaType == domain.MediaImage {
		return c.timeoutImage
	}
	return c.timeoutAV
}
