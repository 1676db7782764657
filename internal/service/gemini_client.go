package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"gemini-extract/internal/apperr"
	"gemini-extract/internal/model"
	"gemini-extract/pkg/circuitbreaker"
	"gemini-extract/pkg/config"
	"gemini-extract/pkg/logger"
	"gemini-extract/pkg/metrics"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 120 * time.Second
)

// ErrEmptyModelResponse is returned when the reply has no text and was not blocked.
var ErrEmptyModelResponse = apperr.New(apperr.KindModelCall, "no text response from gemini api")

// ModelClient sends content parts to the generative model and returns its text reply.
type ModelClient interface {
	Generate(ctx context.Context, parts []model.ContentPart, systemInstruction string) (string, error)
	Model() string
}

type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	cb      *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, breaker config.BreakerConfig, log *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold:    breaker.FailureThreshold,
			SuccessThreshold:    breaker.SuccessThreshold,
			Timeout:             breaker.Timeout,
			HalfOpenMaxRequests: breaker.HalfOpenMaxRequests,
			IsFailure:           isUpstreamFailure,
		}),
		logger: log,
	}, nil
}

func (c *GeminiClient) Model() string { return c.model }

// BreakerState reports the circuit breaker state; /healthz shows it.
func (c *GeminiClient) BreakerState() circuitbreaker.State { return c.cb.GetState() }

// Generate calls generateContent once. There are no retries; an open circuit
// breaker fails fast with an upstream unavailable error.
func (c *GeminiClient) Generate(ctx context.Context, parts []model.ContentPart, systemInstruction string) (string, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	log := logger.WithTrace(ctx, c.logger)

	contents := []*genai.Content{genai.NewContentFromParts(toGenaiParts(parts), genai.RoleUser)}
	genCfg := &genai.GenerateContentConfig{}
	if systemInstruction != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	var text string
	err := c.cb.Execute(func() error {
		start := time.Now()
		resp, callErr := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
		latency := time.Since(start)

		if callErr != nil {
			mcErr := toModelCallError(callErr)
			metrics.RecordModelCallLatency(c.model, callStatus(mcErr), latency)
			log.Warn("gemini call failed",
				zap.String("model", c.model),
				zap.Int("status", mcErr.StatusCode),
				zap.Duration("latency", latency),
				zap.Error(callErr),
			)
			return mcErr
		}

		var extractErr error
		text, extractErr = extractText(resp)
		status := "success"
		if extractErr != nil {
			status = string(apperr.KindOf(extractErr))
		}
		metrics.RecordModelCallLatency(c.model, status, latency)
		log.Info("gemini call completed",
			zap.String("model", c.model),
			zap.Int("parts", len(parts)),
			zap.Duration("latency", latency),
			zap.String("status", status),
		)
		return extractErr
	})

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		metrics.RecordModelCallLatency(c.model, "breaker_open", 0)
		log.Warn("gemini call rejected, circuit breaker open", zap.String("model", c.model))
		return "", apperr.Wrap(apperr.KindUpstreamUnavailable, "gemini api temporarily unavailable", err)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func toGenaiParts(parts []model.ContentPart) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case model.PartInlineBinary:
			out = append(out, genai.NewPartFromBytes(p.Data, p.MIMEType))
		default:
			out = append(out, genai.NewPartFromText(p.Text))
		}
	}
	return out
}

// extractText returns the first text part of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyModelResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", apperr.ContentBlocked(string(fb.BlockReason))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", ErrEmptyModelResponse
	}

	cand := resp.Candidates[0]
	if cand.Content != nil && len(cand.Content.Parts) > 0 && cand.Content.Parts[0] != nil {
		if text := cand.Content.Parts[0].Text; text != "" {
			return text, nil
		}
	}
	if cand.FinishReason != "" && cand.FinishReason != genai.FinishReasonStop {
		return "", apperr.ContentBlocked(string(cand.FinishReason))
	}
	return "", ErrEmptyModelResponse
}

func toModelCallError(err error) *apperr.Error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperr.ModelCall(apiErr.Code, apiErr.Message, nil)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apperr.ModelCall(apiErrPtr.Code, apiErrPtr.Message, nil)
	}
	return apperr.ModelCall(0, "", err)
}

func callStatus(e *apperr.Error) string {
	switch {
	case e.StatusCode >= 500:
		return "5xx"
	case e.StatusCode > 0:
		return strconv.Itoa(e.StatusCode)
	default:
		return "error"
	}
}

// isUpstreamFailure counts 5xx answers and transport failures against the
// breaker. Client errors, blocks and caller cancellation do not.
func isUpstreamFailure(err error) bool {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.KindModelCall {
		return false
	}
	if e.StatusCode >= 500 {
		return true
	}
	return e.StatusCode == 0 && e.Err != nil && !errors.Is(e.Err, context.Canceled)
}
