package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gemini-extract/internal/apperr"
	"gemini-extract/internal/export"
	"gemini-extract/internal/model"
	"gemini-extract/internal/normalizer"
	"gemini-extract/internal/recovery"
	"gemini-extract/pkg/logger"
	"gemini-extract/pkg/metrics"
)

// DefaultExtractionInstruction asks the model for rows as a bare JSON array.
const DefaultExtractionInstruction = "Extract every table or list of line items from the provided content. " +
	"Reply only with a JSON array of objects, one object per row, using the same keys in every object. " +
	"Use numbers for numeric values. Do not wrap the JSON in markdown."

// Instructions are the system instructions sent with every call. Extraction is
// appended when the reply is turned into a workbook.
type Instructions struct {
	System     string
	Extraction string
}

func (i Instructions) For(tabular bool) string {
	var parts []string
	if s := strings.TrimSpace(i.System); s != "" {
		parts = append(parts, s)
	}
	if tabular {
		if e := strings.TrimSpace(i.Extraction); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "\n\n")
}

type GenerateRequest struct {
	Prompt string
	File   *normalizer.UploadedFile
}

// GenerateResult holds either Text or, when Tabular is set, the xlsx Workbook.
type GenerateResult struct {
	Tabular  bool
	Text     string
	Workbook []byte
	Records  int
	Stage    recovery.Stage
	Category model.FileCategory
	Cached   bool
}

type GenerateService struct {
	normalizer   *normalizer.Normalizer
	client       ModelClient
	cache        ReplyCache
	instructions Instructions
	logger       *zap.Logger
}

// NewGenerateService wires the pipeline. cache may be nil.
func NewGenerateService(n *normalizer.Normalizer, client ModelClient, cache ReplyCache, instructions Instructions, log *zap.Logger) *GenerateService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenerateService{
		normalizer:   n,
		client:       client,
		cache:        cache,
		instructions: instructions,
		logger:       log,
	}
}

// Generate normalizes the request, calls the model and shapes the reply.
func (s *GenerateService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	log := logger.WithTrace(ctx, s.logger)

	in, err := s.normalizer.Normalize(req.Prompt, req.File)
	if err != nil {
		s.count(normalizer.Classify(req.File), err)
		return nil, err
	}
	result := &GenerateResult{Tabular: in.WantsTabularOutput, Category: in.Category}

	instruction := s.instructions.For(in.WantsTabularOutput)
	reply, cached, err := s.reply(ctx, log, in.Parts, instruction)
	if err != nil {
		s.count(in.Category, err)
		return nil, err
	}
	result.Cached = cached

	if !in.WantsTabularOutput {
		result.Text = reply
		metrics.IncrementGenerate(string(in.Category), "text")
		return result, nil
	}

	records, stage := recovery.RecoverWithStage(reply)
	metrics.IncrementRecoveryStage(string(stage))
	if stage != recovery.StageJSON {
		log.Info("model reply was not clean json", zap.String("stage", string(stage)), zap.Int("records", len(records)))
	}

	wb, err := export.EncodeXLSX(records)
	if err != nil {
		s.count(in.Category, err)
		return nil, err
	}
	result.Workbook = wb
	result.Records = len(records)
	result.Stage = stage
	metrics.IncrementGenerate(string(in.Category), "xlsx")
	return result, nil
}

func (s *GenerateService) reply(ctx context.Context, log *zap.Logger, parts []model.ContentPart, instruction string) (string, bool, error) {
	var key string
	if s.cache != nil {
		var err error
		key, err = ReplyCacheKey(s.client.Model(), instruction, parts)
		if err != nil {
			log.Warn("reply cache key failed", zap.Error(err))
		} else if v, ok, err := s.cache.Get(ctx, key); err != nil {
			metrics.IncrementReplyCache("error")
			log.Warn("reply cache lookup failed", zap.Error(err))
		} else if ok {
			metrics.IncrementReplyCache("hit")
			return v, true, nil
		} else {
			metrics.IncrementReplyCache("miss")
		}
	}

	reply, err := s.client.Generate(ctx, parts, instruction)
	if err != nil {
		return "", false, err
	}

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, reply); err != nil {
			log.Warn("reply cache store failed", zap.Error(err))
		}
	}
	return reply, false, nil
}

func (s *GenerateService) count(category model.FileCategory, err error) {
	metrics.IncrementGenerate(string(category), string(apperr.KindOf(err)))
}
