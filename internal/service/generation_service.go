package service

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"comfygate/internal/apperr"
	"comfygate/internal/comfy"
	"comfygate/internal/models"
)

const generationStream = "comfygate:generations"

// ImageGenerator runs one job through the engine and returns the finished
// image, or one classified error.
type ImageGenerator interface {
	Generate(ctx context.Context, input comfy.GenerateInput) (comfy.GenerateOutput, error)
}

type GenerateParams struct {
	UserID         string
	PositivePrompt string
	NegativePrompt string
	// Reference: raw bytes win over an existing resource id when both are
	// supplied.
	ReferenceImage      []byte
	ReferenceFilename   string
	ReferenceResourceID string
}

type GenerateResult struct {
	JobID    string
	Resource models.Resource
}

// GenerationService ties the inbound generate operation together:
// validation, reference resolution with an ownership pre-check, engine
// orchestration, and persisting the output as an owned resource.
type GenerationService struct {
	resources *ResourceService
	generator ImageGenerator
	events    *redis.Client
	log       zerolog.Logger
}

func NewGenerationService(resources *ResourceService, generator ImageGenerator, events *redis.Client, log zerolog.Logger) *GenerationService {
	return &GenerationService{
		resources: resources,
		generator: generator,
		events:    events,
		log:       log,
	}
}

// Generate validates the request and runs the full pipeline. Validation and
// the referenced-resource ownership check both happen before any engine
// call.
func (s *GenerationService) Generate(ctx context.Context, params GenerateParams) (GenerateResult, error) {
	positive := strings.TrimSpace(params.PositivePrompt)
	if positive == "" {
		return GenerateResult{}, apperr.New(apperr.KindValidation, "positivePrompt is required and must be a non-empty string")
	}

	input := comfy.GenerateInput{
		PositivePrompt: positive,
		NegativePrompt: strings.TrimSpace(params.NegativePrompt),
	}

	switch {
	case len(params.ReferenceImage) > 0:
		input.ReferenceImage = params.ReferenceImage
		input.ReferenceFilename = params.ReferenceFilename
	case params.ReferenceResourceID != "":
		// The engine needs the bytes in its own namespace regardless of
		// origin, so a stored reference is read back and re-uploaded
		// through the same path as fresh bytes.
		resource, data, err := s.resources.Read(ctx, params.ReferenceResourceID, params.UserID)
		if err != nil {
			return GenerateResult{}, err
		}
		input.ReferenceImage = data
		input.ReferenceFilename = resource.DisplayFilename
	}

	output, err := s.generator.Generate(ctx, input)
	if err != nil {
		return GenerateResult{}, err
	}

	resource, err := s.resources.Create(ctx, params.UserID, output.Data, output.Filename, output.ContentType, models.ResourceKindGenerated)
	if err != nil {
		return GenerateResult{}, err
	}

	s.publishEvent(ctx, output.JobID, resource)

	return GenerateResult{
		JobID:    output.JobID,
		Resource: resource,
	}, nil
}

func (s *GenerationService) publishEvent(ctx context.Context, jobID string, resource models.Resource) {
	if s.events == nil {
		return
	}

	err := s.events.XAdd(ctx, &redis.XAddArgs{
		Stream: generationStream,
		Values: map[string]any{
			"jobId":      jobID,
			"resourceId": resource.ID,
			"userId":     resource.OwnerUserID,
		},
	}).Err()
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("publish generation event failed")
	}
}
