package comfy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"comfygate/internal/apperr"
	"comfygate/internal/config"
)

type JobState string

const (
	JobStateSubmitting JobState = "SUBMITTING"
	JobStatePolling    JobState = "POLLING"
	JobStateCompleted  JobState = "COMPLETED"
	JobStateFailed     JobState = "FAILED"
	JobStateTimedOut   JobState = "TIMED_OUT"
)

// Engine is the subset of the engine's HTTP surface the generator drives.
type Engine interface {
	SubmitPrompt(ctx context.Context, graph Graph) (string, error)
	History(ctx context.Context, promptID string) (*HistoryEntry, error)
	UploadImage(ctx context.Context, data []byte, filename string) (UploadedImage, error)
	DownloadOutput(ctx context.Context, desc OutputDescriptor) ([]byte, string, error)
}

type GenerateInput struct {
	PositivePrompt string
	NegativePrompt string
	// ReferenceImage, when set, is uploaded to the engine first and the
	// face-swap template variant is used.
	ReferenceImage    []byte
	ReferenceFilename string
}

type GenerateOutput struct {
	JobID       string
	Filename    string
	Data        []byte
	ContentType string
}

// Generator runs one job through
// SUBMITTING → POLLING → {COMPLETED | FAILED | TIMED_OUT}. Terminal states
// are final; nothing in here retries.
type Generator struct {
	engine       Engine
	templates    *Templates
	pollInterval time.Duration
	pollTimeout  time.Duration
	clock        Clock
	log          zerolog.Logger
}

func NewGenerator(engine Engine, templates *Templates, cfg config.ComfyConfig, clock Clock, log zerolog.Logger) *Generator {
	return &Generator{
		engine:       engine,
		templates:    templates,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		clock:        clock,
		log:          log,
	}
}

// Generate orchestrates optional reference upload → submit → poll → extract
// → download. It returns either a complete output or one classified error,
// never a partial result.
func (g *Generator) Generate(ctx context.Context, input GenerateInput) (GenerateOutput, error) {
	var referenceName string
	if len(input.ReferenceImage) > 0 {
		uploaded, err := g.engine.UploadImage(ctx, input.ReferenceImage, input.ReferenceFilename)
		if err != nil {
			return GenerateOutput{}, err
		}
		referenceName = uploaded.Name
		g.log.Debug().Str("reference", referenceName).Msg("reference image uploaded to engine")
	}

	graph, err := g.templates.BuildPayload(input.PositivePrompt, input.NegativePrompt, referenceName)
	if err != nil {
		return GenerateOutput{}, apperr.Wrap(apperr.KindEngineSubmission, "build job payload", err)
	}

	jobID, err := g.engine.SubmitPrompt(ctx, graph)
	if err != nil {
		return GenerateOutput{}, err
	}
	g.log.Info().
		Str("job_id", jobID).
		Bool("has_reference", referenceName != "").
		Str("state", string(JobStatePolling)).
		Msg("workflow submitted")

	entry, err := g.poll(ctx, jobID)
	if err != nil {
		return GenerateOutput{}, err
	}

	desc, err := ExtractOutput(entry)
	if err != nil {
		g.log.Error().Str("job_id", jobID).Str("state", string(JobStateFailed)).Msg("job produced no image output")
		return GenerateOutput{}, err
	}

	data, contentType, err := g.engine.DownloadOutput(ctx, desc)
	if err != nil {
		return GenerateOutput{}, err
	}

	g.log.Info().Str("job_id", jobID).Str("state", string(JobStateCompleted)).Msg("job completed")
	return GenerateOutput{
		JobID:       jobID,
		Filename:    desc.Filename,
		Data:        data,
		ContentType: contentType,
	}, nil
}

// poll loops at the fixed interval until the history entry reports either an
// error status or a non-empty outputs map, or until the ceiling elapses.
// An absent entry is not an error; the job just is not done.
func (g *Generator) poll(ctx context.Context, jobID string) (*HistoryEntry, error) {
	deadline := g.clock.Now().Add(g.pollTimeout)

	for {
		if !g.clock.Now().Before(deadline) {
			g.log.Warn().
				Str("job_id", jobID).
				Dur("ceiling", g.pollTimeout).
				Str("state", string(JobStateTimedOut)).
				Msg("poll ceiling elapsed")
			return nil, &apperr.Error{
				Kind:    apperr.KindTimeout,
				Message: "generation did not finish before the poll ceiling",
			}
		}

		entry, err := g.engine.History(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if entry != nil {
			if entry.Failed() {
				return nil, &apperr.Error{
					Kind:    apperr.KindEnginePoll,
					Message: "engine reported job error",
					Details: entry.Status.Raw(),
				}
			}
			if entry.HasOutputs() {
				return entry, nil
			}
		}

		if err := g.clock.Sleep(ctx, g.pollInterval); err != nil {
			return nil, apperr.Wrap(apperr.KindEnginePoll, "poll canceled", err)
		}
	}
}
