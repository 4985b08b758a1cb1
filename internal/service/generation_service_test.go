package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfygate/internal/apperr"
	"comfygate/internal/comfy"
	"comfygate/internal/models"
)

type fakeGenerator struct {
	calls  int
	input  comfy.GenerateInput
	output comfy.GenerateOutput
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, input comfy.GenerateInput) (comfy.GenerateOutput, error) {
	f.calls++
	f.input = input
	if f.err != nil {
		return comfy.GenerateOutput{}, f.err
	}
	return f.output, nil
}

func newTestGenerationService(resources *ResourceService, gen *fakeGenerator) *GenerationService {
	return NewGenerationService(resources, gen, nil, zerolog.Nop())
}

func TestGenerateStoresOutputAsOwnedResource(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	resources := newTestResourceService(repo, store)
	gen := &fakeGenerator{output: comfy.GenerateOutput{
		JobID:       "job-1",
		Filename:    "result.png",
		Data:        []byte("png-bytes"),
		ContentType: "image/png",
	}}
	svc := newTestGenerationService(resources, gen)

	result, err := svc.Generate(context.Background(), GenerateParams{
		UserID:         "user-1",
		PositivePrompt: "a red bicycle",
	})
	require.NoError(t, err)

	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, "user-1", result.Resource.OwnerUserID)
	assert.Equal(t, models.ResourceKindGenerated, result.Resource.Kind)
	assert.Equal(t, "result.png", result.Resource.DisplayFilename)

	_, data, err := resources.Read(context.Background(), result.Resource.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestGenerateRejectsBlankPromptBeforeEngine(t *testing.T) {
	resources := newTestResourceService(newMemRepo(), newMemStore())
	gen := &fakeGenerator{}
	svc := newTestGenerationService(resources, gen)

	for _, prompt := range []string{"", "   ", "\t\n"} {
		_, err := svc.Generate(context.Background(), GenerateParams{
			UserID:         "user-1",
			PositivePrompt: prompt,
		})
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}

	assert.Zero(t, gen.calls)
}

func TestGenerateTrimsPrompts(t *testing.T) {
	resources := newTestResourceService(newMemRepo(), newMemStore())
	gen := &fakeGenerator{output: comfy.GenerateOutput{JobID: "job-2", Filename: "out.png", Data: []byte("x"), ContentType: "image/png"}}
	svc := newTestGenerationService(resources, gen)

	_, err := svc.Generate(context.Background(), GenerateParams{
		UserID:         "user-1",
		PositivePrompt: "  castle at dusk  ",
		NegativePrompt: " blurry ",
	})
	require.NoError(t, err)
	assert.Equal(t, "castle at dusk", gen.input.PositivePrompt)
	assert.Equal(t, "blurry", gen.input.NegativePrompt)
}

func TestGenerateResolvesStoredReference(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	resources := newTestResourceService(repo, store)

	ref, err := resources.Create(context.Background(), "user-1", []byte("jpeg-bytes"), "me.jpg", "image/jpeg", models.ResourceKindUploaded)
	require.NoError(t, err)

	gen := &fakeGenerator{output: comfy.GenerateOutput{JobID: "job-3", Filename: "out.png", Data: []byte("x"), ContentType: "image/png"}}
	svc := newTestGenerationService(resources, gen)

	_, err = svc.Generate(context.Background(), GenerateParams{
		UserID:              "user-1",
		PositivePrompt:      "portrait",
		ReferenceResourceID: ref.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), gen.input.ReferenceImage)
	assert.Equal(t, "me.jpg", gen.input.ReferenceFilename)
}

func TestGenerateDeniesForeignReferenceBeforeEngine(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	resources := newTestResourceService(repo, store)

	ref, err := resources.Create(context.Background(), "someone-else", []byte("jpeg-bytes"), "me.jpg", "image/jpeg", models.ResourceKindUploaded)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	svc := newTestGenerationService(resources, gen)

	_, err = svc.Generate(context.Background(), GenerateParams{
		UserID:              "user-1",
		PositivePrompt:      "portrait",
		ReferenceResourceID: ref.ID,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindOwnership, apperr.KindOf(err))
	assert.Zero(t, gen.calls)
}

func TestGenerateRawBytesWinOverStoredReference(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	resources := newTestResourceService(repo, store)

	ref, err := resources.Create(context.Background(), "user-1", []byte("stored"), "stored.jpg", "image/jpeg", models.ResourceKindUploaded)
	require.NoError(t, err)

	gen := &fakeGenerator{output: comfy.GenerateOutput{JobID: "job-4", Filename: "out.png", Data: []byte("x"), ContentType: "image/png"}}
	svc := newTestGenerationService(resources, gen)

	_, err = svc.Generate(context.Background(), GenerateParams{
		UserID:              "user-1",
		PositivePrompt:      "portrait",
		ReferenceImage:      []byte("fresh"),
		ReferenceFilename:   "fresh.jpg",
		ReferenceResourceID: ref.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), gen.input.ReferenceImage)
	assert.Equal(t, "fresh.jpg", gen.input.ReferenceFilename)
}

func TestGenerateEngineErrorIsNotPersisted(t *testing.T) {
	repo := newMemRepo()
	store := newMemStore()
	resources := newTestResourceService(repo, store)

	gen := &fakeGenerator{err: apperr.New(apperr.KindTimeout, "generation did not finish before the poll ceiling")}
	svc := newTestGenerationService(resources, gen)

	_, err := svc.Generate(context.Background(), GenerateParams{
		UserID:         "user-1",
		PositivePrompt: "a red bicycle",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.Empty(t, repo.rows)
	assert.Empty(t, store.objects)
}
