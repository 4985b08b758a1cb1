package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindPermission, http.StatusForbidden},
		{KindOwnership, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindEngineSubmission, http.StatusInternalServerError},
		{KindEnginePoll, http.StatusInternalServerError},
		{KindEngineUpload, http.StatusInternalServerError},
		{KindEngineDownload, http.StatusInternalServerError},
		{KindTimeout, http.StatusInternalServerError},
		{KindStorage, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(New(tt.kind, "x")), "kind %q", tt.kind)
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestPublicMessageHidesEngineDetails(t *testing.T) {
	engineErr := &Error{
		Kind:           KindEnginePoll,
		Message:        "engine reported job error",
		UpstreamStatus: 500,
		Details:        `{"status_str":"error","exception_message":"CUDA out of memory"}`,
	}

	msg := PublicMessage(engineErr)
	assert.Equal(t, "an unexpected error occurred", msg)
	assert.NotContains(t, msg, "CUDA")
}

func TestPublicMessagePassthroughForClientFaults(t *testing.T) {
	assert.Equal(t, "positivePrompt is required and must be a non-empty string",
		PublicMessage(New(KindValidation, "positivePrompt is required and must be a non-empty string")))
	assert.Equal(t, "resource not found", PublicMessage(New(KindNotFound, "resource not found")))
	assert.Equal(t, "not the owner of this resource", PublicMessage(New(KindOwnership, "not the owner of this resource")))
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	inner := New(KindTimeout, "generation did not finish before the poll ceiling")
	wrapped := fmt.Errorf("generate: %w", inner)

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindEngineSubmission, "submit workflow", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "submit workflow")
	assert.Contains(t, err.Error(), "connection refused")
}
