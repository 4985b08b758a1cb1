package comfy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfygate/internal/apperr"
)

func TestHistoryEntryDecodesFlatOutputs(t *testing.T) {
	payload := `{
		"outputs": {
			"19": {
				"images": [
					{"filename": "comfygate_00001.png", "subfolder": "", "type": "output"}
				]
			}
		}
	}`

	var entry HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(payload), &entry))
	require.True(t, entry.HasOutputs())

	desc, err := ExtractOutput(&entry)
	require.NoError(t, err)
	assert.Equal(t, "comfygate_00001.png", desc.Filename)
	assert.Equal(t, "output", desc.Type)
}

func TestHistoryEntryDecodesGroupedOutputs(t *testing.T) {
	payload := `{
		"outputs": {
			"19": [
				{},
				{"images": [{"filename": "batch_0002.png", "subfolder": "renders"}]}
			]
		}
	}`

	var entry HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(payload), &entry))

	desc, err := ExtractOutput(&entry)
	require.NoError(t, err)
	assert.Equal(t, "batch_0002.png", desc.Filename)
	assert.Equal(t, "renders", desc.Subfolder)
	// A missing type falls back to the engine default namespace.
	assert.Equal(t, "output", desc.Type)
}

func TestExtractOutputScansNodesInKeyOrder(t *testing.T) {
	payload := `{
		"outputs": {
			"21": {"images": [{"filename": "second.png"}]},
			"19": {"images": [{"filename": "first.png"}]}
		}
	}`

	var entry HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(payload), &entry))

	desc, err := ExtractOutput(&entry)
	require.NoError(t, err)
	assert.Equal(t, "first.png", desc.Filename)
}

func TestExtractOutputNoImagesIsAnError(t *testing.T) {
	payload := `{"outputs": {"19": {"images": []}, "20": {"text": ["caption"]}}}`

	var entry HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(payload), &entry))

	_, err := ExtractOutput(&entry)
	require.Error(t, err)
	assert.Equal(t, apperr.KindEnginePoll, apperr.KindOf(err))
}

func TestStatusInfoAcceptsBothEncodings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		failed  bool
	}{
		{
			name:    "bare string error",
			payload: `{"status": "error"}`,
			failed:  true,
		},
		{
			name:    "object status_str error",
			payload: `{"status": {"status_str": "error", "messages": [["execution_error", {"node_id": "3"}]]}}`,
			failed:  true,
		},
		{
			name:    "object status_str success",
			payload: `{"status": {"status_str": "success", "completed": true}}`,
			failed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entry HistoryEntry
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &entry))
			require.NotNil(t, entry.Status)
			assert.Equal(t, tt.failed, entry.Failed())
		})
	}
}

func TestStatusInfoKeepsRawPayload(t *testing.T) {
	payload := `{"status": {"status_str": "error", "messages": [["execution_error", {"exception_message": "CUDA out of memory"}]]}}`

	var entry HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(payload), &entry))
	require.NotNil(t, entry.Status)
	assert.Contains(t, entry.Status.Raw(), "CUDA out of memory")
}
