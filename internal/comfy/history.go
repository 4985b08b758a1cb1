package comfy

import (
	"encoding/json"
	"sort"

	"comfygate/internal/apperr"
)

// OutputDescriptor locates one generated file on the engine side. It is the
// single normalized form both engine output shapes decode into.
type OutputDescriptor struct {
	Filename  string
	Subfolder string
	Type      string
}

type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type outputGroup struct {
	Images []ImageRef `json:"images"`
}

// NodeOutput accepts both shapes the engine reports per node: a flat object
// carrying an images list, or an array of groups each optionally carrying
// one. Unknown shapes decode to an empty output rather than failing the
// whole history entry.
type NodeOutput struct {
	groups []outputGroup
}

func (o *NodeOutput) UnmarshalJSON(data []byte) error {
	var flat outputGroup
	if err := json.Unmarshal(data, &flat); err == nil {
		o.groups = []outputGroup{flat}
		return nil
	}

	var grouped []outputGroup
	if err := json.Unmarshal(data, &grouped); err == nil {
		o.groups = grouped
		return nil
	}

	o.groups = nil
	return nil
}

// StatusInfo tolerates the two status encodings seen from the engine: a bare
// string and an object with a status_str field. The raw payload is kept for
// diagnostics.
type StatusInfo struct {
	StatusStr string
	raw       json.RawMessage
}

func (s *StatusInfo) UnmarshalJSON(data []byte) error {
	s.raw = append(s.raw[:0], data...)

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.StatusStr = str
		return nil
	}

	var obj struct {
		StatusStr string `json:"status_str"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		s.StatusStr = obj.StatusStr
	}
	return nil
}

func (s *StatusInfo) Raw() string {
	return string(s.raw)
}

// HistoryEntry is one job's record under GET /history/{prompt_id}.
type HistoryEntry struct {
	Status  *StatusInfo           `json:"status,omitempty"`
	Outputs map[string]NodeOutput `json:"outputs,omitempty"`
}

func (e *HistoryEntry) Failed() bool {
	return e.Status != nil && e.Status.StatusStr == "error"
}

func (e *HistoryEntry) HasOutputs() bool {
	return len(e.Outputs) > 0
}

// ExtractOutput scans all reported node outputs in key order and returns the
// first image descriptor found. Finding none is a hard failure, never an
// empty descriptor.
func ExtractOutput(entry *HistoryEntry) (OutputDescriptor, error) {
	nodeIDs := make([]string, 0, len(entry.Outputs))
	for nodeID := range entry.Outputs {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Strings(nodeIDs)

	for _, nodeID := range nodeIDs {
		output := entry.Outputs[nodeID]
		for _, group := range output.groups {
			if len(group.Images) == 0 {
				continue
			}
			img := group.Images[0]
			desc := OutputDescriptor{
				Filename:  img.Filename,
				Subfolder: img.Subfolder,
				Type:      img.Type,
			}
			if desc.Type == "" {
				desc.Type = "output"
			}
			return desc, nil
		}
	}

	return OutputDescriptor{}, apperr.New(apperr.KindEnginePoll, "no image output produced")
}
