package comfy

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"comfygate/internal/config"
)

//go:embed workflows/text_to_image.json workflows/face_swap.json
var embeddedWorkflows embed.FS

// Node is one step of a job graph.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Graph is the parameterized computation description submitted to the
// engine to produce one image, keyed by node id.
type Graph map[string]Node

// Template is one frozen job graph plus the node ids of its fillable slots.
// The graph is kept as canonical JSON; every BuildPayload call decodes a
// fresh copy, so the shared template is never mutated.
type Template struct {
	raw           []byte
	positiveNode  string
	negativeNode  string
	referenceNode string
}

// Templates holds the two workflow variants, loaded once at startup and
// injected into the generator. A malformed template is a startup error,
// never a per-request one.
type Templates struct {
	textToImage *Template
	faceSwap    *Template
}

func LoadTemplates(cfg config.WorkflowConfig) (*Templates, error) {
	textToImage, err := loadTemplate(cfg.TextToImagePath, "workflows/text_to_image.json", cfg.PositiveNode, cfg.NegativeNode, "")
	if err != nil {
		return nil, fmt.Errorf("text-to-image template: %w", err)
	}

	faceSwap, err := loadTemplate(cfg.FaceSwapPath, "workflows/face_swap.json", cfg.PositiveNode, cfg.NegativeNode, cfg.ReferenceNode)
	if err != nil {
		return nil, fmt.Errorf("face-swap template: %w", err)
	}

	return &Templates{
		textToImage: textToImage,
		faceSwap:    faceSwap,
	}, nil
}

func loadTemplate(path, embeddedPath, positiveNode, negativeNode, referenceNode string) (*Template, error) {
	var raw []byte
	var err error
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = embeddedWorkflows.ReadFile(embeddedPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	var graph Graph
	if err := json.Unmarshal(raw, &graph); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	for _, nodeID := range []string{positiveNode, negativeNode} {
		node, ok := graph[nodeID]
		if !ok {
			return nil, fmt.Errorf("template missing prompt slot node %q", nodeID)
		}
		if node.Inputs == nil {
			return nil, fmt.Errorf("prompt slot node %q has no inputs object", nodeID)
		}
	}
	if referenceNode != "" {
		node, ok := graph[referenceNode]
		if !ok {
			return nil, fmt.Errorf("template missing reference slot node %q", referenceNode)
		}
		if node.Inputs == nil {
			return nil, fmt.Errorf("reference slot node %q has no inputs object", referenceNode)
		}
	}

	return &Template{
		raw:           raw,
		positiveNode:  positiveNode,
		negativeNode:  negativeNode,
		referenceNode: referenceNode,
	}, nil
}

// BuildPayload fills a fresh copy of the right template variant: the
// face-swap graph iff a reference image name is given. Two calls never
// share state.
func (t *Templates) BuildPayload(positivePrompt, negativePrompt, referenceImageName string) (Graph, error) {
	tpl := t.textToImage
	if referenceImageName != "" {
		tpl = t.faceSwap
	}

	var graph Graph
	if err := json.Unmarshal(tpl.raw, &graph); err != nil {
		return nil, fmt.Errorf("clone template: %w", err)
	}

	graph[tpl.positiveNode].Inputs["text"] = positivePrompt
	graph[tpl.negativeNode].Inputs["text"] = negativePrompt
	if referenceImageName != "" {
		graph[tpl.referenceNode].Inputs["image"] = referenceImageName
	}

	return graph, nil
}
