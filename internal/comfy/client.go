package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"comfygate/internal/apperr"
	"comfygate/internal/config"
)

// Client speaks the engine's HTTP surface: submission, history, input
// uploads, and output downloads. It never retries; terminal failures are
// reported to the orchestrator as tagged errors.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	cfg     config.ComfyConfig
	log     zerolog.Logger
}

func NewClient(cfg config.ComfyConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{},
		cfg:     cfg,
		log:     log,
	}
}

type UploadedImage struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// Ping checks that the engine answers at all. Used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("engine unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

// SubmitPrompt enqueues a job graph and returns the engine-assigned job id.
// A non-success response or a response missing the id is terminal; blind
// resubmission could enqueue duplicate jobs, so retry is left to the caller.
func (c *Client) SubmitPrompt(ctx context.Context, graph Graph) (string, error) {
	body, err := json.Marshal(map[string]any{"prompt": graph})
	if err != nil {
		return "", apperr.Wrap(apperr.KindEngineSubmission, "encode job graph", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindEngineSubmission, "build submit request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindEngineSubmission, "submit workflow", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &apperr.Error{
			Kind:           apperr.KindEngineSubmission,
			Message:        "engine rejected workflow submission",
			UpstreamStatus: resp.StatusCode,
			Details:        string(respBody),
		}
	}

	var parsed struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", apperr.Wrap(apperr.KindEngineSubmission, "decode submit response", err)
	}
	if parsed.PromptID == "" {
		return "", &apperr.Error{
			Kind:    apperr.KindEngineSubmission,
			Message: "engine returned no prompt_id",
			Details: string(respBody),
		}
	}

	return parsed.PromptID, nil
}

// History fetches the job's history entry. A missing entry, including a
// 404 from the engine, returns (nil, nil): the job simply is not finished,
// which the poll loop treats as "keep waiting".
func (c *Client) History(ctx context.Context, promptID string) (*HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEnginePoll, "build history request", err)
	}
	c.setAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEnginePoll, "poll history", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.Error{
			Kind:           apperr.KindEnginePoll,
			Message:        "engine history request failed",
			UpstreamStatus: resp.StatusCode,
			Details:        string(respBody),
		}
	}

	var history map[string]HistoryEntry
	if err := json.Unmarshal(respBody, &history); err != nil {
		return nil, apperr.Wrap(apperr.KindEnginePoll, "decode history response", err)
	}

	entry, ok := history[promptID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// UploadImage pushes raw bytes into the engine's input namespace so a job
// graph can reference them by name.
func (c *Client) UploadImage(ctx context.Context, data []byte, filename string) (UploadedImage, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return UploadedImage{}, apperr.Wrap(apperr.KindEngineUpload, "build upload form", err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadedImage{}, apperr.Wrap(apperr.KindEngineUpload, "write upload form", err)
	}
	if err := writer.Close(); err != nil {
		return UploadedImage{}, apperr.Wrap(apperr.KindEngineUpload, "close upload form", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &body)
	if err != nil {
		return UploadedImage{}, apperr.Wrap(apperr.KindEngineUpload, "build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return UploadedImage{}, apperr.Wrap(apperr.KindEngineUpload, "upload reference image", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadedImage{}, &apperr.Error{
			Kind:           apperr.KindEngineUpload,
			Message:        "engine rejected reference upload",
			UpstreamStatus: resp.StatusCode,
			Details:        string(respBody),
		}
	}

	var uploaded UploadedImage
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return UploadedImage{}, apperr.Wrap(apperr.KindEngineUpload, "decode upload response", err)
	}
	if uploaded.Name == "" {
		return UploadedImage{}, &apperr.Error{
			Kind:    apperr.KindEngineUpload,
			Message: "engine upload response missing name",
			Details: string(respBody),
		}
	}
	if uploaded.Type == "" {
		uploaded.Type = "input"
	}

	return uploaded, nil
}

// DownloadOutput fetches a generated file and its content type.
func (c *Client) DownloadOutput(ctx context.Context, desc OutputDescriptor) ([]byte, string, error) {
	params := url.Values{}
	params.Set("type", desc.Type)
	params.Set("subfolder", desc.Subfolder)
	params.Set("filename", desc.Filename)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+params.Encode(), nil)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindEngineDownload, "build download request", err)
	}
	c.setAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindEngineDownload, "download output", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, "", &apperr.Error{
			Kind:           apperr.KindEngineDownload,
			Message:        fmt.Sprintf("engine download failed for %s", desc.Filename),
			UpstreamStatus: resp.StatusCode,
			Details:        string(detail),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindEngineDownload, "read output body", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	return data, contentType, nil
}
