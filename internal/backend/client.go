package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inhaletech/inhalyzer/internal/models"
)

// TransportError is a non-2xx response or a failed request against the
// analysis backend.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d: %s", e.Status, e.Body)
}

// Client talks to the external analysis backend's HTTP surface. The
// backend performs the actual video analysis; this client only moves
// requests and typed responses.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log.Named("backend"),
	}
}

type UploadResponse struct {
	VideoID   string               `json:"videoId"`
	Thumbnail string               `json:"thumbnail"`
	Metadata  models.VideoMetadata `json:"metadata"`
}

type StartAnalysisResponse struct {
	AnalysisID    string  `json:"analysisId"`
	EstimatedTime float64 `json:"estimatedTime"`
}

type StatusResponse struct {
	Status       string   `json:"status"`
	Progress     int      `json:"progress"`
	CurrentStage string   `json:"currentStage"`
	Logs         []string `json:"logs"`
}

// UploadVideo sends the video as multipart form data together with the
// device family the analysis should assume.
func (c *Client) UploadVideo(ctx context.Context, video io.Reader, fileName string, deviceType models.DeviceFamily) (*UploadResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, video); err != nil {
		return nil, fmt.Errorf("failed to copy video into form: %w", err)
	}
	if err := writer.WriteField("deviceType", string(deviceType)); err != nil {
		return nil, fmt.Errorf("failed to write deviceType field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/video/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartAnalysis kicks off a run for an uploaded video.
func (c *Client) StartAnalysis(ctx context.Context, videoID string, llmModels []string) (*StartAnalysisResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"videoId":   videoID,
		"llmModels": llmModels,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analysis/start", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out StartAnalysisResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalysisStatus polls the run state. Used as a fallback when the
// realtime channel is unavailable.
func (c *Client) AnalysisStatus(ctx context.Context, analysisID string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/analysis/status/"+analysisID, nil)
	if err != nil {
		return nil, err
	}

	var out StatusResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalysisResult fetches the final result of a completed run.
func (c *Client) AnalysisResult(ctx context.Context, analysisID string) (*models.AnalysisResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/analysis/result/"+analysisID, nil)
	if err != nil {
		return nil, err
	}

	var out models.AnalysisResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("backend returned non-2xx",
			zap.String("url", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
