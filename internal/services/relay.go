package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medreader/labreader-backend/internal/models"
)

// RelayStatus classifies the outcome of a relay call
type RelayStatus int

const (
	RelaySuccess RelayStatus = iota
	RelayRateLimited
	RelayRemoteError
	RelayTransportError
)

// RelayResult carries the analysis text and decoded voice audio on
// success, or a user-presentable failure detail otherwise
type RelayResult struct {
	Status   RelayStatus
	Analysis string
	Voice    []byte
	Detail   string
}

// DefaultRelayTimeout bounds one outbound analysis call
const DefaultRelayTimeout = 90 * time.Second

// maxErrorBodyBytes caps how much of an error body ends up in Detail
const maxErrorBodyBytes = 512

// RelayService forwards a finalized document to the analysis API
type RelayService struct {
	client  *http.Client
	baseURL string
}

// NewRelayService creates a relay against the given base URL. A timeout
// of zero means DefaultRelayTimeout.
func NewRelayService(baseURL string, timeout time.Duration) *RelayService {
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	return &RelayService{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// analysisResponse is the success payload from the analysis API
type analysisResponse struct {
	Analysis string `json:"analysis"`
	Voice    string `json:"voice,omitempty"` // base64-encoded audio
}

// analysisError is the structured error payload, when the API sends one
type analysisError struct {
	Detail string `json:"detail"`
}

// Relay posts the document to the task-specific route and maps the
// response into the result taxonomy. It never mutates session state.
func (r *RelayService) Relay(ctx context.Context, task models.Task, language models.Language, doc *models.PendingDocument) *RelayResult {
	endpoint := fmt.Sprintf("%s/lab/read-%s?language=%s", r.baseURL, task, url.QueryEscape(string(language)))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", doc.FileName)
	if err != nil {
		return &RelayResult{Status: RelayTransportError, Detail: fmt.Sprintf("failed to build request: %v", err)}
	}
	if _, err := part.Write(doc.Data); err != nil {
		return &RelayResult{Status: RelayTransportError, Detail: fmt.Sprintf("failed to build request: %v", err)}
	}
	if err := writer.Close(); err != nil {
		return &RelayResult{Status: RelayTransportError, Detail: fmt.Sprintf("failed to build request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return &RelayResult{Status: RelayTransportError, Detail: fmt.Sprintf("invalid request: %v", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return &RelayResult{Status: RelayTransportError, Detail: transportFailureDetail(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RelayResult{Status: RelayRateLimited, Detail: "analysis quota exceeded"}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RelayResult{Status: RelayTransportError, Detail: fmt.Sprintf("failed reading response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return &RelayResult{Status: RelayRemoteError, Detail: extractErrorDetail(resp.StatusCode, payload)}
	}

	var result analysisResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return &RelayResult{Status: RelayRemoteError, Detail: fmt.Sprintf("unreadable response (HTTP %d)", resp.StatusCode)}
	}
	if result.Analysis == "" {
		return &RelayResult{Status: RelayRemoteError, Detail: "response contained no analysis"}
	}

	relayResult := &RelayResult{Status: RelaySuccess, Analysis: result.Analysis}
	if result.Voice != "" {
		voice, err := base64.StdEncoding.DecodeString(result.Voice)
		if err != nil {
			// text still stands on its own; drop the audio
			log.Printf("⚠️  Failed to decode voice payload: %v", err)
		} else {
			relayResult.Voice = voice
		}
	}
	return relayResult
}

// transportFailureDetail distinguishes a timeout from a connectivity
// failure so the user can tell which one happened
func transportFailureDetail(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "the analysis service did not answer in time (timeout)"
	}
	return fmt.Sprintf("connection failed (%v)", err)
}

// extractErrorDetail pulls the best available detail out of an error
// response: structured detail field, else the raw body, else a placeholder
func extractErrorDetail(statusCode int, payload []byte) string {
	var structured analysisError
	if err := json.Unmarshal(payload, &structured); err == nil && structured.Detail != "" {
		return structured.Detail
	}

	raw := strings.TrimSpace(string(payload))
	if raw != "" {
		if len(raw) > maxErrorBodyBytes {
			raw = raw[:maxErrorBodyBytes]
		}
		return fmt.Sprintf("HTTP %d: %s", statusCode, raw)
	}
	return fmt.Sprintf("HTTP %d (no detail provided)", statusCode)
}
