package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/weiawesome/wes-io-collab/collab-client/internal/domain"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

const completePath = "/api/complete"

// HTTPBackend calls the completion service's POST /api/complete.
type HTTPBackend struct {
	baseURL       string
	participantID string
	client        *http.Client
}

// NewHTTPBackend creates a backend for the service at baseURL. client may be
// nil; request deadlines come from the caller's context.
func NewHTTPBackend(baseURL, participantID string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPBackend{
		baseURL:       strings.TrimRight(baseURL, "/"),
		participantID: participantID,
		client:        client,
	}
}

// Complete posts req and returns the suggestions in the response.
func (b *HTTPBackend) Complete(ctx context.Context, req domain.CompletionRequest) ([]string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+completePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.participantID != "" {
		httpReq.Header.Set(pkglog.HeaderParticipantID, b.participantID)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion service returned %s", resp.Status)
	}

	var out domain.CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	return out.Suggestions, nil
}
