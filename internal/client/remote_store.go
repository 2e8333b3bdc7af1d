// Package client talks to the remote metrics/commitment store exposed by
// the peer-to-peer network backend. Calls are identified by a logical
// operation name and a typed payload; every response arrives in the same
// success/data/error envelope.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/metrics"
)

// Response is the backend's generic call envelope.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// RemoteStore is the asynchronous request/response primitive the network
// backend exposes. A transport-level error means the backend could not be
// reached; an envelope with Success=false means it rejected the call.
type RemoteStore interface {
	Call(ctx context.Context, op string, payload interface{}) (*Response, error)
}

type callEnvelope struct {
	Op      string      `json:"op"`
	Payload interface{} `json:"payload,omitempty"`
}

// HTTPRemoteStore implements RemoteStore over a JSON POST endpoint.
type HTTPRemoteStore struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewHTTPRemoteStore creates a client for the backend at baseURL. The
// timeout belongs to the transport; a timed-out call surfaces as an
// ordinary transport error. The metrics argument may be nil.
func NewHTTPRemoteStore(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *HTTPRemoteStore {
	return &HTTPRemoteStore{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

// Call posts one operation to the backend and decodes the envelope.
func (s *HTTPRemoteStore) Call(ctx context.Context, op string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(callEnvelope{Op: op, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.countCall(op, "transport_error")
		return nil, fmt.Errorf("remote call %s failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		s.countCall(op, "transport_error")
		return nil, fmt.Errorf("remote call %s returned status %d", op, resp.StatusCode)
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		s.countCall(op, "transport_error")
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	if envelope.Success {
		s.countCall(op, "ok")
	} else {
		s.countCall(op, "rejected")
	}

	s.logger.Debug("Remote call completed",
		zap.String("op", op),
		zap.Bool("success", envelope.Success))

	return &envelope, nil
}

func (s *HTTPRemoteStore) countCall(op, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RemoteCallsTotal.WithLabelValues(op, outcome).Inc()
}
