package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	errs "github.com/BikyaITI/bikya-go-client/internal/errors"
)

// Envelope mirrors the response wrapper every backend endpoint returns.
type Envelope[T any] struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Data       T        `json:"data"`
	StatusCode int      `json:"statusCode"`
	Errors     []string `json:"errors,omitempty"`
}

const maxBodySize = 1 << 20 // 1 MB

// doEnvelope sends a JSON request and decodes the enveloped response.
// Transport-level failures map to ErrNetwork; 401/403 and unsuccessful
// envelopes map to the client error taxonomy.
func doEnvelope[T any](ctx context.Context, client *HTTPClient, method, url string, in any) (*Envelope[T], error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrNetwork, "%s %s: %s", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errs.Wrapf(errs.ErrNetwork, "reading %s response: %s", url, err)
	}

	var envelope Envelope[T]
	if len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("unmarshal response envelope: %w", jsonErr)
		}
	}

	if err := responseError(resp.StatusCode, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// responseError translates a non-2xx status or unsuccessful envelope into
// the client's error taxonomy.
func responseError[T any](status int, envelope *Envelope[T]) error {
	if status >= 200 && status < 300 && envelope.Success {
		return nil
	}

	message := envelope.Message
	if len(envelope.Errors) > 0 {
		message = message + " (" + strings.Join(envelope.Errors, "; ") + ")"
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch status {
	case http.StatusUnauthorized:
		return errs.Wrapf(errs.ErrUnauthorized, "%s", message)
	case http.StatusForbidden:
		return errs.Wrapf(errs.ErrForbidden, "%s", message)
	default:
		return errs.Wrapf(errs.ErrEnvelopeFailure, "status %d: %s", status, message)
	}
}
