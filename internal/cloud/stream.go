// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/stream"
)

// OpenStream POSTs req to the streaming endpoint and returns the response
// body for the frame parser. The body stays open until the caller closes it
// or ctx is cancelled.
//
// A non-2xx response yields a *StatusError; the stream request is not rate
// limited since the session allows one in flight at a time.
func (c *Client) OpenStream(ctx context.Context, req stream.Request) (io.ReadCloser, error) {
	if req.Language == "" {
		req.Language = c.language
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathChatStream, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.setHeaders(ctx, httpReq); err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamHTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		serr := &StatusError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
		c.logger.Warn("Stream request rejected", zap.Int("status", resp.StatusCode))
		return nil, serr
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, stream.ErrNoBody
	}

	c.logger.Debug("Stream opened",
		zap.Int("status", resp.StatusCode),
		zap.Bool("continuing", req.ConversationID != nil))
	return resp.Body, nil
}
