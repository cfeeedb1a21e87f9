// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"net/http"

	"github.com/jeranaias/sermonchat/internal/model"
)

// MaxFeedbackComment is the longest comment the service accepts.
const MaxFeedbackComment = 2000

// ErrCommentTooLong is returned for feedback comments over MaxFeedbackComment.
var ErrCommentTooLong = errors.New("feedback comment too long")

// FeedbackRequest rates one persisted assistant message. Submitting again for
// the same message replaces the earlier rating.
type FeedbackRequest struct {
	MessageID  int64  `json:"message_id"`
	IsPositive bool   `json:"is_positive"`
	Comment    string `json:"comment,omitempty"`
}

// SubmitFeedback sends a rating and returns the stored record.
func (c *Client) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*model.Feedback, error) {
	if len([]rune(req.Comment)) > MaxFeedbackComment {
		return nil, ErrCommentTooLong
	}
	var out model.Feedback
	if err := c.doJSON(ctx, http.MethodPost, PathFeedback, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health is the service health report.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// OK reports whether the service declared itself healthy.
func (h Health) OK() bool {
	return h.Status == "ok"
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.doJSON(ctx, http.MethodGet, PathHealth, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
