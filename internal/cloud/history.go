// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jeranaias/sermonchat/internal/model"
)

// DefaultPageSize is the conversation list page size used by the CLI.
const DefaultPageSize = 50

// MaxTitleLength is the longest title the service accepts.
const MaxTitleLength = 500

// ErrInvalidTitle is returned by RenameConversation for an empty or
// overlong title.
var ErrInvalidTitle = errors.New("title must be 1-500 characters")

func conversationPath(id int64) string {
	return PathConversations + "/" + strconv.FormatInt(id, 10)
}

// ListConversations returns one page of the user's conversations, most
// recently updated first.
func (c *Client) ListConversations(ctx context.Context, skip, limit int) ([]model.ConversationSummary, error) {
	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out []model.ConversationSummary
	if err := c.doJSON(ctx, http.MethodGet, PathConversations, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation returns a conversation with all of its messages.
func (c *Client) GetConversation(ctx context.Context, id int64) (*model.ConversationDetail, error) {
	var out model.ConversationDetail
	if err := c.doJSON(ctx, http.MethodGet, conversationPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameConversation changes a conversation title.
func (c *Client) RenameConversation(ctx context.Context, id int64, title string) (*model.ConversationSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" || len([]rune(title)) > MaxTitleLength {
		return nil, ErrInvalidTitle
	}

	var out model.ConversationSummary
	body := map[string]string{"title": title}
	if err := c.doJSON(ctx, http.MethodPatch, conversationPath(id), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, conversationPath(id), nil, nil, nil)
}
