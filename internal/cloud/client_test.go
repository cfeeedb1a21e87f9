// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sermonchat/internal/auth"
	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/stream"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func writeFrames(t *testing.T, w http.ResponseWriter, evs ...stream.Event) {
	t.Helper()
	var buf []byte
	for _, ev := range evs {
		var err error
		buf, err = stream.AppendFrame(buf, ev)
		require.NoError(t, err)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	_, _ = w.Write(buf)
}

// =============================================================================
// CONSTRUCTOR TESTS
// =============================================================================

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8000", "ftp://x", "http://"} {
		_, err := New(u)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, u)
	}

	c, err := New(" http://localhost:8000/ ")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestOpenStream_SendsRequest(t *testing.T) {
	var got stream.Request
	var header http.Header
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathChatStream, r.URL.Path)
		header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeFrames(t, w, stream.TokenEvent{Content: "hi"}, stream.DoneEvent{})
	}), WithTokenProvider(auth.Static("secret")), WithLanguage("en"))

	id := int64(3)
	body, err := c.OpenStream(context.Background(), stream.Request{Question: "q", ConversationID: &id})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content":"hi"`)

	assert.Equal(t, "q", got.Question)
	require.NotNil(t, got.ConversationID)
	assert.Equal(t, int64(3), *got.ConversationID)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "Bearer secret", header.Get("Authorization"))
	assert.Equal(t, "text/event-stream", header.Get("Accept"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
}

func TestOpenStream_NoTokenNoHeader(t *testing.T) {
	var authHeader atomic.Value
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))
		writeFrames(t, w, stream.DoneEvent{})
	}))

	body, err := c.OpenStream(context.Background(), stream.Request{Question: "q"})
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "", authHeader.Load())
}

func TestOpenStream_StatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))

	_, err := c.OpenStream(context.Background(), stream.Request{Question: "q"})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 500, serr.StatusCode)
	assert.Equal(t, "upstream exploded", serr.Body)
	assert.Equal(t, "stream error 500: upstream exploded", err.Error())
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpenStream_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.OpenStream(context.Background(), stream.Request{Question: "q"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOpenStream_ErrorBodyTruncated(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", MaxErrorBodySize*2)))
	}))

	_, err := c.OpenStream(context.Background(), stream.Request{Question: "q"})
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Len(t, serr.Body, MaxErrorBodySize)
}

func TestOpenStream_EmptyBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	}))

	_, err := c.OpenStream(context.Background(), stream.Request{Question: "q"})
	assert.ErrorIs(t, err, stream.ErrNoBody)
}

func TestOpenStream_TokenProviderError(t *testing.T) {
	var hits atomic.Int32
	boom := errors.New("token store unavailable")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), WithTokenProvider(auth.TokenProviderFunc(func(context.Context) (string, bool, error) {
		return "", false, boom
	})))

	_, err := c.OpenStream(context.Background(), stream.Request{Question: "q"})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, hits.Load())
}

// =============================================================================
// SESSION INTEGRATION TESTS
// =============================================================================

func TestSession_OverHTTP(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(t, w,
			stream.ConversationEvent{ConversationID: 21},
			stream.TokenEvent{Content: "Grace "},
			stream.TokenEvent{Content: "abounds."},
			stream.CitationsEvent{Citations: []model.SourceCitation{{SourceID: 1, Title: "Roma 5"}}},
			stream.DoneEvent{},
			stream.MessageIDEvent{MessageID: 77},
		)
	}))

	ctrl := session.New(c)
	require.NoError(t, ctrl.Submit(context.Background(), "grace?"))

	snap := ctrl.Snapshot()
	a, ok := snap.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "Grace abounds.", a.Content)
	require.Len(t, a.Citations, 1)
	require.NotNil(t, a.ServerMessageID)
	assert.Equal(t, int64(77), *a.ServerMessageID)
	require.NotNil(t, snap.ConversationID)
	assert.Equal(t, int64(21), *snap.ConversationID)
}

func TestSession_StatusErrorBecomesContent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))

	ctrl := session.New(c)
	err := ctrl.Submit(context.Background(), "q")

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	a, _ := ctrl.Snapshot().LastAssistant()
	assert.Equal(t, "Error: stream error 429: rate limited", a.Content)
}

func TestSession_CancelTearsDownConnection(t *testing.T) {
	closed := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(t, w, stream.TokenEvent{Content: "first"})
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(closed)
	}))

	ctrl := session.New(c, session.WithCancelClosesTransport(true))
	errc := make(chan error, 1)
	go func() { errc <- ctrl.Submit(context.Background(), "q") }()

	require.Eventually(t, func() bool {
		a, ok := ctrl.Snapshot().LastAssistant()
		return ok && a.Content == "first"
	}, 2*time.Second, 5*time.Millisecond)

	ctrl.Cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not return after Cancel")
	}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the connection close")
	}

	a, _ := ctrl.Snapshot().LastAssistant()
	assert.Equal(t, "first", a.Content)
	assert.False(t, a.IsStreaming)
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestListConversations(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathConversations, r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("skip"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"id":1,"title":"Hope","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-02T00:00:00Z"}]`))
	}))

	convs, err := c.ListConversations(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Hope", convs[0].Title)
	assert.Equal(t, 2025, convs[0].UpdatedAt.Year())
}

func TestGetConversation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathConversations+"/4" {
			http.Error(w, `{"detail":"Conversation not found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":4,"title":"t","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z",
			"messages":[{"id":8,"role":"user","content":"q","created_at":"2025-01-01T00:00:00Z"},
			{"id":9,"role":"assistant","content":"a","created_at":"2025-01-01T00:00:00Z","citations":[{"source_id":2,"title":"x"}],"feedback":{"id":1,"is_positive":true,"created_at":"2025-01-01T00:00:00Z"}}]}`))
	}))

	detail, err := c.GetConversation(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), detail.ID)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, model.RoleAssistant, detail.Messages[1].Role)
	require.NotNil(t, detail.Messages[1].Feedback)

	_, err = c.GetConversation(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, `api error 404: {"detail":"Conversation not found"}`, apiErr.Error())
}

func TestRenameConversation(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":4,"title":"New name","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`))
	}))

	conv, err := c.RenameConversation(context.Background(), 4, "  New name ")
	require.NoError(t, err)
	assert.Equal(t, "New name", conv.Title)
	assert.Equal(t, map[string]string{"title": "New name"}, body)

	_, err = c.RenameConversation(context.Background(), 4, "   ")
	assert.ErrorIs(t, err, ErrInvalidTitle)
	_, err = c.RenameConversation(context.Background(), 4, strings.Repeat("x", MaxTitleLength+1))
	assert.ErrorIs(t, err, ErrInvalidTitle)
}

func TestDeleteConversation(t *testing.T) {
	var method string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteConversation(context.Background(), 4))
	assert.Equal(t, http.MethodDelete, method)
}

// =============================================================================
// FEEDBACK / HEALTH TESTS
// =============================================================================

func TestSubmitFeedback(t *testing.T) {
	var got FeedbackRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathFeedback, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":3,"is_positive":false,"comment":"off topic","created_at":"2025-01-01T00:00:00Z"}`))
	}))

	fb, err := c.SubmitFeedback(context.Background(), FeedbackRequest{MessageID: 9, IsPositive: false, Comment: "off topic"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), fb.ID)
	assert.Equal(t, "-1", fb.Symbol())
	assert.Equal(t, int64(9), got.MessageID)

	_, err = c.SubmitFeedback(context.Background(), FeedbackRequest{Comment: strings.Repeat("x", MaxFeedbackComment+1)})
	assert.ErrorIs(t, err, ErrCommentTooLong)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","service":"sermon-qa"}`))
	}))

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.OK())
	assert.Equal(t, "sermon-qa", h.Service)
}

func TestRateLimit(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}), WithRateLimit(0.5, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Health(ctx)
	require.NoError(t, err)
	_, err = c.Health(ctx)
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
