// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/cloud"
	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/server"
	"github.com/jeranaias/sermonchat/internal/session"
	"github.com/jeranaias/sermonchat/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// =============================================================================
// TEST HELPERS
// =============================================================================

var graceAnswer = server.AnswererFunc(func(context.Context, string, string) (server.Answer, error) {
	return server.Answer{
		Text:          "Grace is a gift.",
		Citations:     []model.SourceCitation{{SourceID: 1, Title: "Efesus 2", Speaker: "Pdt. A"}},
		ContextChunks: 1,
	}, nil
})

type testEnv struct {
	url    string
	config string
	dir    string
}

// newTestEnv starts a mock service and writes a config pointing at it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := server.New(config.ServerConfig{}, server.WithTokenDelay(0), server.WithAnswerer(graceAnswer))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return newTestEnvAt(t, ts.URL)
}

func newTestEnvAt(t *testing.T, url string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "")

	cfg := fmt.Sprintf(`[api]
base_url = %q

[auth]
token_file = ""

[storage]
driver = "json"
path = %q

[logging]
level = "error"

[ui]
show_citations = true
word_wrap = 80
`, url, filepath.Join(dir, "transcripts"))
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &testEnv{url: url, config: path, dir: dir}
}

// run executes the CLI and returns the exit code, stdout and stderr.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config", e.config}, args...)
	code := Run(full, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAnswer(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "", "ask", "What is grace?")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "Grace is a gift.")
	assert.Contains(t, out, "Sources")
	assert.Contains(t, out, "Efesus 2 (Pdt. A)")
	assert.Contains(t, errOut, "conversation #1")
}

func TestAsk_QuestionFromStdin(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "What is grace?\n", "ask", "--raw")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "Grace is a gift.")
}

func TestAsk_JSON(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "", "--json", "ask", "What is grace?")
	require.Equal(t, ExitSuccess, code, errOut)

	var resp struct {
		Success bool       `json:"success"`
		Command string     `json:"command"`
		Data    answerJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ask", resp.Command)
	assert.Equal(t, "Grace is a gift.", resp.Data.Answer)
	require.NotNil(t, resp.Data.ConversationID)
	assert.Equal(t, int64(1), *resp.Data.ConversationID)
	require.NotNil(t, resp.Data.MessageID)
	assert.Equal(t, int64(2), *resp.Data.MessageID)
	require.Len(t, resp.Data.Citations, 1)
	assert.Equal(t, "Efesus 2", resp.Data.Citations[0].Title)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	env := newTestEnv(t)

	code, _, errOut := env.run(t, "   \n", "ask")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "question is empty")
}

func TestAsk_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	t.Cleanup(ts.Close)
	env := newTestEnvAt(t, ts.URL)

	code, _, errOut := env.run(t, "", "ask", "What is grace?")
	assert.Equal(t, ExitNetworkError, code)
	assert.Contains(t, errOut, "stream error 500")
}

func TestAsk_ContinuesConversation(t *testing.T) {
	env := newTestEnv(t)

	code, _, errOut := env.run(t, "", "ask", "What is grace?")
	require.Equal(t, ExitSuccess, code, errOut)

	code, out, errOut := env.run(t, "", "ask", "--conversation", "1", "And faith?")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "Grace is a gift.")
	assert.Contains(t, errOut, "conversation #1")

	code, _, _ = env.run(t, "", "ask", "--conversation", "99", "Hello?")
	assert.Equal(t, ExitNotFoundError, code)
}

// =============================================================================
// HISTORY AND FEEDBACK
// =============================================================================

func TestHistory_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run(t, "", "history", "list")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "No conversations yet.\n", out)

	code, _, errOut := env.run(t, "", "ask", "What is grace?")
	require.Equal(t, ExitSuccess, code, errOut)

	code, out, _ = env.run(t, "", "history", "list")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "What is grace?")

	code, out, errOut = env.run(t, "", "history", "show", "#1")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "What is grace?")
	assert.Contains(t, out, "Grace is a gift.")
	assert.Contains(t, out, "Efesus 2 (Pdt. A)")

	code, out, _ = env.run(t, "", "history", "rename", "1", "Grace", "notes")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `#1 renamed to "Grace notes"`)

	code, out, _ = env.run(t, "", "history", "delete", "1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "deleted #1")

	code, _, _ = env.run(t, "", "history", "show", "1")
	assert.Equal(t, ExitNotFoundError, code)

	code, _, _ = env.run(t, "", "history", "delete", "1")
	assert.Equal(t, ExitNotFoundError, code)
}

func TestHistory_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	code, _, errOut := env.run(t, "", "history", "show", "abc")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "conversation id")
}

func TestHistory_ShowJSONKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		code, _, errOut := env.run(t, "", "ask", fmt.Sprintf("Question %d", i+1))
		require.Equal(t, ExitSuccess, code, errOut)
	}

	code, out, errOut := env.run(t, "", "--json", "history", "show", "3", "1", "2")
	require.Equal(t, ExitSuccess, code, errOut)

	var resp struct {
		Data []model.ConversationDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{resp.Data[0].ID, resp.Data[1].ID, resp.Data[2].ID})
}

func TestFeedback(t *testing.T) {
	env := newTestEnv(t)

	code, _, errOut := env.run(t, "", "ask", "What is grace?")
	require.Equal(t, ExitSuccess, code, errOut)

	code, out, errOut := env.run(t, "", "feedback", "2", "up", "-m", "helpful")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "rated message #2 +1")

	code, _, _ = env.run(t, "", "feedback", "2", "sideways")
	assert.Equal(t, ExitUsageError, code)
}

// =============================================================================
// HEALTH, TRANSCRIPTS, CONFIG
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "", "health")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, server.ServiceName)
	assert.Contains(t, out, env.url)
	assert.Contains(t, out, "[OK]")
}

func TestHealth_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	env := newTestEnvAt(t, url)

	code, _, _ := env.run(t, "", "health")
	assert.NotEqual(t, ExitSuccess, code)
}

func TestTranscripts(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run(t, "", "transcripts", "list")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "No saved transcripts.\n", out)

	code, _, errOut := env.run(t, "", "ask", "What is grace?")
	require.Equal(t, ExitSuccess, code, errOut)

	code, out, _ = env.run(t, "", "transcripts", "list")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "conv-1")
	assert.Contains(t, out, "What is grace?")

	code, out, _ = env.run(t, "", "transcripts", "list", "--search", "nothing-matches")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "No saved transcripts.\n", out)

	code, out, _ = env.run(t, "", "transcripts", "show", "conv-1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Grace is a gift.")

	exported := filepath.Join(env.dir, "grace.md")
	code, _, errOut = env.run(t, "", "transcripts", "export", "conv-1", "-o", exported)
	require.Equal(t, ExitSuccess, code, errOut)
	md, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Grace is a gift.")

	code, _, _ = env.run(t, "", "transcripts", "show", "conv-404")
	assert.Equal(t, ExitNotFoundError, code)

	code, out, _ = env.run(t, "", "transcripts", "delete", "conv-1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "deleted conv-1")

	code, _, _ = env.run(t, "", "transcripts", "prune", "--keep", "-1")
	assert.Equal(t, ExitUsageError, code)
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)
	target := filepath.Join(env.dir, "fresh", "config.toml")

	var out, errOut bytes.Buffer
	code := Run([]string{"--config", target, "config", "init"}, nil, &out, &errOut)
	require.Equal(t, ExitSuccess, code, errOut.String())
	assert.Contains(t, out.String(), target)
	_, err := os.Stat(target)
	require.NoError(t, err)

	out.Reset()
	errOut.Reset()
	code = Run([]string{"--config", target, "config", "init"}, nil, &out, &errOut)
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, errOut.String(), "already exists")

	code, out2, _ := env.run(t, "", "config", "path")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, env.config+"\n", out2)

	code, out2, _ = env.run(t, "", "--token", "secret-token", "config", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out2, env.url)
	assert.NotContains(t, out2, "secret-token")

	code, out2, _ = env.run(t, "", "config", "validate")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out2, "configuration is valid")
}

func TestConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0o600))

	var out, errOut bytes.Buffer
	code := Run([]string{"--config", path, "config", "validate"}, nil, &out, &errOut)
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut.String(), "ui.theme")

	// show falls back to defaults instead of failing.
	out.Reset()
	errOut.Reset()
	code = Run([]string{"--config", path, "config", "show"}, nil, &out, &errOut)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, errOut.String(), "using defaults")
}

func TestUnknownFlag(t *testing.T) {
	env := newTestEnv(t)
	code, _, _ := env.run(t, "", "ask", "--bogus")
	assert.Equal(t, ExitUsageError, code)
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("f", "v", "bad", ""), ExitUsageError},
		{"not found", &NotFoundError{Resource: "transcript", ID: "x"}, ExitNotFoundError},
		{"cloud not found", fmt.Errorf("get: %w", cloud.ErrNotFound), ExitNotFoundError},
		{"transcript not found", storage.ErrTranscriptNotFound, ExitNotFoundError},
		{"unauthorized", NewCommandError("history", "list", "", cloud.ErrUnauthorized), ExitAuthError},
		{"config", config.ValidateErrors{{Field: "api.base_url", Message: "bad"}}, ExitConfigError},
		{"base url", cloud.ErrInvalidBaseURL, ExitConfigError},
		{"timeout", fmt.Errorf("wait: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"turn", &session.TurnError{Err: errors.New("reset")}, ExitNetworkError},
		{"reported", &reportedError{NewValidationError("f", "v", "bad", "")}, ExitUsageError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func TestAnswerPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newAnswerPrinter(&buf)

	snap := func(id, content string) session.Snapshot {
		return session.Snapshot{Messages: []model.Message{
			{ID: "u1", Role: model.RoleUser, Content: "q"},
			{ID: id, Role: model.RoleAssistant, Content: content},
		}}
	}

	p.Observe(session.Snapshot{Messages: []model.Message{{ID: "u1", Role: model.RoleUser, Content: "q"}}})
	p.Observe(snap("a1", "Gra"))
	p.Observe(snap("a1", "Grace is"))
	p.Observe(snap("a1", "Grace is"))
	assert.Equal(t, "Grace is", buf.String())

	// Error text replacing the answer is not printed.
	p.Observe(snap("a1", "[Error] reset"))
	assert.Equal(t, "Grace is", buf.String())
	assert.Equal(t, "Grace is", p.Printed())

	// A new turn starts over.
	p.Observe(snap("a2", "Faith"))
	assert.Equal(t, "Grace isFaith", buf.String())
	assert.Equal(t, "Faith", p.Printed())
}

func TestParseRating(t *testing.T) {
	for _, s := range []string{"up", "GOOD", "yes", "+", "+1"} {
		v, err := parseRating(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"down", "bad", "No", "-", "-1"} {
		v, err := parseRating(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := parseRating("meh")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "#42"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 42}, ids)

	for _, bad := range []string{"0", "-3", "x"} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestFormatConversations(t *testing.T) {
	assert.Equal(t, "No conversations yet.\n", formatConversations(nil))

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local)
	out := formatConversations([]model.ConversationSummary{
		{ID: 7, Title: "Grace\nand faith", UpdatedAt: ts},
		{ID: 12, Title: strings.Repeat("x", 80), UpdatedAt: ts},
	})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "#7      Grace"), lines[0])
	assert.NotContains(t, lines[0], "\nand")
	assert.Contains(t, lines[0], "2025-03-01 10:00")
	assert.NotContains(t, lines[1], strings.Repeat("x", 51))
}

// =============================================================================
// REPL
// =============================================================================

// scriptedInput replays lines and then reports EOF.
type scriptedInput struct {
	lines   []string
	history []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func newTestREPL(t *testing.T, lines ...string) (*repl, *scriptedInput, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	srv := server.New(config.ServerConfig{}, server.WithTokenDelay(0), server.WithAnswerer(graceAnswer))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := cloud.New(ts.URL)
	require.NoError(t, err)

	input := &scriptedInput{lines: lines}
	var out, errOut bytes.Buffer
	r := &repl{
		ctrl:   session.New(client, session.WithLogger(zap.NewNop())),
		client: client,
		input:  input,
		saver:  &transcriptSaver{logger: zap.NewNop(), ids: map[string]string{}},
		out:    &out,
		errOut: &errOut,
		width:  80,
		cites:  true,
	}
	return r, input, &out, &errOut
}

func TestREPL_Session(t *testing.T) {
	r, input, out, errOut := newTestREPL(t,
		"/good",
		"What is grace?",
		"",
		"/good thanks",
		"/history",
		"/new",
		"/bogus",
		"/quit",
		"never read",
	)

	require.NoError(t, r.run(context.Background()))

	assert.Contains(t, errOut.String(), "no saved answer to rate yet")
	assert.Contains(t, out.String(), "Grace is a gift.")
	assert.Contains(t, out.String(), "Efesus 2 (Pdt. A)")
	assert.Contains(t, out.String(), "feedback +1 recorded")
	assert.Contains(t, out.String(), "#1")
	assert.Contains(t, out.String(), "Started a new conversation.")
	assert.Contains(t, errOut.String(), "unknown command")

	assert.Equal(t, []string{"never read"}, input.lines)
	assert.NotContains(t, input.history, "")
	assert.Equal(t, "/quit", input.history[len(input.history)-1])

	assert.Empty(t, r.ctrl.Snapshot().Messages)
}

func TestREPL_LoadConversation(t *testing.T) {
	r, _, out, errOut := newTestREPL(t,
		"What is grace?",
		"/new",
		"/load",
		"/load abc",
		"/load 1",
	)

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, errOut.String(), "missing")
	assert.Contains(t, errOut.String(), "not a positive number")

	snap := r.ctrl.Snapshot()
	require.NotNil(t, snap.ConversationID)
	assert.Equal(t, int64(1), *snap.ConversationID)
	require.Len(t, snap.Messages, 2)
	assert.Contains(t, out.String(), "#2")
}

func TestREPL_CancelledTurn(t *testing.T) {
	r, _, _, errOut := newTestREPL(t, "What is grace?")
	r.onTurn = func(ctx context.Context) context.Context {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return ctx
	}

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, errOut.String(), "[Cancelled]")
}
