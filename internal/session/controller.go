// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/stream"
)

// =============================================================================
// STATE
// =============================================================================

// State is the phase of the session.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyQuestion is returned by Submit for a blank question.
	ErrEmptyQuestion = errors.New("session: question is empty")

	// ErrBusy is returned when a turn is already in flight.
	ErrBusy = errors.New("session: a request is already in flight")
)

// TurnError reports a transport failure during Submit. By the time it is
// returned the assistant message already holds either the partial answer or
// an error description.
type TurnError struct {
	Partial string // Content received before the failure
	Err     error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("turn failed after %d chars: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("turn failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Err
}

// ErrorPrefix starts the assistant content of a turn that failed before any
// answer text arrived.
const ErrorPrefix = "Error: "

// ErrorContent is the assistant content shown when a turn fails before any
// answer text arrived.
func ErrorContent(err error) string {
	return ErrorPrefix + err.Error()
}

// =============================================================================
// TRANSPORT
// =============================================================================

// Streamer opens the answer stream for one request. The returned body is
// closed by the controller.
type Streamer interface {
	OpenStream(ctx context.Context, req stream.Request) (io.ReadCloser, error)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a copy of the session state. Mutating it has no effect on the
// controller.
type Snapshot struct {
	Messages       []model.Message
	ConversationID *int64
	IsStreaming    bool
	State          State
	// Version increases with every state change.
	Version uint64
}

// LastAssistant returns the most recent assistant message.
func (s Snapshot) LastAssistant() (model.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == model.RoleAssistant {
			return s.Messages[i], true
		}
	}
	return model.Message{}, false
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the state of one chat session.
//
// Submit runs on the caller's goroutine; Cancel, Reset, Snapshot and Subscribe
// may be called from any goroutine.
type Controller struct {
	streamer Streamer
	opts     Options
	logger   *zap.Logger

	mu             sync.Mutex
	messages       []*model.Message
	conversationID *int64
	state          State
	generation     uint64
	version        uint64
	token          *cancelToken

	// notifyMu serializes deliveries so subscribers see versions in order.
	notifyMu    sync.Mutex
	subMu       sync.Mutex
	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// New creates an idle session that opens streams through streamer.
func New(streamer Streamer, opts ...Option) *Controller {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{
		streamer: streamer,
		opts:     o,
		logger:   o.Logger,
	}
}

// turn is the private state of one Submit call.
type turn struct {
	ctx        context.Context
	generation uint64
	assistant  *model.Message
	token      *cancelToken
	started    time.Time

	content   strings.Builder
	citations []model.SourceCitation
	serverID  *int64
	done      bool
	err       error
}

// stopped reports whether the turn was cancelled through Cancel or through
// the context passed to Submit.
func (t *turn) stopped() bool {
	return t.token.isCancelled() || t.ctx.Err() != nil
}

// Submit asks question and blocks until the answer is finalized.
//
// A blank question returns ErrEmptyQuestion and a call while another turn is
// in flight returns ErrBusy; neither changes the session. Transport failures
// are written into the assistant message and returned as *TurnError.
// Cancellation, through Cancel or ctx, is not an error.
func (c *Controller) Submit(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}

	t, req, err := c.begin(ctx, question)
	if err != nil {
		return err
	}
	c.notify()

	defer t.token.release()
	c.consume(t, req)
	c.finalize(t)

	if t.err != nil {
		return &TurnError{Partial: t.content.String(), Err: t.err}
	}
	return nil
}

// begin appends the user message and the assistant placeholder in one step.
func (c *Controller) begin(ctx context.Context, question string) (*turn, stream.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return nil, stream.Request{}, ErrBusy
	}

	user := model.NewUserMessage(question)
	assistant := model.NewAssistantMessage()
	c.messages = append(c.messages, user, assistant)
	c.state = StateSending
	c.generation++
	c.version++

	turnCtx, cancel := context.WithCancel(ctx)
	t := &turn{
		ctx:        turnCtx,
		generation: c.generation,
		assistant:  assistant,
		token:      newCancelToken(cancel),
		started:    time.Now(),
	}
	c.token = t.token

	req := stream.Request{
		Question: question,
		Language: c.opts.Language,
	}
	if c.conversationID != nil {
		id := *c.conversationID
		req.ConversationID = &id
	}

	c.logger.Debug("Submitting question",
		zap.Int("question_len", len(question)),
		zap.Bool("continuing", req.ConversationID != nil))
	return t, req, nil
}

// consume pulls events until the stream ends, fails or the turn is cancelled.
func (c *Controller) consume(t *turn, req stream.Request) {
	body, err := c.streamer.OpenStream(t.ctx, req)
	if err != nil {
		c.fail(t, err)
		return
	}
	if body == nil {
		c.fail(t, stream.ErrNoBody)
		return
	}
	defer body.Close()

	events, err := stream.Parse(body)
	if err != nil {
		c.fail(t, err)
		return
	}

	for ev, err := range events {
		if t.stopped() {
			c.logger.Debug("Turn cancelled", zap.Int("chars", t.content.Len()))
			return
		}
		if err != nil {
			c.fail(t, err)
			return
		}
		if stop := c.apply(t, ev); stop {
			return
		}
	}
}

// fail records a transport error unless the turn was cancelled, in which case
// the error is just the torn-down connection.
func (c *Controller) fail(t *turn, err error) {
	if t.stopped() {
		c.logger.Debug("Stream closed by cancellation", zap.Error(err))
		return
	}
	if t.done {
		// The answer is complete; only the message id was still pending.
		c.logger.Warn("Stream ended before message id", zap.Error(err))
		return
	}
	c.logger.Warn("Stream failed",
		zap.Error(err),
		zap.Int("partial_chars", t.content.Len()))
	t.err = err
}

// apply folds one event into the session and reports whether to stop.
func (c *Controller) apply(t *turn, ev stream.Event) (stop bool) {
	c.mu.Lock()
	if t.generation != c.generation {
		// Reset discarded this turn.
		c.mu.Unlock()
		return true
	}
	if c.state == StateSending {
		c.state = StateStreaming
	}

	switch e := ev.(type) {
	case stream.ConversationEvent:
		switch {
		case c.conversationID == nil:
			id := e.ConversationID
			c.conversationID = &id
		case *c.conversationID != e.ConversationID:
			c.logger.Warn("Ignoring conversation reassignment",
				zap.Int64("conversation_id", *c.conversationID),
				zap.Int64("received", e.ConversationID))
		}

	case stream.TokenEvent:
		if !t.done {
			t.content.WriteString(e.Content)
			t.assistant.SetStreamContent(t.content.String())
		}

	case stream.CitationsEvent:
		if !t.done {
			t.citations = model.CloneCitations(e.Citations)
		}

	case stream.MessageIDEvent:
		id := e.MessageID
		t.serverID = &id
		stop = t.done

	case stream.DoneEvent:
		t.done = true
		stop = !c.opts.AwaitMessageID || t.serverID != nil

	default:
		c.logger.Debug("Skipping event", zap.String("kind", string(ev.Kind())))
	}

	c.version++
	c.mu.Unlock()

	c.notify()
	return stop
}

// finalize ends the turn exactly once.
func (c *Controller) finalize(t *turn) {
	c.mu.Lock()
	if t.generation != c.generation {
		c.mu.Unlock()
		return
	}

	content := t.content.String()
	if t.err != nil && content == "" {
		content = ErrorContent(t.err)
	}
	t.assistant.Finalize(content, t.citations, t.serverID)
	c.state = StateIdle
	c.token = nil
	c.version++

	fields := []zap.Field{
		zap.Duration("duration", time.Since(t.started)),
		zap.Int("chars", t.content.Len()),
		zap.Int("citations", len(t.citations)),
		zap.Bool("cancelled", t.token.isCancelled()),
	}
	if c.conversationID != nil {
		fields = append(fields, zap.Int64("conversation_id", *c.conversationID))
	}
	c.mu.Unlock()

	c.logger.Info("Turn finalized", fields...)
	c.notify()
}

// =============================================================================
// CANCEL / RESET / SEED
// =============================================================================

// Cancel stops the active turn at its next event boundary. It does nothing
// when no turn is in flight.
func (c *Controller) Cancel() {
	c.mu.Lock()
	tok := c.token
	active := c.state != StateIdle
	c.mu.Unlock()

	if tok == nil || !active {
		return
	}
	tok.cancel(c.opts.CancelClosesTransport)
	c.logger.Debug("Cancellation requested",
		zap.Bool("close_transport", c.opts.CancelClosesTransport))
}

// Reset clears the session for a new conversation. A turn still in flight is
// cancelled and its remaining effects are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	tok := c.token
	c.clearLocked()
	c.mu.Unlock()

	if tok != nil {
		tok.cancel(true)
	}
	c.notify()
}

// Seed replaces the session with a conversation loaded from history.
func (c *Controller) Seed(conversationID int64, messages []model.Message) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.clearLocked()
	id := conversationID
	c.conversationID = &id
	for i := range messages {
		m := messages[i].Clone()
		m.IsStreaming = false
		c.messages = append(c.messages, &m)
	}
	c.mu.Unlock()

	c.logger.Debug("Session seeded from history",
		zap.Int64("conversation_id", conversationID),
		zap.Int("messages", len(messages)))
	c.notify()
	return nil
}

func (c *Controller) clearLocked() {
	c.messages = nil
	c.conversationID = nil
	c.state = StateIdle
	c.token = nil
	c.generation++
	c.version++
}

// =============================================================================
// READERS
// =============================================================================

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Messages:    make([]model.Message, len(c.messages)),
		IsStreaming: c.state != StateIdle,
		State:       c.state,
		Version:     c.version,
	}
	for i, m := range c.messages {
		s.Messages[i] = m.Clone()
	}
	if c.conversationID != nil {
		id := *c.conversationID
		s.ConversationID = &id
	}
	return s
}

// ConversationID returns the server conversation id, if assigned.
func (c *Controller) ConversationID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationID == nil {
		return 0, false
	}
	return *c.conversationID, true
}

// IsStreaming reports whether a turn is in flight.
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that removes it. fn runs on the goroutine that changed
// the state and must not call Submit, Reset or Seed.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// notify delivers the current state to every subscriber.
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.subMu.Lock()
	if len(c.subscribers) == 0 {
		c.subMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), len(c.subscribers))
	for i, s := range c.subscribers {
		fns[i] = s.fn
	}
	c.subMu.Unlock()

	snap := c.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
