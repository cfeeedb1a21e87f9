// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"

	"github.com/jeranaias/sermonchat/internal/config"
	"github.com/jeranaias/sermonchat/internal/model"
	"github.com/jeranaias/sermonchat/internal/stream"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// ServiceName is reported by the health endpoint.
	ServiceName = "sermonchat-mock"

	// MaxQuestionLength is the longest accepted question, in characters.
	MaxQuestionLength = 2000

	// MaxTitleLength bounds conversation titles set by rename.
	MaxTitleLength = 500

	// MaxCommentLength bounds feedback comments.
	MaxCommentLength = 2000

	// MaxRequestBodySize bounds JSON request bodies.
	MaxRequestBodySize = 64 * 1024

	shutdownTimeout = 5 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the mock question-answering service.
type Server struct {
	cfg        config.ServerConfig
	engine     *gin.Engine
	store      *Store
	answerer   Answerer
	limiter    *RateLimiter
	logger     *zap.Logger
	tokenDelay time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore replaces the in-memory store.
func WithStore(store *Store) Option {
	return func(s *Server) { s.store = store }
}

// WithAnswerer replaces the corpus answerer.
func WithAnswerer(a Answerer) Option {
	return func(s *Server) { s.answerer = a }
}

// WithTokenDelay overrides the pause between token frames.
func WithTokenDelay(d time.Duration) Option {
	return func(s *Server) { s.tokenDelay = d }
}

// New builds a server from cfg.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		store:      NewStore(),
		answerer:   NewCorpusAnswerer(),
		logger:     zap.NewNop(),
		tokenDelay: time.Duration(cfg.TokenDelayMs) * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	_ = s.engine.SetTrustedProxies(nil)
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// ListenAndServe listens on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("Mock service listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	s.logger.Info("Mock service stopped")
	return err
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.engine.Use(Recovery(s.logger), RequestLogger(s.logger), SecurityHeaders())

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)

	limited := api.Group("", RateLimit(s.limiter))
	limited.POST("/chat/stream", Auth(s.cfg.Token, false, s.logger), s.handleStream)

	authed := limited.Group("", Auth(s.cfg.Token, true, s.logger))
	authed.GET("/conversations", s.handleListConversations)
	authed.GET("/conversations/:id", s.handleGetConversation)
	authed.PATCH("/conversations/:id", s.handleRenameConversation)
	authed.DELETE("/conversations/:id", s.handleDeleteConversation)
	authed.POST("/feedback", s.handleFeedback)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
}

// ============================================================================
// STREAMING
// ============================================================================

// frameWriter sends "data:" frames and remembers the first failure.
type frameWriter struct {
	sess *sse.Session
	err  error
}

func (w *frameWriter) send(payload []byte) bool {
	if w.err != nil {
		return false
	}
	msg := &sse.Message{}
	msg.AppendData(string(payload))
	if err := w.sess.Send(msg); err != nil {
		w.err = err
		return false
	}
	if err := w.sess.Flush(); err != nil {
		w.err = err
		return false
	}
	return true
}

func (w *frameWriter) event(ev stream.Event) bool {
	payload, err := stream.Marshal(ev)
	if err != nil {
		w.err = err
		return false
	}
	return w.send(payload)
}

// telemetryFrame mirrors the service's informational event. Clients skip it.
type telemetryFrame struct {
	Type string `json:"type"`
	Data struct {
		GenerationTimeMs  int64 `json:"generation_time_ms"`
		ContextChunkCount int   `json:"context_chunk_count"`
	} `json:"data"`
}

func (s *Server) handleStream(c *gin.Context) {
	var req stream.Request
	if !s.bindJSON(c, &req) {
		return
	}
	question := strings.TrimSpace(req.Question)
	if n := utf8.RuneCountInString(question); n == 0 || n > MaxQuestionLength {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "question must be 1-2000 characters"})
		return
	}
	if req.Language != "" && req.Language != "id" && req.Language != "en" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "language must be 'id' or 'en'"})
		return
	}

	// Only authenticated callers get a persisted conversation.
	var conv *model.ConversationSummary
	if isAuthenticated(c) {
		summary := s.store.Begin(req.ConversationID, question)
		if _, err := s.store.AddMessage(summary.ID, model.HistoryMessage{
			Role: model.RoleUser, Content: question, Language: req.Language,
		}); err != nil {
			s.logger.Error("Failed to store question", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to store question"})
			return
		}
		conv = &summary
	}

	ctx := c.Request.Context()
	start := time.Now()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	sess, err := sse.Upgrade(c.Writer, c.Request)
	if err != nil {
		s.logger.Error("SSE upgrade failed", zap.Error(err))
		return
	}
	w := &frameWriter{sess: sess}

	if conv != nil {
		w.event(stream.ConversationEvent{ConversationID: conv.ID})
	}

	answer, err := s.answerer.Answer(ctx, question, req.Language)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Answer failed", zap.Error(err))
		w.event(stream.TokenEvent{Content: "\n\n[Backend error: " + err.Error() + "]"})
		w.event(stream.DoneEvent{})
		return
	}

	for _, tok := range splitTokens(answer.Text) {
		if tok == "" {
			continue
		}
		if !s.pause(ctx) {
			s.logger.Debug("Client went away mid-answer")
			return
		}
		if !w.event(stream.TokenEvent{Content: tok}) {
			break
		}
	}

	citations := answer.Citations
	if citations == nil {
		citations = []model.SourceCitation{}
	}
	w.event(stream.CitationsEvent{Citations: citations})

	var tel telemetryFrame
	tel.Type = "telemetry"
	tel.Data.GenerationTimeMs = time.Since(start).Milliseconds()
	tel.Data.ContextChunkCount = answer.ContextChunks
	if payload, err := json.Marshal(tel); err == nil {
		w.send(payload)
	}

	w.event(stream.DoneEvent{})
	if w.err != nil {
		s.logger.Debug("Stream write failed", zap.Error(w.err))
		return
	}

	if conv != nil {
		id, err := s.store.AddMessage(conv.ID, model.HistoryMessage{
			Role:      model.RoleAssistant,
			Content:   answer.Text,
			Citations: answer.Citations,
			Language:  req.Language,
		})
		if err != nil {
			// Deleted while streaming.
			s.logger.Warn("Failed to store answer", zap.Int64("conversation_id", conv.ID), zap.Error(err))
			return
		}
		w.event(stream.MessageIDEvent{MessageID: id})
	}
}

// pause waits between token frames. It returns false if ctx ends first.
func (s *Server) pause(ctx context.Context) bool {
	if s.tokenDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.tokenDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ============================================================================
// HISTORY
// ============================================================================

func (s *Server) handleListConversations(c *gin.Context) {
	skip, err := queryInt(c, "skip", 0)
	if err != nil || skip < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid skip"})
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid limit"})
		return
	}
	c.JSON(http.StatusOK, s.store.List(skip, limit))
}

func (s *Server) handleGetConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := s.store.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleRenameConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if !s.bindJSON(c, &body) {
		return
	}
	title := strings.TrimSpace(body.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > MaxTitleLength {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "title must be 1-500 characters"})
		return
	}
	summary, err := s.store.Rename(id, title)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ============================================================================
// FEEDBACK
// ============================================================================

func (s *Server) handleFeedback(c *gin.Context) {
	var body struct {
		MessageID  int64  `json:"message_id"`
		IsPositive bool   `json:"is_positive"`
		Comment    string `json:"comment"`
	}
	if !s.bindJSON(c, &body) {
		return
	}
	if utf8.RuneCountInString(body.Comment) > MaxCommentLength {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "comment too long"})
		return
	}
	fb, err := s.store.SetFeedback(body.MessageID, body.IsPositive, body.Comment)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Assistant message not found"})
		return
	}
	c.JSON(http.StatusCreated, fb)
}

// ============================================================================
// HELPERS
// ============================================================================

// bindJSON decodes a bounded JSON body, answering 422 on failure.
func (s *Server) bindJSON(c *gin.Context, v any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBodySize)
	if err := c.ShouldBindJSON(v); err != nil {
		s.logger.Debug("Bad request body", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request body"})
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid conversation id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
