// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "go.uber.org/zap"

// Options configures a Controller.
type Options struct {
	// CancelClosesTransport makes Cancel abort the network read in addition
	// to stopping event processing. When false, Cancel only sets the flag:
	// the turn ends at the next event and the body is closed then.
	CancelClosesTransport bool

	// AwaitMessageID keeps reading after the done event until the persisted
	// message id arrives (the service sends it last). Content events after
	// done are ignored either way.
	AwaitMessageID bool

	// Language is sent with every request; empty lets the service decide.
	Language string

	Logger *zap.Logger
}

// DefaultOptions returns the options used by New.
func DefaultOptions() Options {
	return Options{
		CancelClosesTransport: true,
		AwaitMessageID:        true,
		Logger:                zap.NewNop(),
	}
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.Logger = l
	}
}

// WithLanguage sets the answer language sent with each request.
func WithLanguage(lang string) Option {
	return func(o *Options) { o.Language = lang }
}

// WithCancelClosesTransport controls whether Cancel aborts the network read.
func WithCancelClosesTransport(v bool) Option {
	return func(o *Options) { o.CancelClosesTransport = v }
}

// WithAwaitMessageID controls whether the done event ends the turn at once.
func WithAwaitMessageID(v bool) Option {
	return func(o *Options) { o.AwaitMessageID = v }
}
