// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"os"
	"strings"
)

// =============================================================================
// TOKEN PROVIDER
// =============================================================================

// TokenProvider returns the bearer token for the next request.
// ok is false when no token is available; err is reserved for real failures.
type TokenProvider interface {
	Token(ctx context.Context) (token string, ok bool, err error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, bool, error)

// Token calls f.
func (f TokenProviderFunc) Token(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

// =============================================================================
// SIMPLE PROVIDERS
// =============================================================================

// None never supplies a token.
var None TokenProvider = TokenProviderFunc(func(context.Context) (string, bool, error) {
	return "", false, nil
})

// Static is a fixed token. An empty (or blank) token counts as absent.
type Static string

// Token implements TokenProvider.
func (s Static) Token(context.Context) (string, bool, error) {
	tok := strings.TrimSpace(string(s))
	return tok, tok != "", nil
}

// Env reads the token from an environment variable on every call.
type Env string

// Token implements TokenProvider.
func (e Env) Token(context.Context) (string, bool, error) {
	tok := strings.TrimSpace(os.Getenv(string(e)))
	return tok, tok != "", nil
}

// Chain asks each provider in order and returns the first token found.
// An error from any provider stops the chain.
type Chain []TokenProvider

// Token implements TokenProvider.
func (c Chain) Token(ctx context.Context) (string, bool, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		tok, ok, err := p.Token(ctx)
		if err != nil {
			return "", false, err
		}
		if ok {
			return tok, true, nil
		}
	}
	return "", false, nil
}
