// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the HTTP client for the sermon question-answering service.
//
// It opens the answer stream consumed by the session controller and wraps the
// REST endpoints around it: conversation history, feedback and health.
//
// # Key Types
//
//   - Client: transport for one service base URL
//   - StatusError: non-2xx response to the stream request
//   - APIError: non-2xx response to a REST call
//   - FeedbackRequest, Health: REST payloads
//
// # Usage
//
//	client, err := cloud.New("https://qa.example.org",
//	    cloud.WithTokenProvider(auth.Env("SERMONCHAT_TOKEN")),
//	    cloud.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	ctrl := session.New(client)
//	convs, err := client.ListConversations(ctx, 0, 20)
//
// # Errors
//
// Both error types match ErrNotFound for 404 and ErrUnauthorized for 401 and
// 403 through errors.Is. Error bodies are read up to MaxErrorBodySize.
package cloud
