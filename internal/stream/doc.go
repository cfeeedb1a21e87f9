// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the answer stream of the sermon QA service.
//
// The service answers a chat request with a long-lived response body made of
// newline-delimited "data:" frames, each carrying one JSON event. Parse turns
// that body into a lazy sequence of typed events that the session controller
// folds into conversation state.
//
// # Key Types
//
//   - Event: Closed set of server events (conversation, token, citations,
//     message_id, done)
//   - Request: JSON body of a chat stream request
//
// # Framing Rules
//
//   - Frames are split on "\n" and trimmed; blank lines are ignored
//   - A frame must start with "data:"; other lines are ignored
//   - The payload "[DONE]" ends the sequence without reading further
//   - Malformed JSON, unknown event types and events missing their required
//     field are skipped
//   - A frame left without a trailing newline at EOF is still decoded
//
// # Usage
//
//	events, err := stream.Parse(resp.Body)
//	if err != nil {
//	    return err
//	}
//	for ev, err := range events {
//	    if err != nil {
//	        return err // transport failure mid-stream
//	    }
//	    switch e := ev.(type) {
//	    case stream.TokenEvent:
//	        fmt.Print(e.Content)
//	    case stream.DoneEvent:
//	        return nil
//	    }
//	}
package stream
