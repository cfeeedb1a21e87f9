// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
)

// =============================================================================
// PARSER CONSTANTS
// =============================================================================

const (
	// FramePrefix starts every event frame.
	FramePrefix = "data:"

	// DoneSentinel is the payload that terminates a stream.
	DoneSentinel = "[DONE]"

	// MaxFrameSize bounds a single frame. Longer frames are discarded.
	MaxFrameSize = 1024 * 1024

	readBufferSize = 16 * 1024
)

// ErrNoBody is returned when there is no byte stream to parse.
var ErrNoBody = errors.New("stream: no response body")

// =============================================================================
// PARSE
// =============================================================================

// Parse returns a lazy sequence of the events carried by r.
//
// The sequence reads from r only while the consumer keeps pulling and ends at
// the "[DONE]" sentinel, at EOF, or after yielding a read error. It is not
// restartable: a new stream needs a new call. Closing r is the caller's job.
func Parse(r io.Reader) (iter.Seq2[Event, error], error) {
	if r == nil {
		return nil, ErrNoBody
	}

	return func(yield func(Event, error) bool) {
		br := bufio.NewReaderSize(r, readBufferSize)
		for {
			line, oversized, err := readLine(br)
			if err != nil && !errors.Is(err, io.EOF) {
				// A partial line before a transport failure is dropped.
				yield(nil, err)
				return
			}

			if !oversized {
				ev, result := decodeFrame(line)
				switch result {
				case frameDone:
					return
				case frameEvent:
					if !yield(ev, nil) {
						return
					}
				}
			}

			if err != nil {
				// EOF: the fragment just handled was the flush.
				return
			}
		}
	}, nil
}

// readLine reads through the next '\n' (or EOF). Lines longer than
// MaxFrameSize, not counting the newline, are consumed but reported as
// oversized with no content.
func readLine(br *bufio.Reader) (line []byte, oversized bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized {
			size := len(line) + len(chunk)
			if err == nil {
				size-- // the '\n' is not part of the frame
			}
			if size > MaxFrameSize {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, oversized, err
	}
}

// =============================================================================
// FRAME DECODING
// =============================================================================

type frameResult int

const (
	frameSkip frameResult = iota
	frameEvent
	frameDone
)

// decodeFrame classifies one line of the stream.
func decodeFrame(line []byte) (Event, frameResult) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, frameSkip
	}

	payload, ok := bytes.CutPrefix(trimmed, []byte(FramePrefix))
	if !ok {
		return nil, frameSkip
	}
	payload = bytes.TrimPrefix(payload, []byte(" "))

	if string(bytes.TrimSpace(payload)) == DoneSentinel {
		return nil, frameDone
	}

	ev, err := decodeEvent(payload)
	if err != nil {
		return nil, frameSkip
	}
	return ev, frameEvent
}

// =============================================================================
// FRAME ENCODING
// =============================================================================

// AppendFrame appends ev as a complete frame ("data: <json>\n\n") to dst.
func AppendFrame(dst []byte, ev Event) ([]byte, error) {
	payload, err := Marshal(ev)
	if err != nil {
		return dst, err
	}
	dst = append(dst, FramePrefix...)
	dst = append(dst, ' ')
	dst = append(dst, payload...)
	return append(dst, '\n', '\n'), nil
}
