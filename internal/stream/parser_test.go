// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sermonchat/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// chunkReader returns one chunk per Read call, then err (io.EOF if nil).
type chunkReader struct {
	chunks []string
	err    error
	reads  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	r.reads++
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// collect drains the sequence, returning events and the first error.
func collect(t *testing.T, r io.Reader) ([]Event, error) {
	t.Helper()
	events, err := Parse(r)
	require.NoError(t, err)

	var got []Event
	for ev, err := range events {
		if err != nil {
			return got, err
		}
		got = append(got, ev)
	}
	return got, nil
}

const sampleStream = `data: {"type":"conversation","conversation_id":12}

data: {"type":"token","content":"Kasih "}

data: {"type":"token","content":"karunia ✝ ünïcode"}

data: {"type":"citations","data":[{"source_id":3,"title":"Roma 8","speaker":"Pdt. S","source_type":"pdf","relevance_score":0.91,"excerpt":"...","page_or_timestamp":"4"}]}

data: {"type":"telemetry","data":{"generation_time_ms":120,"context_chunk_count":5}}

data: {"type":"done"}

data: {"type":"message_id","id":99}

`

func sampleEvents() []Event {
	return []Event{
		ConversationEvent{ConversationID: 12},
		TokenEvent{Content: "Kasih "},
		TokenEvent{Content: "karunia ✝ ünïcode"},
		CitationsEvent{Citations: []model.SourceCitation{{
			SourceID: 3, Title: "Roma 8", Speaker: "Pdt. S", SourceType: "pdf",
			RelevanceScore: 0.91, Excerpt: "...", PageOrTimestamp: "4",
		}}},
		DoneEvent{},
		MessageIDEvent{MessageID: 99},
	}
}

// =============================================================================
// CHUNK BOUNDARY TESTS
// =============================================================================

func TestParse_WholePayload(t *testing.T) {
	got, err := collect(t, strings.NewReader(sampleStream))
	require.NoError(t, err)
	if diff := cmp.Diff(sampleEvents(), got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_OneBytePerRead(t *testing.T) {
	got, err := collect(t, iotest.OneByteReader(strings.NewReader(sampleStream)))
	require.NoError(t, err)
	if diff := cmp.Diff(sampleEvents(), got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RandomChunkBoundaries(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var chunks []string
		rest := sampleStream
		for len(rest) > 0 {
			n := 1 + rng.Intn(40)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		got, err := collect(t, &chunkReader{chunks: chunks})
		require.NoError(t, err)
		if diff := cmp.Diff(sampleEvents(), got); diff != "" {
			t.Fatalf("split %d: events mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestParse_FrameSplitMidPayload(t *testing.T) {
	r := &chunkReader{chunks: []string{
		`data: {"type":"tok`,
		`en","content":"Hi"}` + "\n" + `data: {"type":"token",`,
		`"content":" there"}` + "\n",
	}}
	got, err := collect(t, r)
	require.NoError(t, err)
	want := []Event{TokenEvent{Content: "Hi"}, TokenEvent{Content: " there"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// TERMINATION TESTS
// =============================================================================

func TestParse_SentinelStopsReading(t *testing.T) {
	r := &chunkReader{
		chunks: []string{
			"data: {\"type\":\"token\",\"content\":\"a\"}\n",
			"data: [DONE]\n",
			"data: {\"type\":\"token\",\"content\":\"never\"}\n",
		},
	}
	got, err := collect(t, r)
	require.NoError(t, err)
	assert.Equal(t, []Event{TokenEvent{Content: "a"}}, got)
	assert.Equal(t, 2, r.reads, "parser read past the sentinel")
}

func TestParse_SentinelInSameChunkAsMoreFrames(t *testing.T) {
	payload := "data: [DONE]\ndata: {\"type\":\"token\",\"content\":\"x\"}\n"
	got, err := collect(t, strings.NewReader(payload))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParse_FlushesTrailingFragment(t *testing.T) {
	payload := "data: {\"type\":\"token\",\"content\":\"a\"}\n" +
		"data: {\"type\":\"token\",\"content\":\"b\"}"
	got, err := collect(t, strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, []Event{TokenEvent{Content: "a"}, TokenEvent{Content: "b"}}, got)
}

func TestParse_TrailingSentinelFragment(t *testing.T) {
	got, err := collect(t, strings.NewReader("data: {\"type\":\"done\"}\ndata: [DONE]"))
	require.NoError(t, err)
	assert.Equal(t, []Event{DoneEvent{}}, got)
}

func TestParse_ConsumerBreakStopsReading(t *testing.T) {
	r := &chunkReader{chunks: []string{
		"data: {\"type\":\"token\",\"content\":\"a\"}\n",
		"data: {\"type\":\"token\",\"content\":\"b\"}\n",
	}}
	events, err := Parse(r)
	require.NoError(t, err)
	for range events {
		break
	}
	assert.Equal(t, 1, r.reads)
}

// =============================================================================
// SKIP TESTS
// =============================================================================

func TestParse_SkipsBadFrames(t *testing.T) {
	payload := strings.Join([]string{
		"data: {not json",
		"data: {\"type\":\"token\",\"content\":\"ok\"}",
		": comment line",
		"event: token",
		"data: {\"type\":\"mystery\",\"content\":\"?\"}",
		"data: {\"type\":\"token\"}",
		"data: {\"type\":\"conversation\"}",
		"data: {\"type\":\"message_id\",\"id\":\"x\"}",
		"data: {\"type\":\"citations\",\"data\":\"nope\"}",
		"data: null",
		"data: 42",
		"data:",
		"   ",
		"data: {\"type\":\"done\"}",
	}, "\n") + "\n"

	got, err := collect(t, strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, []Event{TokenEvent{Content: "ok"}, DoneEvent{}}, got)
}

func TestParse_PrefixVariants(t *testing.T) {
	payload := "data:{\"type\":\"token\",\"content\":\"tight\"}\r\n" +
		"  data: {\"type\":\"token\",\"content\":\"indented\"}  \r\n" +
		"DATA: {\"type\":\"token\",\"content\":\"upper\"}\n"
	got, err := collect(t, strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, []Event{
		TokenEvent{Content: "tight"},
		TokenEvent{Content: "indented"},
	}, got)
}

func TestParse_NullCitationsBecomeEmpty(t *testing.T) {
	got, err := collect(t, strings.NewReader("data: {\"type\":\"citations\",\"data\":null}\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	c, ok := got[0].(CitationsEvent)
	require.True(t, ok)
	assert.NotNil(t, c.Citations)
	assert.Empty(t, c.Citations)
}

func TestParse_OversizedFrameSkipped(t *testing.T) {
	big := "data: {\"type\":\"token\",\"content\":\"" + strings.Repeat("x", MaxFrameSize) + "\"}\n"
	payload := big + "data: {\"type\":\"token\",\"content\":\"after\"}\n"
	got, err := collect(t, strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, []Event{TokenEvent{Content: "after"}}, got)
}

func TestParse_FrameAtSizeLimit(t *testing.T) {
	const prefix, suffix = "data: {\"type\":\"token\",\"content\":\"", "\"}"
	fill := MaxFrameSize - len(prefix) - len(suffix)

	exact := prefix + strings.Repeat("x", fill) + suffix
	require.Len(t, exact, MaxFrameSize)
	over := prefix + strings.Repeat("y", fill+1) + suffix

	payload := exact + "\n" + over + "\n" + "data: {\"type\":\"done\"}\n"
	got, err := collect(t, strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TokenEvent{Content: strings.Repeat("x", fill)}, got[0])
	assert.Equal(t, DoneEvent{}, got[1])
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestParse_NilReader(t *testing.T) {
	events, err := Parse(nil)
	assert.ErrorIs(t, err, ErrNoBody)
	assert.Nil(t, events)
}

func TestParse_ReadErrorAfterEvents(t *testing.T) {
	boom := errors.New("connection reset")
	r := &chunkReader{
		chunks: []string{"data: {\"type\":\"token\",\"content\":\"partial\"}\ndata: {\"type\":\"tok"},
		err:    boom,
	}
	got, err := collect(t, r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Event{TokenEvent{Content: "partial"}}, got)
}

// =============================================================================
// ENCODING TESTS
// =============================================================================

func TestAppendFrame_ParsesBack(t *testing.T) {
	var buf []byte
	var err error
	for _, ev := range sampleEvents() {
		buf, err = AppendFrame(buf, ev)
		require.NoError(t, err)
	}
	got, err := collect(t, strings.NewReader(string(buf)))
	require.NoError(t, err)
	if diff := cmp.Diff(sampleEvents(), got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_NilCitationsEncodeAsList(t *testing.T) {
	b, err := Marshal(CitationsEvent{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"citations","data":[]}`, string(b))
}
