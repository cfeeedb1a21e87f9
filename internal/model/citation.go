// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SOURCE CITATIONS
// =============================================================================

// Source type tags reported by the service.
const (
	SourceTypePDF     = "pdf"
	SourceTypeYouTube = "youtube"
)

// SourceCitation references a passage of the sermon corpus that grounded an
// answer. Citations are received whole and never modified afterwards.
type SourceCitation struct {
	SourceID        int64   `json:"source_id"`
	Title           string  `json:"title"`
	Speaker         string  `json:"speaker,omitempty"`
	SermonDate      string  `json:"sermon_date,omitempty"`
	SermonNumber    string  `json:"sermon_number,omitempty"`
	SourceType      string  `json:"source_type"`
	RelevanceScore  float64 `json:"relevance_score"`
	Excerpt         string  `json:"excerpt"`
	PageOrTimestamp string  `json:"page_or_timestamp,omitempty"`
}

// Label returns a one-line description such as
// "Title (Speaker, 2021-03-07) p. 4".
func (c SourceCitation) Label() string {
	var b strings.Builder
	b.WriteString(c.Title)

	var meta []string
	if c.Speaker != "" {
		meta = append(meta, c.Speaker)
	}
	if c.SermonDate != "" {
		meta = append(meta, c.SermonDate)
	}
	if c.SermonNumber != "" {
		meta = append(meta, "#"+c.SermonNumber)
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(meta, ", "))
	}

	if c.PageOrTimestamp != "" {
		if c.SourceType == SourceTypeYouTube {
			fmt.Fprintf(&b, " @ %s", c.PageOrTimestamp)
		} else {
			fmt.Fprintf(&b, " p. %s", c.PageOrTimestamp)
		}
	}
	return b.String()
}

// CloneCitations copies a citation list. Nil stays nil.
func CloneCitations(in []SourceCitation) []SourceCitation {
	if in == nil {
		return nil
	}
	out := make([]SourceCitation, len(in))
	copy(out, in)
	return out
}

// =============================================================================
// FEEDBACK
// =============================================================================

// Feedback is a thumbs up/down rating previously left on an assistant message.
type Feedback struct {
	ID         int64     `json:"id"`
	IsPositive bool      `json:"is_positive"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Symbol returns a short marker for the rating.
func (f Feedback) Symbol() string {
	if f.IsPositive {
		return "+1"
	}
	return "-1"
}
