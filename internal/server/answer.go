// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/jeranaias/sermonchat/internal/model"
)

// =============================================================================
// ANSWERER
// =============================================================================

// Answer is a complete reply before it is split into token frames.
type Answer struct {
	Text          string
	Citations     []model.SourceCitation
	ContextChunks int
}

// Answerer produces the answer to a question.
type Answerer interface {
	Answer(ctx context.Context, question, language string) (Answer, error)
}

// AnswererFunc adapts a function to Answerer.
type AnswererFunc func(ctx context.Context, question, language string) (Answer, error)

// Answer calls f.
func (f AnswererFunc) Answer(ctx context.Context, question, language string) (Answer, error) {
	return f(ctx, question, language)
}

// Passage is one entry of the answer corpus.
type Passage struct {
	Citation model.SourceCitation
	Keywords []string
	Text     string
}

// NoAnswerID and NoAnswerEN are returned when nothing in the corpus matches.
const (
	NoAnswerID = "Maaf, saya tidak menemukan konten khotbah yang relevan untuk menjawab pertanyaan Anda."
	NoAnswerEN = "Sorry, I could not find any sermon content relevant to your question."
)

// maxCitations caps how many passages ground one answer.
const maxCitations = 3

// CorpusAnswerer answers from a fixed set of passages by keyword overlap.
type CorpusAnswerer struct {
	Passages []Passage
}

// NewCorpusAnswerer returns an answerer over the built-in corpus.
func NewCorpusAnswerer() *CorpusAnswerer {
	return &CorpusAnswerer{Passages: builtinCorpus}
}

// Answer joins the best matching passages. Ties keep corpus order.
func (a *CorpusAnswerer) Answer(ctx context.Context, question, language string) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}

	words := questionWords(question)
	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, p := range a.Passages {
		score := 0
		for _, kw := range p.Keywords {
			if words[kw] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{i, score})
		}
	}
	if len(hits) == 0 {
		text := NoAnswerID
		if language == "en" {
			text = NoAnswerEN
		}
		return Answer{Text: text, Citations: []model.SourceCitation{}}, nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > maxCitations {
		hits = hits[:maxCitations]
	}

	var (
		parts     []string
		citations []model.SourceCitation
	)
	best := hits[0].score
	for _, h := range hits {
		p := a.Passages[h.idx]
		parts = append(parts, p.Text)
		c := p.Citation
		c.RelevanceScore = float64(h.score) / float64(best)
		citations = append(citations, c)
	}
	return Answer{
		Text:          strings.Join(parts, " "),
		Citations:     citations,
		ContextChunks: len(hits),
	}, nil
}

// questionWords returns the lowercased words of q as a set.
func questionWords(q string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	return words
}

// splitTokens breaks text into word-sized deltas whose concatenation is text.
func splitTokens(text string) []string {
	return strings.SplitAfter(text, " ")
}

// =============================================================================
// BUILT-IN CORPUS
// =============================================================================

var builtinCorpus = []Passage{
	{
		Citation: model.SourceCitation{
			SourceID: 1, Title: "Kasih Karunia yang Cukup", Speaker: "Pdt. Samuel Hartono",
			SermonDate: "2021-03-07", SermonNumber: "112", SourceType: model.SourceTypePDF,
			Excerpt: "Kasih karunia adalah pemberian yang tidak layak kita terima.", PageOrTimestamp: "4",
		},
		Keywords: []string{"grace", "kasih", "karunia", "favour", "favor"},
		Text:     "Grace is favour we did not earn; the sermon calls it a gift that is sufficient even in weakness (2 Corinthians 12:9).",
	},
	{
		Citation: model.SourceCitation{
			SourceID: 2, Title: "Pengharapan dalam Roma 8", Speaker: "Pdt. Maria Wijaya",
			SermonDate: "2022-11-13", SermonNumber: "187", SourceType: model.SourceTypeYouTube,
			Excerpt: "Penderitaan zaman sekarang tidak dapat dibandingkan dengan kemuliaan.", PageOrTimestamp: "12:30",
		},
		Keywords: []string{"hope", "pengharapan", "romans", "roma", "suffering", "penderitaan"},
		Text:     "Romans 8 sets present suffering against the glory to come, so hope is waiting with patience rather than wishful thinking.",
	},
	{
		Citation: model.SourceCitation{
			SourceID: 3, Title: "Iman yang Bertumbuh", Speaker: "Pdt. Samuel Hartono",
			SermonDate: "2020-08-02", SermonNumber: "85", SourceType: model.SourceTypePDF,
			Excerpt: "Iman bertumbuh melalui pendengaran akan firman.", PageOrTimestamp: "2",
		},
		Keywords: []string{"faith", "iman", "believe", "percaya", "doubt"},
		Text:     "Faith grows by hearing the word, and doubt is treated as a season to walk through rather than a failure.",
	},
	{
		Citation: model.SourceCitation{
			SourceID: 4, Title: "Doa yang Tekun", Speaker: "Pdt. Daniel Siregar",
			SermonDate: "2023-05-21", SermonNumber: "201", SourceType: model.SourceTypeYouTube,
			Excerpt: "Berdoalah dengan tidak jemu-jemu.", PageOrTimestamp: "05:45",
		},
		Keywords: []string{"prayer", "pray", "doa", "berdoa", "persistent"},
		Text:     "Persistent prayer, as in the parable of the widow in Luke 18, is presented as trust that keeps asking.",
	},
	{
		Citation: model.SourceCitation{
			SourceID: 5, Title: "Mengampuni Seperti Kristus", Speaker: "Pdt. Maria Wijaya",
			SermonDate: "2019-02-17", SermonNumber: "41", SourceType: model.SourceTypePDF,
			Excerpt: "Pengampunan bukan perasaan, melainkan keputusan.", PageOrTimestamp: "7",
		},
		Keywords: []string{"forgive", "forgiveness", "ampun", "mengampuni", "pengampunan", "grace"},
		Text:     "Forgiveness is described as a decision before it is a feeling, modelled on being forgiven first.",
	},
}
