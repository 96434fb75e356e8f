// Package search provides a simple, deterministic, concurrency-safe in-memory
// index over blog post bodies, used by the blog search endpoint. It is
// intentionally small and dependency-free, but engineered with production-grade
// ergonomics:
//
//   - No logging in the library (callers decide how/what to log)
//   - Clear, documented types and functional options (Option pattern)
//   - Unicode-aware tokenization (Latin words plus individual Han characters,
//     so the zh-TW/zh-CN bodies are searchable without a segmenter)
//   - Immutable, read-only index after construction (safe for concurrent use;
//     writers build a fresh index and swap it atomically)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// paragraph's token set: score = |Q ∩ P| / |Q ∪ P|.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Document is one localized rendering of a blog post handed to the index
// builder. Body is raw Markdown; the builder strips formatting and splits it
// into paragraph-level units.
type Document struct {
	Slug   string
	Locale string
	Title  string
	Body   string
}

// Snippet is a ranked paragraph with provenance and similarity score.
type Snippet struct {
	Slug   string  `json:"slug"`
	Locale string  `json:"locale"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

// Index is the minimal read interface implemented by all search indices.
// Locale narrows results to one site locale; an empty locale searches all.
type Index interface {
	Search(query, locale string, k int) []Snippet
}

// ----------------------------------------------------------------------------
// Options

// Option customizes index construction.
type Option func(*config)

type config struct {
	minParagraphRunes int
	stopwords         map[string]struct{}
	maxSnippets       int
}

func defaultConfig() config {
	return config{
		minParagraphRunes: 20,
		stopwords:         nil,
		maxSnippets:       0,
	}
}

// WithMinParagraphRunes drops paragraphs shorter than n runes from the index.
func WithMinParagraphRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphRunes = n
		}
	}
}

// WithStopwords removes the given words from both documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxSnippets caps the number of indexed paragraphs (0 = unlimited).
func WithMaxSnippets(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSnippets = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type snippetDoc struct {
	slug   string
	locale string
	text   string
	tokens map[string]struct{}
	tLen   int
}

type index struct {
	cfg  config
	docs []snippetDoc
}

// NewIndex builds an immutable Index from the given documents. Bodies are
// stripped of Markdown decoration and split into paragraphs; the title is
// indexed as an extra paragraph so title-only matches still surface the post.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	out := make([]snippetDoc, 0, len(docs)*4)
	count := 0
	add := func(d Document, text string, enforceMin bool) bool {
		t := strings.TrimSpace(text)
		if t == "" {
			return true
		}
		if enforceMin && cfg.minParagraphRunes > 0 && utf8.RuneCountInString(t) < cfg.minParagraphRunes {
			return true
		}
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			return true
		}
		out = append(out, snippetDoc{slug: d.Slug, locale: d.Locale, text: t, tokens: toks, tLen: len(toks)})
		count++
		return cfg.maxSnippets == 0 || count < cfg.maxSnippets
	}

	for _, d := range docs {
		// Titles are short on purpose; skip the paragraph-length floor.
		if !add(d, d.Title, false) {
			break
		}
		more := true
		for _, para := range FlattenMarkdown(d.Body) {
			if !add(d, para, true) {
				more = false
				break
			}
		}
		if !more {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

// Search returns up to k best-matching paragraphs by Jaccard similarity,
// optionally restricted to one locale. At most one snippet per post slug is
// returned so a long post cannot crowd out the result list.
func (i *index) Search(query, locale string, k int) []Snippet {
	if len(i.docs) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = 5
	}
	qTokens := tokenize(query, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		doc      *snippetDoc
		score    float64
		lenRunes int
	}

	buf := make([]scored, 0, 16)
	for idx := range i.docs {
		d := &i.docs[idx]
		if locale != "" && d.locale != locale {
			continue
		}
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		score := float64(over) / union
		buf = append(buf, scored{doc: d, score: score, lenRunes: utf8.RuneCountInString(d.text)})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].doc.text < buf[b].doc.text
	})

	out := make([]Snippet, 0, k)
	seen := make(map[string]struct{}, k)
	for _, s := range buf {
		if _, dup := seen[s.doc.slug]; dup {
			continue
		}
		seen[s.doc.slug] = struct{}{}
		out = append(out, Snippet{Slug: s.doc.slug, Locale: s.doc.locale, Text: s.doc.text, Score: s.score})
		if len(out) >= k {
			break
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// Tokenization

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	out := make(map[string]struct{})

	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		if stop != nil {
			if _, skip := stop[w]; skip {
				return
			}
		}
		out[w] = struct{}{}
	}

	for _, r := range s {
		switch {
		case isHan(r):
			// Chinese has no word separators; single-character tokens keep
			// Jaccard meaningful at blog scale without a segmenter.
			flush()
			out[string(r)] = struct{}{}
		case isWordRune(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	if len(out) == 0 {
		return nil
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '\'' ||
		(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
		(r >= 0x00C0 && r <= 0x024F) // Latin-1 supplement / extended
}

func isHan(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
