// Package search provides a small, deterministic, concurrency-safe in-memory
// index over menu items:
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options
//   - Unicode-aware tokenization; diacritics are folded so "pho" finds "Phở"
//   - Immutable after construction (safe for concurrent use)
//   - Deterministic ordering for ties
//
// Scoring is Jaccard similarity between the query token set Q and a document
// token set D: |Q ∩ D| / |Q ∪ D|. A query token also hits a document token it
// is a prefix of, so partially typed words still match.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is one searchable entry.
type Document struct {
	ID   int64
	Text string
}

// Result is a ranked document id with its similarity score.
type Result struct {
	ID    int64
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords   map[string]struct{}
	maxDocs     int
	minPrefix   int
	defaultTopK int
}

func defaultConfig() config {
	return config{
		minPrefix:   2,
		defaultTopK: 20,
	}
}

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps the number of indexed documents.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithMinPrefix sets the shortest query token allowed to prefix-match.
// Zero disables prefix matching.
func WithMinPrefix(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minPrefix = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     int64
	tokens map[string]struct{}
	runes  int
}

type index struct {
	cfg  config
	docs []doc
}

// New builds an Index from docs. Documents with no tokens are skipped.
func New(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		toks := tokenize(d.Text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{id: d.ID, tokens: toks, runes: utf8.RuneCountInString(d.Text)})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching documents. k <= 0 uses the default cap.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = i.cfg.defaultTopK
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		id    int64
		score float64
		runes int
	}
	buf := make([]scored, 0, len(i.docs))
	for _, d := range i.docs {
		over := i.hits(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		buf = append(buf, scored{id: d.id, score: float64(over) / union, runes: d.runes})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].runes != buf[b].runes {
			return buf[a].runes < buf[b].runes
		}
		return buf[a].id < buf[b].id
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for j := 0; j < k; j++ {
		out[j] = Result{ID: buf[j].id, Score: buf[j].score}
	}
	return out
}

// hits counts query tokens that equal, or prefix, some document token.
func (i *index) hits(q, d map[string]struct{}) int {
	n := 0
	for t := range q {
		if _, ok := d[t]; ok {
			n++
			continue
		}
		if i.cfg.minPrefix == 0 || utf8.RuneCountInString(t) < i.cfg.minPrefix {
			continue
		}
		for dt := range d {
			if strings.HasPrefix(dt, t) {
				n++
				break
			}
		}
	}
	return n
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

// fold lowercases s and strips combining marks. "đ" has no decomposition
// and is mapped explicitly.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.NewReplacer("đ", "d").Replace(out)
}
