package search

import (
	"testing"
)

// ---------- Options + defaultConfig ----------
func TestOptionsAndDefaults(t *testing.T) {
	def := defaultConfig()
	if def.minParagraphRunes != 20 || def.stopwords != nil || def.maxSnippets != 0 {
		t.Fatalf("defaultConfig unexpected: %#v", def)
	}

	// Apply options (including no-ops)
	cfg := def
	WithMinParagraphRunes(10)(&cfg)
	if cfg.minParagraphRunes != 10 {
		t.Fatalf("WithMinParagraphRunes failed: %d", cfg.minParagraphRunes)
	}
	WithMinParagraphRunes(-5)(&cfg) // no-op
	if cfg.minParagraphRunes != 10 {
		t.Fatalf("negative minParagraphRunes should be ignored")
	}

	WithStopwords([]string{"  The ", "", "An"})(&cfg)
	if _, ok := cfg.stopwords["the"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'the'): %#v", cfg.stopwords)
	}
	if _, ok := cfg.stopwords["an"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'an'): %#v", cfg.stopwords)
	}

	cfg2 := def
	WithStopwords(nil)(&cfg2) // remains nil (no change because m len==0)
	if cfg2.stopwords != nil {
		t.Fatalf("empty stopwords should remain nil")
	}

	WithMaxSnippets(2)(&cfg)
	if cfg.maxSnippets != 2 {
		t.Fatalf("WithMaxSnippets failed: %d", cfg.maxSnippets)
	}
	WithMaxSnippets(0)(&cfg) // no-op
	if cfg.maxSnippets != 2 {
		t.Fatalf("zero maxSnippets should be ignored")
	}
}

// ---------- tokenize ----------
func TestTokenize_LatinAndHan(t *testing.T) {
	toks := tokenize("Moving averages 移動平均線 explained", nil)
	for _, want := range []string{"moving", "averages", "explained", "移", "動", "平", "均", "線"} {
		if _, ok := toks[want]; !ok {
			t.Fatalf("missing token %q in %#v", want, toks)
		}
	}

	toks = tokenize("the the THE", map[string]struct{}{"the": {}})
	if toks != nil {
		t.Fatalf("all-stopword input should yield nil, got %#v", toks)
	}

	if tokenize("!!! ??? ...", nil) != nil {
		t.Fatalf("punctuation-only input should yield nil")
	}
}

// ---------- NewIndex + Search ----------
func testDocs() []Document {
	return []Document{
		{
			Slug:   "moving-averages",
			Locale: "en",
			Title:  "Understanding Moving Averages",
			Body: "A moving average smooths price action over a fixed window of candles.\n\n" +
				"Traders often combine a fast moving average with a slow one to spot crossovers in trending markets.",
		},
		{
			Slug:   "rsi-basics",
			Locale: "en",
			Title:  "RSI Basics",
			Body: "The relative strength index oscillates between zero and one hundred.\n\n" +
				"Readings above seventy usually signal overbought conditions on the chart.",
		},
		{
			Slug:   "moving-averages",
			Locale: "zh-TW",
			Title:  "認識移動平均線",
			Body:   "移動平均線可以平滑固定視窗內的價格走勢，是最常用的趨勢指標之一。",
		},
	}
}

func TestSearch_RanksRelevantPost(t *testing.T) {
	idx := NewIndex(testDocs())

	got := idx.Search("moving average crossovers", "en", 3)
	if len(got) == 0 {
		t.Fatalf("expected results")
	}
	if got[0].Slug != "moving-averages" {
		t.Fatalf("expected moving-averages first, got %q", got[0].Slug)
	}
	if got[0].Locale != "en" {
		t.Fatalf("locale filter leaked: %q", got[0].Locale)
	}
	if got[0].Score <= 0 || got[0].Score > 1 {
		t.Fatalf("score out of range: %v", got[0].Score)
	}
}

func TestSearch_OneSnippetPerSlug(t *testing.T) {
	idx := NewIndex(testDocs())

	got := idx.Search("moving average", "en", 10)
	seen := map[string]int{}
	for _, s := range got {
		seen[s.Slug]++
	}
	for slug, n := range seen {
		if n > 1 {
			t.Fatalf("slug %q returned %d snippets, want 1", slug, n)
		}
	}
}

func TestSearch_HanQuery(t *testing.T) {
	idx := NewIndex(testDocs())

	got := idx.Search("移動平均線", "zh-TW", 3)
	if len(got) == 0 {
		t.Fatalf("expected zh-TW results for Han query")
	}
	if got[0].Slug != "moving-averages" || got[0].Locale != "zh-TW" {
		t.Fatalf("unexpected top result: %+v", got[0])
	}
}

func TestSearch_EmptyLocaleSearchesAll(t *testing.T) {
	idx := NewIndex(testDocs())

	got := idx.Search("移動平均線", "", 5)
	if len(got) == 0 {
		t.Fatalf("expected results without locale filter")
	}
	if got[0].Locale != "zh-TW" {
		t.Fatalf("Han query should rank the zh-TW body first, got %+v", got[0])
	}
}

func TestSearch_EdgeCases(t *testing.T) {
	idx := NewIndex(testDocs())

	if got := idx.Search("", "en", 3); got != nil {
		t.Fatalf("empty query should return nil, got %#v", got)
	}
	if got := idx.Search("???", "en", 3); got != nil {
		t.Fatalf("untokenizable query should return nil, got %#v", got)
	}
	if got := idx.Search("quantum blockchain llamas", "en", 3); got != nil {
		t.Fatalf("no-overlap query should return nil, got %#v", got)
	}

	empty := NewIndex(nil)
	if got := empty.Search("anything", "", 3); got != nil {
		t.Fatalf("empty index should return nil, got %#v", got)
	}

	// k <= 0 falls back to the default cap instead of panicking.
	if got := idx.Search("moving average", "en", 0); len(got) == 0 {
		t.Fatalf("k=0 should use a default cap")
	}
}

func TestNewIndex_MaxSnippetsCap(t *testing.T) {
	idx := NewIndex(testDocs(), WithMaxSnippets(1)).(*index)
	if len(idx.docs) != 1 {
		t.Fatalf("cap not applied: %d docs", len(idx.docs))
	}
}

func TestNewIndex_MinParagraphFilter(t *testing.T) {
	docs := []Document{{Slug: "s", Locale: "en", Title: "", Body: "tiny\n\nthis paragraph is comfortably long enough to pass the rune floor"}}
	idx := NewIndex(docs, WithMinParagraphRunes(20)).(*index)
	if len(idx.docs) != 1 {
		t.Fatalf("expected 1 surviving paragraph, got %d", len(idx.docs))
	}
}
