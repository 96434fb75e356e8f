package search

import (
	"reflect"
	"testing"
)

func TestFlattenMarkdown_Paragraphs(t *testing.T) {
	body := "First line of a paragraph\ncontinues on the next line.\n\nSecond paragraph."
	got := FlattenMarkdown(body)
	want := []string{
		"First line of a paragraph continues on the next line.",
		"Second paragraph.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestFlattenMarkdown_TableRows(t *testing.T) {
	body := "| Indicator | Signal |\n|---|---|\n| RSI | Overbought above 70 |\n"
	got := FlattenMarkdown(body)
	want := []string{
		"Indicator Signal",
		"RSI Overbought above 70",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestFlattenMarkdown_SkipsCodeFences(t *testing.T) {
	body := "Before the fence.\n\n```go\nfunc secret() {}\n```\n\nAfter the fence."
	got := FlattenMarkdown(body)
	want := []string{"Before the fence.", "After the fence."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestFlattenMarkdown_HeadingsAndLists(t *testing.T) {
	body := "## Getting Started\n\n- first point\n- second point\n\n> quoted wisdom"
	got := FlattenMarkdown(body)
	want := []string{"Getting Started", "first point second point", "quoted wisdom"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
}

func TestFlattenMarkdown_Empty(t *testing.T) {
	if got := FlattenMarkdown(""); got != nil {
		t.Fatalf("empty body should flatten to nil, got %#v", got)
	}
	if got := FlattenMarkdown("\n\n\n"); got != nil {
		t.Fatalf("blank body should flatten to nil, got %#v", got)
	}
}

func TestStripInline(t *testing.T) {
	cases := map[string]string{
		"**bold** and *italic*":         "bold and italic",
		"see [the docs](https://x.y)":   "see the docs",
		"`code` stays as text":          "code stays as text",
		"snake_case becomes two tokens": "snake case becomes two tokens",
	}
	for in, want := range cases {
		if got := stripInline(in); got != want {
			t.Fatalf("stripInline(%q) = %q, want %q", in, got, want)
		}
	}
}
