package search

import (
	"bufio"
	"strings"
)

// FlattenMarkdown reduces a Markdown body to plain-text paragraphs suitable
// for indexing. Table rows are flattened into standalone facts (one fact per
// row, cells joined with spaces); headings, emphasis, links, and code fences
// are stripped down to their text.
//
// Notes:
//   - Separator rows ("|---|---|") and empty rows are dropped.
//   - Fenced code blocks are skipped entirely.
//   - Consecutive prose lines merge into one paragraph; blank lines split.
func FlattenMarkdown(body string) []string {
	var (
		out     []string
		para    strings.Builder
		inFence bool
	)

	flush := func() {
		p := strings.TrimSpace(para.String())
		para.Reset()
		if p != "" {
			out = append(out, p)
		}
	}

	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			inFence = !inFence
			flush()
			continue
		}
		if inFence {
			continue
		}
		if line == "" {
			flush()
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			flush()
			raw := strings.Trim(line, "|")
			cols := strings.Split(raw, "|")

			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := stripInline(strings.TrimSpace(c))
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				tmp := strings.ReplaceAll(cell, ":", "")
				tmp = strings.ReplaceAll(tmp, "-", "")
				if strings.TrimSpace(tmp) != "" {
					allSep = false
				}
			}
			if allSep || len(cleaned) == 0 {
				continue
			}
			out = append(out, strings.Join(cleaned, " "))
			continue
		}

		// headings become their own paragraph
		if strings.HasPrefix(line, "#") {
			flush()
			h := stripInline(strings.TrimLeft(line, "# "))
			if h != "" {
				out = append(out, h)
			}
			continue
		}

		// list markers and blockquotes fold into the running paragraph
		line = strings.TrimPrefix(line, "> ")
		for _, m := range []string{"- ", "* ", "+ "} {
			line = strings.TrimPrefix(line, m)
		}

		if para.Len() > 0 {
			para.WriteByte(' ')
		}
		para.WriteString(stripInline(line))
	}
	flush()
	return out
}

// stripInline removes inline Markdown decoration, keeping the visible text.
func stripInline(s string) string {
	// [text](url) → text
	for {
		open := strings.Index(s, "[")
		if open < 0 {
			break
		}
		close := strings.Index(s[open:], "](")
		if close < 0 {
			break
		}
		end := strings.Index(s[open+close:], ")")
		if end < 0 {
			break
		}
		s = s[:open] + s[open+1:open+close] + s[open+close+end+1:]
	}
	replacer := strings.NewReplacer("**", "", "__", "", "`", "", "*", "", "_", " ")
	return strings.TrimSpace(replacer.Replace(s))
}
