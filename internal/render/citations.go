// Package render post-processes generated text before it reaches the
// client: raw citation markers become stable footnote references, and raw
// code-interpreter output is wrapped in fenced blocks. All transforms are
// pure functions; the only state (ordinal assignment) lives in an explicit
// map scoped to one call.
package render

import (
	"fmt"
	"regexp"
	"strings"
)

// citationPattern matches raw provider citation markers of the form
// 【doc:chunk†title】, e.g. 【4:0†MMC_P7_Safety.md】.
var citationPattern = regexp.MustCompile(`【(\d+):(\d+)†([^】]*)】`)

// dataURIPattern matches inline base64 payloads. Marker rewriting skips
// these regions entirely: base64 runs can coincidentally contain byte
// sequences the citation pattern would mangle.
var dataURIPattern = regexp.MustCompile(`data:[a-zA-Z0-9.+-]+/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)

var doubleSpacePattern = regexp.MustCompile(`  +`)

// Source is one entry of a response's sources list.
type Source struct {
	Ordinal int
	Title   string
}

// Citations rewrites every citation marker in text into a compact [n]
// footnote reference and returns the de-duplicated sources list. Ordinals
// are assigned in first-seen order starting at 1 and are scoped to this
// call: a marker for an already-seen source reuses its ordinal. Markers
// with an empty title are removed. Appending a human-readable sources
// section is the caller's job (see SourcesSection) so partial mid-stream
// text is never given a misleading one.
func Citations(text string) (string, []Source) {
	if !strings.Contains(text, "【") {
		return text, nil
	}

	ordinals := make(map[string]int)
	var sources []Source

	var out strings.Builder
	last := 0
	// Walk data-URI regions; rewrite only the text between them.
	for _, loc := range dataURIPattern.FindAllStringIndex(text, -1) {
		out.WriteString(rewriteMarkers(text[last:loc[0]], ordinals, &sources))
		out.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	out.WriteString(rewriteMarkers(text[last:], ordinals, &sources))

	return out.String(), sources
}

func rewriteMarkers(segment string, ordinals map[string]int, sources *[]Source) string {
	if !strings.Contains(segment, "【") {
		return segment
	}
	replaced := citationPattern.ReplaceAllStringFunc(segment, func(marker string) string {
		m := citationPattern.FindStringSubmatch(marker)
		title := strings.TrimSpace(m[3])
		if title == "" {
			return ""
		}
		ord, ok := ordinals[title]
		if !ok {
			ord = len(*sources) + 1
			ordinals[title] = ord
			*sources = append(*sources, Source{Ordinal: ord, Title: title})
		}
		return fmt.Sprintf("[%d]", ord)
	})
	// Removing empty-title markers can leave doubled spaces behind.
	return doubleSpacePattern.ReplaceAllString(replaced, " ")
}

// SourcesSection renders the sources list as a markdown appendix. Returns
// the empty string for an empty list.
func SourcesSection(sources []Source) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n---\n\n**Sources:**\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "\n[%d] *%s*", s.Ordinal, displayName(s.Title))
	}
	return b.String()
}

// displayName cleans a source title for display: underscores become
// spaces and a trailing .md extension is dropped.
func displayName(title string) string {
	name := strings.TrimSuffix(title, ".md")
	return strings.ReplaceAll(name, "_", " ")
}
