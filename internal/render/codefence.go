package render

import (
	"regexp"
	"strings"
)

// Code interpreter output arrives as bare text with no markdown fencing,
// so a chat frontend renders it as a wall of prose. CodeFences detects
// runs of python-looking lines and wraps each run in a fenced block.

var codeLinePatterns = []*regexp.Regexp{
	// Imports, definitions and control flow.
	regexp.MustCompile(`^\s*(import\s+\w|from\s+\w[\w.]*\s+import\s)`),
	regexp.MustCompile(`^\s*(def|class)\s+\w`),
	regexp.MustCompile(`^\s*(return|raise|yield)\b`),
	regexp.MustCompile(`^\s*(if|elif|for|while|with|try|except|finally|else)\b.*:\s*$`),
	// Assignment, excluding == comparisons and markdown tables.
	regexp.MustCompile(`^\s*[A-Za-z_][\w.\[\]'"]*\s*=[^=]`),
	// Common analysis-library prefixes and sandbox paths.
	regexp.MustCompile(`^\s*(plt|df|np|pd|sns|fig|ax)\.`),
	regexp.MustCompile(`/mnt/data/`),
	// A bare call expression on its own line.
	regexp.MustCompile(`^\s*[\w.]+\(.*\)\s*$`),
}

// Prose markers that outrank any code pattern: headings, bullets,
// numbered lists, bold lead-ins, footnote references and images.
var proseLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#{1,6}\s`),
	regexp.MustCompile(`^\s*[-*]\s`),
	regexp.MustCompile(`^\s*\d+\.\s`),
	regexp.MustCompile(`^\s*\*\*[^*]+\*\*`),
	regexp.MustCompile(`^\s*\[\d+\]`),
	regexp.MustCompile(`^\s*!\[`),
}

// CodeFences wraps runs of code-looking lines in ```python fences. Text
// that already contains a fence is returned unchanged: the model fenced
// its own output and a second pass would nest blocks.
func CodeFences(text string) string {
	if strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	var out []string
	var run []string

	flush := func() {
		if len(run) == 0 {
			return
		}
		// Trailing blanks belong between blocks, not inside the fence.
		body := run
		var tail []string
		for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
			tail = append(tail, body[len(body)-1])
			body = body[:len(body)-1]
		}
		// A lone matching line is more likely prose mentioning code.
		if len(nonBlank(body)) < 2 {
			out = append(out, body...)
		} else {
			out = append(out, "```python")
			out = append(out, body...)
			out = append(out, "```")
		}
		out = append(out, tail...)
		run = nil
	}

	for _, line := range lines {
		switch {
		case isCodeLine(line):
			run = append(run, line)
		case strings.TrimSpace(line) == "" && len(run) > 0:
			// Blank lines inside a run stay inside; the run closes on the
			// next prose line instead.
			run = append(run, line)
		default:
			flush()
			out = append(out, line)
		}
	}
	flush()

	return strings.Join(out, "\n")
}

func isCodeLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	for _, p := range proseLinePatterns {
		if p.MatchString(line) {
			return false
		}
	}
	for _, p := range codeLinePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func nonBlank(lines []string) []string {
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	return kept
}
