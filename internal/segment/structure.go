// Package segment provides semantic document segmentation: structure
// analysis, strategy selection, overlap injection, coherence scoring,
// and deduplication.
package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// structureInfo summarizes document structure used for strategy selection.
type structureInfo struct {
	// sections holds byte offsets of detected section heading lines,
	// in document order.
	sections []sectionBoundary
	// tables holds byte ranges of detected table blocks.
	tables []tableBlock
	// avgSentenceLen is the estimated average sentence length in bytes,
	// sampled from the head of the document.
	avgSentenceLen int
}

type sectionBoundary struct {
	offset int
	title  string
}

type tableBlock struct {
	start, end int
}

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)
	tableSeparator  = regexp.MustCompile(`^\s*\|?[\s:|-]+\|[\s:|-]*$`)
)

// sampleSize bounds the text prefix used for average-sentence-length estimation.
const sampleSize = 2000

// analyzeStructure detects section headings and table blocks and estimates
// average sentence length.
func analyzeStructure(text string) *structureInfo {
	info := &structureInfo{}
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		if isHeadingLine(trimmed) {
			info.sections = append(info.sections, sectionBoundary{
				offset: offset,
				title:  strings.TrimSpace(strings.TrimLeft(trimmed, "# ")),
			})
		}
		offset += len(line)
	}
	info.tables = detectTables(text)

	sample := text
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	if sentences := splitSentences(sample); len(sentences) > 0 {
		total := 0
		for _, s := range sentences {
			total += len(s.text)
		}
		info.avgSentenceLen = total / len(sentences)
	}
	return info
}

// isHeadingLine reports whether a line looks like a section heading:
// markdown heading, numbered heading, short ALL-CAPS line, or short
// colon-terminated line.
func isHeadingLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) > 120 {
		return false
	}
	if markdownHeading.MatchString(trimmed) {
		return true
	}
	if numberedHeading.MatchString(trimmed) {
		return true
	}
	if isAllCaps(trimmed) {
		return true
	}
	// Colon-terminated short lines ("Background:", "Results:") introduce sections.
	if strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed[:len(trimmed)-1], ":") &&
		len(strings.Fields(trimmed)) <= 8 {
		return true
	}
	return false
}

// isAllCaps reports whether the line consists of uppercase words (at least
// one letter, no lowercase letters).
func isAllCaps(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter && len(line) >= 3
}

// detectTables finds pipe-delimited table blocks: two or more consecutive
// lines containing pipes where one line is a separator row (|---|---|).
// Malformed row/column counts are not validated; the whole block is emitted.
func detectTables(text string) []tableBlock {
	var tables []tableBlock
	offset := 0
	blockStart := -1
	blockHasSeparator := false
	blockRows := 0

	flush := func(end int) {
		if blockStart >= 0 && blockHasSeparator && blockRows >= 2 {
			tables = append(tables, tableBlock{start: blockStart, end: end})
		}
		blockStart = -1
		blockHasSeparator = false
		blockRows = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimRight(line, "\n"))
		isPipeRow := strings.Count(trimmed, "|") >= 2
		if isPipeRow {
			if blockStart < 0 {
				blockStart = offset
			}
			blockRows++
			if tableSeparator.MatchString(trimmed) {
				blockHasSeparator = true
			}
		} else {
			flush(offset)
		}
		offset += len(line)
	}
	flush(offset)
	return tables
}

// sentence is a sentence span within some text.
type sentence struct {
	text  string
	start int
	end   int
}

// splitSentences splits text into sentences at terminal punctuation followed
// by whitespace, and at blank lines. Offsets are relative to text. Returns
// nil when no boundary punctuation exists.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]
		boundary := false
		end := i + 1
		switch c {
		case '.', '!', '?':
			// Consume runs of terminal punctuation (e.g. "?!", "...").
			for end < n && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
				end++
			}
			if end >= n || text[end] == ' ' || text[end] == '\n' || text[end] == '\t' || text[end] == '\r' {
				boundary = true
			}
		case '\n':
			if end < n && text[end] == '\n' {
				boundary = true
			}
		}
		if !boundary {
			continue
		}
		raw := text[start:end]
		if s := strings.TrimSpace(raw); s != "" {
			lead := strings.Index(raw, s)
			out = append(out, sentence{text: s, start: start + lead, end: start + lead + len(s)})
		}
		start = end
		i = end - 1
	}
	if start < n {
		raw := text[start:]
		if s := strings.TrimSpace(raw); s != "" && len(out) > 0 {
			lead := strings.Index(raw, s)
			out = append(out, sentence{text: s, start: start + lead, end: start + lead + len(s)})
		}
	}
	return out
}
