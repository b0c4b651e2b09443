package domain

import (
	"strings"
	"unicode/utf8"
)

// ChunkProfile controls the target size and overlap of produced chunks.
type ChunkProfile struct {
	MaxChunkSize int // characters
	Overlap      int // characters carried from the previous chunk
}

var (
	// ProseProfile suits narrative disclosure text.
	ProseProfile = ChunkProfile{MaxChunkSize: 1000, Overlap: 200}
	// TabularProfile suits table-heavy extractions, where splitting a table
	// mid-row destroys the data. Larger chunks keep rows with their headers.
	TabularProfile = ChunkProfile{MaxChunkSize: 2000, Overlap: 300}
)

// ProfileForContent picks the chunking profile from the declared source type.
// An unknown or empty content type falls back to inspecting the text shape,
// which catches pipe- and tab-delimited tables but not plain CSV.
func ProfileForContent(contentType, text string) ChunkProfile {
	if isTabularContentType(contentType) {
		return TabularProfile
	}
	return ProfileForText(text)
}

func isTabularContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return false
	}
	for _, marker := range []string{"csv", "tab-separated", "tsv", "spreadsheet", "ms-excel"} {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	return false
}

// ProfileForText picks the chunking profile by inspecting the text shape.
func ProfileForText(text string) ChunkProfile {
	if isTabular(text) {
		return TabularProfile
	}
	return ProseProfile
}

// isTabular reports whether a meaningful share of lines look like table rows.
func isTabular(text string) bool {
	tableLike := 0
	nonEmpty := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if strings.Count(trimmed, "|") >= 2 || strings.Count(trimmed, "\t") >= 2 {
			tableLike++
		}
	}
	return nonEmpty > 0 && tableLike*4 >= nonEmpty
}

// ChunkText splits extracted document text into overlapping chunks.
//
// Paragraphs (blank-line separated) are packed greedily up to the size limit.
// A paragraph that alone exceeds the limit is split at sentence boundaries.
// Each chunk after the first starts with the tail of its predecessor so that
// statements spanning a boundary stay retrievable.
func ChunkText(text string, profile ChunkProfile) []string {
	normalized := normalizeText(text)
	if strings.TrimSpace(normalized) == "" {
		return nil
	}

	var units []string
	for _, para := range strings.Split(normalized, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > profile.MaxChunkSize {
			units = append(units, splitOversized(para, profile.MaxChunkSize)...)
		} else {
			units = append(units, para)
		}
	}
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	for _, unit := range units {
		if current.Len() > 0 && current.Len()+2+len(unit) > profile.MaxChunkSize {
			chunk := current.String()
			chunks = append(chunks, chunk)
			current.Reset()
			if tail := overlapTail(chunk, profile.Overlap); tail != "" {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(unit)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitOversized breaks a paragraph larger than the limit at sentence
// boundaries, falling back to a hard cut for a single run-on sentence.
func splitOversized(para string, limit int) []string {
	sentences := splitIntoSentences(para)
	var out []string
	var current strings.Builder
	for _, sentence := range sentences {
		if len(sentence) > limit {
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			for len(sentence) > limit {
				cut := TruncateUTF8(sentence, limit)
				if cut == "" {
					break
				}
				out = append(out, cut)
				sentence = sentence[len(cut):]
			}
			if sentence != "" {
				current.WriteString(sentence)
			}
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > limit {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// TruncateUTF8 cuts s to at most limit bytes, backing up so the cut never
// splits a multi-byte rune.
func TruncateUTF8(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// overlapTail returns up to n trailing characters of chunk, trimmed forward to
// the first whitespace so the carry does not begin mid-word.
func overlapTail(chunk string, n int) string {
	if n <= 0 || len(chunk) == 0 {
		return ""
	}
	if len(chunk) <= n {
		return strings.TrimSpace(chunk)
	}
	start := len(chunk) - n
	for start < len(chunk) && !utf8.RuneStart(chunk[start]) {
		start++
	}
	tail := chunk[start:]
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

// splitIntoSentences splits on terminal punctuation, keeping the punctuation
// attached to its sentence.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '。' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
