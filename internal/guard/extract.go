package guard

import (
	"strings"

	"github.com/tidwall/gjson"
)

// maxScans bounds how many times ExtractObject walks the text, which keeps
// it linear in the length of the input.
const maxScans = 16

// ExtractObject returns the first syntactically valid JSON object embedded
// in text.
//
// Every '{' is tried as a start position, left to right. From each start the
// scanner tracks brace depth outside of JSON strings and stops at the
// matching '}'. The first balanced candidate that is a valid JSON object
// wins. Prose braces before the answer, nested objects and trailing
// commentary therefore do not corrupt the extraction.
//
// One walk resolves the closing brace of every '{' it sees outside a string,
// so later starts are usually answered without rescanning. Text that would
// need more than maxScans walks yields no object.
func ExtractObject(text string) (string, bool) {
	closes := make(map[int]int)
	scans := 0
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end, known := closes[start]
		if !known {
			if scans == maxScans {
				break
			}
			scans++
			scanBraces(text, start, closes)
			end = closes[start]
		}
		if end >= 0 {
			candidate := text[start : end+1]
			if gjson.Valid(candidate) && gjson.Parse(candidate).IsObject() {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// scanBraces walks text from the '{' at start to the end. For every '{' seen
// outside a JSON string it records the index of its closing '}' in closes,
// or -1 when it is never closed.
func scanBraces(text string, start int, closes map[int]int) {
	var open []int
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, i)
		case '}':
			if n := len(open); n > 0 {
				closes[open[n-1]] = i
				open = open[:n-1]
			}
		}
	}
	for _, o := range open {
		closes[o] = -1
	}
}
