// Package devmatch implements the device-descriptor matching language used
// by composite-device configurations: POSIX-style "*"/"?" globs plus "{a,b}"
// brace alternation plus "[...]" character classes, applied to strings (names,
// phys paths) and to hex-ish vendor/product ID fields. It is a dedicated
// matcher rather than a delegation to a shell, per spec.md §9's explicit
// design note.
package devmatch

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// MatchString reports whether pattern matches s. Pattern syntax: "*" matches
// any run of characters, "?" matches a single character, "[abc]"/"[a-z]"
// character classes, and "{alt1,alt2,...}" brace alternation where each
// alternative is itself a pattern (alternatives may contain further,
// nested brace groups).
func MatchString(pattern, s string) (bool, error) {
	for _, expanded := range expandBraces(pattern) {
		ok, err := filepath.Match(expanded, s)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// expandBraces expands the first top-level "{a,b,c}" group in pattern into
// one pattern per alternative, recursively expanding any remaining groups.
// A pattern with no brace group expands to itself.
func expandBraces(pattern string) []string {
	start := strings.IndexByte(pattern, '{')
	if start < 0 {
		return []string{pattern}
	}
	depth := 0
	end := -1
	for i := start; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		// unbalanced brace: treat literally
		return []string{pattern}
	}
	prefix := pattern[:start]
	suffix := pattern[end+1:]
	alternatives := splitTopLevel(pattern[start+1 : end])

	var out []string
	for _, alt := range alternatives {
		combined := prefix + alt + suffix
		out = append(out, expandBraces(combined)...)
	}
	if len(out) == 0 {
		return []string{pattern}
	}
	return out
}

// splitTopLevel splits s on commas that are not nested inside another brace
// group, so "{a,{b,c}}"'s inner group survives as a single alternative.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// MatchHex reports whether a hex-ish pattern (e.g. "17ef", "{17ef,2f68}",
// "17*f") matches a 16-bit vendor/product ID. The value is formatted as a
// lowercase 4-digit hex string before matching so glob/brace rules apply
// uniformly to numeric IDs.
func MatchHex(pattern string, value uint16) (bool, error) {
	s := strconv.FormatUint(uint64(value), 16)
	for len(s) < 4 {
		s = "0" + s
	}
	return MatchString(strings.ToLower(pattern), s)
}
