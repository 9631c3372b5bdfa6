// Package tags cleans up user-entered tag lists.
package tags

import (
	"regexp"
	"strings"
)

// hashtagPattern matches #word tokens in free text (e.g., #urgent, #q3-plan).
var hashtagPattern = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_-]+)`)

// Normalize trims every tag, drops empties and duplicates, and keeps the
// order of first occurrence. A nil result means no tags.
func Normalize(in []string) []string {
	seen := make(map[string]bool, len(in))
	var result []string
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

// Split parses a comma-separated tag field as typed in a form.
func Split(s string) []string {
	return Normalize(strings.Split(s, ","))
}

// Join renders tags back into the comma-separated form field.
func Join(tags []string) string {
	return strings.Join(tags, ", ")
}

// Extract returns the #hashtags found in text, deduplicated.
func Extract(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	found := make([]string, 0, len(matches))
	for _, m := range matches {
		found = append(found, m[1])
	}
	return Normalize(found)
}

// Merge appends extra to base, keeping base order and dropping repeats.
func Merge(base, extra []string) []string {
	return Normalize(append(append([]string(nil), base...), extra...))
}
