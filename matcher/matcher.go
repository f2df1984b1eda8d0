// Package matcher finds YouTube links in free text.
//
// Two extractors live here and they are deliberately not the same:
// ExtractLinks is the broad, prefix-based scan the live listener uses to
// decide whether a post is worth keeping, and ExtractVideoIDs is the strict
// 11-character identifier parse used by the offline counter.
package matcher

import (
	"regexp"
)

// VideoIDLength is the length of a YouTube video identifier
const VideoIDLength = 11

// LinkPrefixes are the link prefixes ExtractLinks recognises. Matching is
// case-insensitive.
var LinkPrefixes = []string{
	"https://youtube.com",
	"https://www.youtube.com",
	"https://youtu.be",
	"https://www.youtu.be",
}

var (
	// One alternation keeps results in source order across prefix families.
	// RE2's \s is ASCII only and lacks \v, so the trailing class also names
	// \v, the \x1c-\x1f separators, NEL and the Unicode separators.
	linkPattern = regexp.MustCompile(`(?i)https://(?:www\.)?(?:youtube\.com|youtu\.be)[^\s\x{0b}\x{1c}-\x{1f}\x{85}\p{Z}]*`)

	watchIDPattern = regexp.MustCompile(`youtube\.com.*[?&]v=([a-zA-Z0-9_-]{11})`)
	shortIDPattern = regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`)
)

// ExtractLinks returns every YouTube link occurrence in text, in the order
// they appear. Each occurrence runs from a known prefix up to the next
// whitespace character. The token is not validated beyond the prefix.
// The result is empty, never nil, when nothing matches.
func ExtractLinks(text string) []string {
	matches := linkPattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

// ExtractVideoIDs returns the video identifiers referenced in text. It
// recognises the watch form (youtube.com ... ?v=ID or &v=ID) and the short
// form (youtu.be/ID), where ID is exactly 11 characters of [A-Za-z0-9_-].
// Watch-form results come first, then short-form results.
//
// The watch pattern is greedy up to the last v= parameter on a line, so a
// line with several watch URLs yields only the last identifier.
func ExtractVideoIDs(text string) []string {
	ids := []string{}
	for _, m := range watchIDPattern.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	for _, m := range shortIDPattern.FindAllStringSubmatch(text, -1) {
		ids = append(ids, m[1])
	}
	return ids
}
