package feed

import "fmt"

// PermalinkBase is the web front end used for post permalinks
const PermalinkBase = "https://bsky.app/profile"

// Classification is the outcome of looking at one event
type Classification struct {
	// Qualifying is true for post creations in PostCollection
	Qualifying bool
	// Text is the post text; empty when absent or not qualifying
	Text string
}

// Classify decides whether evt is a post creation and extracts its text
func Classify(evt Event) Classification {
	if !evt.IsPostCreation() {
		return Classification{}
	}
	return Classification{Qualifying: true, Text: evt.Text()}
}

// Permalink derives the bsky.app URL of a post. handleOrDID overrides the
// author segment and falls back to evt.DID when empty. ok is false when the
// event is not a post creation or the author or record key is missing.
func Permalink(evt Event, handleOrDID string) (string, bool) {
	if !evt.IsPostCreation() {
		return "", false
	}
	author := handleOrDID
	if author == "" {
		author = evt.DID
	}
	rkey := evt.Commit.RKey
	if author == "" || rkey == "" {
		return "", false
	}
	return fmt.Sprintf("%s/%s/post/%s", PermalinkBase, author, rkey), true
}
