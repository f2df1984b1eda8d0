// Package feed decodes Bluesky Jetstream frames and turns qualifying posts
// into the records tubewatch persists.
//
// # Events
//
// Jetstream delivers one JSON object per websocket frame. Decode maps a frame
// onto Event, keeping only the fields the listener needs. Commit events carry
// an operation (create, update, delete), a collection name and, for creates
// and updates, the record itself.
//
// # Classification
//
// Classify decides whether an event is a post creation in the
// app.bsky.feed.post collection and extracts its text. Everything else
// (updates, deletes, likes, identity and account events) is an "other"
// operation from the listener's point of view.
//
// # Records
//
// NewMatchedRecord builds the line written to youtube_posts.jsonl:
//
//	{"timestamp":"...","did":"did:plc:...","text":"...",
//	 "youtube_urls":["https://youtu.be/..."],"created_at":"...",
//	 "langs":["en"],"bsky_url":"https://bsky.app/profile/did:plc:.../post/3k..."}
//
// created_at and bsky_url are null when they cannot be determined, langs is
// an empty array when the post carries no language tags.
package feed
