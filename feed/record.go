package feed

import (
	"bytes"
	"encoding/json"
	"time"
)

// TimestampFormat is the layout of MatchedRecord.Timestamp: local time with
// offset and microsecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// MatchedRecord is one line of the output log. It is built once and never
// modified.
type MatchedRecord struct {
	Timestamp   string   `json:"timestamp"`
	DID         *string  `json:"did"`
	Text        string   `json:"text"`
	YouTubeURLs []string `json:"youtube_urls"`
	CreatedAt   *string  `json:"created_at"`
	Langs       []string `json:"langs"`
	BskyURL     *string  `json:"bsky_url"`
}

// NewMatchedRecord builds the record for a qualifying event whose text
// matched links. now is the capture time.
func NewMatchedRecord(evt Event, links []string, now time.Time) MatchedRecord {
	rec := MatchedRecord{
		Timestamp:   now.Local().Format(TimestampFormat),
		Text:        evt.Text(),
		YouTubeURLs: append([]string{}, links...),
		Langs:       []string{},
	}

	if evt.DID != "" {
		did := evt.DID
		rec.DID = &did
	}

	if evt.Commit != nil && evt.Commit.Record != nil {
		r := evt.Commit.Record
		if r.CreatedAt != "" {
			createdAt := r.CreatedAt
			rec.CreatedAt = &createdAt
		}
		if len(r.Langs) > 0 {
			rec.Langs = append(rec.Langs, r.Langs...)
		}
	}

	if url, ok := Permalink(evt, ""); ok {
		rec.BskyURL = &url
	}

	return rec
}

// Author returns the DID of the post author, "" when the event had none
func (r MatchedRecord) Author() string {
	if r.DID == nil {
		return ""
	}
	return *r.DID
}

// MarshalLine encodes the record as a single JSON line including the
// trailing newline. URLs keep their literal & characters.
func (r MatchedRecord) MarshalLine() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
