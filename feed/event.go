package feed

import (
	"encoding/json"
	"fmt"

	"github.com/c360/tubewatch/errors"
)

// Event kinds and commit operations as sent by Jetstream.
const (
	KindCommit   = "commit"
	KindIdentity = "identity"
	KindAccount  = "account"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// PostCollection is the collection holding Bluesky posts
const PostCollection = "app.bsky.feed.post"

// Event is a decoded Jetstream message
type Event struct {
	DID    string  `json:"did"`
	TimeUS int64   `json:"time_us"`
	Kind   string  `json:"kind"`
	Commit *Commit `json:"commit,omitempty"`
}

// Commit describes a repository write
type Commit struct {
	Rev        string  `json:"rev"`
	Operation  string  `json:"operation"`
	Collection string  `json:"collection"`
	RKey       string  `json:"rkey"`
	CID        string  `json:"cid"`
	Record     *Record `json:"record,omitempty"`
}

// Record is the subset of a post record the listener reads. Raw holds the
// record exactly as received.
type Record struct {
	Type      string   `json:"$type"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw record next to the decoded fields
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Record(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Decode parses one Jetstream frame. Malformed frames return an Invalid
// class error wrapping errors.ErrInvalidData.
func Decode(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "feed", "Decode", "unmarshal event")
	}
	return evt, nil
}

// IsPostCreation reports whether the event creates a new post
func (e Event) IsPostCreation() bool {
	return e.Kind == KindCommit &&
		e.Commit != nil &&
		e.Commit.Operation == OperationCreate &&
		e.Commit.Collection == PostCollection
}

// Text returns the post text, or "" when the event carries no record
func (e Event) Text() string {
	if e.Commit == nil || e.Commit.Record == nil {
		return ""
	}
	return e.Commit.Record.Text
}
