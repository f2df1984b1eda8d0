// Package aggregate counts YouTube video identifiers across the JSONL output
// of the live listener.
//
// Identifiers come from the strict extractor (matcher.ExtractVideoIDs), run
// over every youtube_urls entry and over the post text. A link present in
// both places is therefore counted twice. A file is only reported once it
// has been read to the end without a parse error; there are no partial
// tallies.
package aggregate

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/matcher"
)

// ParseError reports the line of the input that is not a valid record
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Entry is the count for one video identifier
type Entry struct {
	VideoID string `json:"video_id"`
	Count   int    `json:"count"`
}

// Report is the result of a tally. Entries are sorted by video identifier.
type Report struct {
	Entries []Entry `json:"entries"`
	Lines   int     `json:"lines"`
}

// Unique returns the number of distinct identifiers
func (r *Report) Unique() int {
	return len(r.Entries)
}

// Total returns the number of identifier occurrences
func (r *Report) Total() int {
	total := 0
	for _, e := range r.Entries {
		total += e.Count
	}
	return total
}

// Top returns the n most frequent entries, ties broken by identifier.
// n <= 0 or n beyond the number of entries returns all of them in that order.
func (r *Report) Top(n int) []Entry {
	out := make([]Entry, len(r.Entries))
	copy(out, r.Entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].VideoID < out[j].VideoID
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Counts returns the tally as a map keyed by identifier
func (r *Report) Counts() map[string]int {
	m := make(map[string]int, len(r.Entries))
	for _, e := range r.Entries {
		m[e.VideoID] = e.Count
	}
	return m
}

// line holds the fields of a persisted record the tally reads
type line struct {
	Text        string   `json:"text"`
	YouTubeURLs []string `json:"youtube_urls"`
}

// Tally reads JSONL records from r and counts the video identifiers they
// reference. Blank lines are skipped. A line that does not decode aborts
// the tally with a *ParseError.
func Tally(r io.Reader) (*Report, error) {
	counts := make(map[string]int)
	reader := bufio.NewReader(r)
	report := &Report{}

	for lineNo := 1; ; lineNo++ {
		raw, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(raw)) > 0 {
			var rec line
			if uerr := json.Unmarshal(raw, &rec); uerr != nil {
				return nil, errors.WrapInvalid(&ParseError{Line: lineNo, Err: uerr},
					"aggregate", "Tally", "decode record")
			}
			report.Lines++

			for _, u := range rec.YouTubeURLs {
				for _, id := range matcher.ExtractVideoIDs(u) {
					counts[id]++
				}
			}
			for _, id := range matcher.ExtractVideoIDs(rec.Text) {
				counts[id]++
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapTransient(err, "aggregate", "Tally", "read input")
		}
	}

	report.Entries = make([]Entry, 0, len(counts))
	for id, n := range counts {
		report.Entries = append(report.Entries, Entry{VideoID: id, Count: n})
	}
	sort.Slice(report.Entries, func(i, j int) bool {
		return report.Entries[i].VideoID < report.Entries[j].VideoID
	})
	return report, nil
}

// TallyFile runs Tally over the file at path. A missing file yields an
// error matching errors.ErrFileNotFound.
func TallyFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrFileNotFound, path),
				"aggregate", "TallyFile", "open input")
		}
		return nil, errors.WrapFatal(err, "aggregate", "TallyFile", "open input")
	}
	defer f.Close()

	return Tally(f)
}

// AsParseError extracts the *ParseError from err, if any
func AsParseError(err error) (*ParseError, bool) {
	var perr *ParseError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
