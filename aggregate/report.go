package aggregate

import (
	"fmt"
	"io"
)

// WriteReport prints the tally. With top > 0 only the top most frequent
// identifiers are listed; the totals always cover the whole tally.
func WriteReport(w io.Writer, r *Report, top int) error {
	entries := r.Entries
	if top > 0 {
		entries = r.Top(top)
	}

	if _, err := fmt.Fprintln(w, "YouTube Video ID Counts:"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "========================"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s: %d\n", e.VideoID, e.Count); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nTotal unique video IDs: %d\nTotal occurrences: %d\n", r.Unique(), r.Total())
	return err
}
