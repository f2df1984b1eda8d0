// Package storage defines where tubecount keeps its tallies.
//
// The CountStore interface is the only contract. The sqlite subpackage
// provides the implementation used by the tubecount --db flag:
//
//	store, err := sqlite.Open("counts.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	err = store.ReplaceCounts(ctx, report.Entries, time.Now())
//
// A tally is replaced wholesale on each run, so the stored rows always
// mirror the most recent pass over the output file.
package storage
