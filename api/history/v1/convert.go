package historyv1

import (
	"encoding/json"

	"github.com/rzbill/tablehistory/internal/history"
	"github.com/rzbill/tablehistory/internal/tables"
)

// FromEntry converts a stored revision to its wire form.
func FromEntry(e history.Entry) Revision {
	r := Revision{Key: e.Key, Ts: e.Ts, Deleted: e.Deleted, Attribution: string(e.Attribution)}
	if !e.Deleted {
		r.Doc = json.RawMessage(e.Doc)
		if len(r.Doc) == 0 {
			r.Doc = json.RawMessage(`null`)
		}
	}
	return r
}

// FromEntries converts a page of revisions; the result is never nil.
func FromEntries(entries []history.Entry) []Revision {
	out := make([]Revision, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromEntry(e))
	}
	return out
}

// FromPage converts a history page.
func FromPage(p history.Page) *PageResponse {
	return &PageResponse{Entries: FromEntries(p.Entries), ContinueCursor: p.ContinueCursor, IsDone: p.IsDone}
}

// FromVacuumResult converts a compaction result.
func FromVacuumResult(r history.VacuumResult) *VacuumResult {
	return &VacuumResult{StartTs: r.StartTs, Watermark: r.Watermark, Processed: r.Processed, Deleted: r.Deleted, Done: r.Done}
}

// FromTable converts a table record.
func FromTable(m tables.Meta) Table {
	return Table{Name: m.Name, Serializability: string(m.Serializability), CreatedAtMs: m.CreatedAtMs}
}
