package ingest

import (
	"cagedfetch/pkg/table"
)

// Result accumulates what one ingestion pass produced.
type Result struct {
	// Tables holds every table decoded during this run, keyed
	// "{yearmonth}_{memberName}". Months skipped via the ledger are absent.
	Tables map[string]*table.Table

	YearsVisited    int
	MonthsProcessed int
	MonthsSkipped   int
	ArchivesFetched int
	ArchivesFailed  int
	MembersDecoded  int
	MembersFailed   int
	FilesSaved      int
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{Tables: make(map[string]*table.Table)}
}

// Fields renders the counters as structured log fields.
func (r *Result) Fields() map[string]interface{} {
	return map[string]interface{}{
		"years_visited":    r.YearsVisited,
		"months_processed": r.MonthsProcessed,
		"months_skipped":   r.MonthsSkipped,
		"archives_fetched": r.ArchivesFetched,
		"archives_failed":  r.ArchivesFailed,
		"members_decoded":  r.MembersDecoded,
		"members_failed":   r.MembersFailed,
		"files_saved":      r.FilesSaved,
		"tables":           len(r.Tables),
	}
}
