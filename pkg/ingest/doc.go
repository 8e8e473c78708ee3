// Package ingest implements the incremental ingestion controller.
//
// A Runner walks the remote YYYY/YYYYMM tree in ascending order, one level
// at a time, mirroring the FTP session's stateful navigation: enter a
// directory, process it, return to the parent. Months whose folder key is
// already in the ledger are skipped entirely, which makes repeated runs
// resumable and at-least-once.
//
// Failure handling is scoped. Only connection and base-path navigation
// failures abort a run; an unreachable year or month, a corrupt archive,
// or a member that decodes under no scheme is logged and skipped, and
// never blocks the ledger commit of its month. The commit point is
// "walked out of the folder", so a crash mid-month reprocesses that
// month's archives on the next run — wasteful but safe.
//
// Everything is single-threaded by design: the session's current working
// directory is shared state, and concurrent traversal would corrupt it.
package ingest
