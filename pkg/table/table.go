package table

// Table is the in-memory result of decoding one extracted member. Rows all
// have the header's width; rows that failed to parse were dropped, not kept
// partially.
type Table struct {
	// Key identifies the table, "{yearmonth}_{memberName}".
	Key string
	// Scheme names the (delimiter, encoding) pair that decoded the bytes.
	Scheme string
	Header []string
	Rows   [][]string
	// Dropped counts malformed rows skipped during parsing.
	Dropped int
}

// RowCount returns the number of data rows (header excluded).
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnCount returns the header width.
func (t *Table) ColumnCount() int {
	return len(t.Header)
}
