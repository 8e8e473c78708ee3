package archive

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Extractor opens local 7z archives and exposes their members, either by
// decompressing everything into a scratch directory or by streaming a
// single member into memory.
type Extractor interface {
	// ListMembers returns the member file names inside the archive.
	ListMembers(archivePath string) ([]string, error)
	// ExtractAll decompresses every member into destDir and returns the
	// member names that were written.
	ExtractAll(archivePath, destDir string) ([]string, error)
	// ReadMember returns the byte-exact content of one member.
	ReadMember(archivePath, name string) ([]byte, error)
}

// QualifiesMember reports whether a member is a delimited-text table,
// judged by a case-insensitive .csv/.txt suffix.
func QualifiesMember(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".txt")
}

// DerivedName builds the durable-store filename for a member extracted from
// a given month, "{yearmonth}_{basename}". Members may carry directory
// prefixes inside the archive; only the base name is kept.
func DerivedName(yearMonth, member string) string {
	return fmt.Sprintf("%s_%s", yearMonth, path.Base(filepath.ToSlash(member)))
}
