package ftpwalk

import (
	"sort"
	"strings"

	"cagedfetch/pkg/logger"
)

// ArchiveExt is the archive extension recognized under a month folder.
const ArchiveExt = ".7z"

// Walker lists and filters entries of the session's current remote
// directory. A rejected listing degrades to an empty result so one bad
// directory never aborts the surrounding traversal.
type Walker struct {
	session Session
	logger  logger.Logger
}

// NewWalker creates a walker over an established session.
func NewWalker(session Session, log logger.Logger) *Walker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Walker{session: session, logger: log}
}

// Years lists the 4-digit year directories at the current position,
// optionally restricted to an allow-set, in ascending order.
func (w *Walker) Years(allow []string) []string {
	return FilterYears(w.list("years"), allow)
}

// Months lists the 6-digit month directories belonging to year at the
// current position, in ascending order.
func (w *Walker) Months(year string) []string {
	return FilterMonths(w.list("months"), year)
}

// Archives lists the archive files at the current position.
func (w *Walker) Archives() []string {
	return FilterArchives(w.list("archives"))
}

func (w *Walker) list(what string) []string {
	names, err := w.session.List()
	if err != nil {
		w.logger.WithError(err).WithField("listing", what).Warn("Remote listing failed, skipping directory")
		return nil
	}
	return names
}

// FilterYears keeps entries that are exactly 4 decimal digits and, when
// allow is non-empty, members of the allow-set. Result is sorted ascending.
func FilterYears(entries, allow []string) []string {
	allowed := make(map[string]bool, len(allow))
	for _, a := range allow {
		allowed[a] = true
	}

	var years []string
	for _, e := range entries {
		if len(e) != 4 || !isDigits(e) {
			continue
		}
		if len(allowed) > 0 && !allowed[e] {
			continue
		}
		years = append(years, e)
	}
	sort.Strings(years)
	return years
}

// FilterMonths keeps entries that are exactly 6 decimal digits whose first
// four characters equal year. Result is sorted ascending.
func FilterMonths(entries []string, year string) []string {
	var months []string
	for _, e := range entries {
		if len(e) != 6 || !isDigits(e) {
			continue
		}
		if !strings.HasPrefix(e, year) {
			continue
		}
		months = append(months, e)
	}
	sort.Strings(months)
	return months
}

// FilterArchives keeps entries ending in the archive extension,
// case-insensitively. Result is sorted ascending.
func FilterArchives(entries []string) []string {
	var archives []string
	for _, e := range entries {
		if strings.HasSuffix(strings.ToLower(e), ArchiveExt) {
			archives = append(archives, e)
		}
	}
	sort.Strings(archives)
	return archives
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
