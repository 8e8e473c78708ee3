package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cagedfetch/pkg/archive"
	"cagedfetch/pkg/config"
	"cagedfetch/pkg/errors"
	"cagedfetch/pkg/ftpwalk"
	"cagedfetch/pkg/ledger"
	"cagedfetch/pkg/logger"
	"cagedfetch/pkg/storage"
	"cagedfetch/pkg/table"
)

// Runner orchestrates one full ingestion pass: walk the remote YYYY/YYYYMM
// tree, download and extract each month's archives, decode the extracted
// tables, and commit each month to the ledger once all of its archives have
// been attempted.
type Runner struct {
	cfg       *config.Config
	session   ftpwalk.Session
	walker    *ftpwalk.Walker
	ledger    *ledger.Ledger
	store     *storage.Store
	decoder   *table.Decoder
	extractor archive.Extractor
	logger    logger.Logger
}

// New creates a Runner over an established session. The ledger and durable
// store are opened from the configuration.
func New(cfg *config.Config, session ftpwalk.Session, log logger.Logger) (*Runner, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	led, err := ledger.Open(cfg.Ledger.File, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	store, err := storage.NewStore(cfg.Output.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable store: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		session:   session,
		walker:    ftpwalk.NewWalker(session, log),
		ledger:    led,
		store:     store,
		decoder:   table.NewDecoder(log),
		extractor: archive.SevenZip{},
		logger:    log,
	}, nil
}

// SetExtractor replaces the archive extractor, so tests can substitute a
// fake for the 7z reader.
func (r *Runner) SetExtractor(e archive.Extractor) {
	r.extractor = e
}

// Ledger exposes the runner's ledger.
func (r *Runner) Ledger() *ledger.Ledger {
	return r.ledger
}

// Store exposes the runner's durable store.
func (r *Runner) Store() *storage.Store {
	return r.store
}

// Run performs one full ingestion pass. Only base-path navigation failures
// abort the run; year, month, archive, and member failures are logged and
// skipped. The returned Result holds every table decoded during this run.
func (r *Runner) Run() (*Result, error) {
	result := NewResult()

	basePath := r.cfg.FTP.BasePath
	if err := r.session.ChangeDir(basePath); err != nil {
		r.logger.WithError(err).WithField("path", basePath).Error("Cannot navigate to base path, aborting")
		return result, err
	}
	r.logger.WithField("path", basePath).Info("Navigated to base path")

	years := r.walker.Years(r.cfg.FTP.Years)
	r.logger.WithField("years", years).Info("Years found")

	for _, year := range years {
		if err := r.session.ChangeDir(year); err != nil {
			r.logger.WithError(err).WithField("year", year).Warn("Cannot enter year directory, skipping")
			continue
		}
		r.logger.WithField("year", year).Info("Entered year directory")
		result.YearsVisited++

		if err := r.processYear(year, result); err != nil {
			return result, err
		}

		// Back to the base path. Losing the working directory here would
		// corrupt every later sibling, so this is fatal.
		if err := r.session.ChangeDirUp(); err != nil {
			r.logger.WithError(err).WithField("year", year).Error("Cannot return to base path, aborting")
			return result, err
		}
	}

	r.logSummary(result)
	return result, nil
}

// processYear walks the months of the year the session currently sits in.
// The returned error is fatal; month-level trouble is skipped internally.
func (r *Runner) processYear(year string, result *Result) error {
	months := r.walker.Months(year)
	r.logger.WithFields(map[string]interface{}{
		"year":   year,
		"months": months,
	}).Info("Months found")

	for _, month := range months {
		key := ledger.Key(year, month)

		if r.ledger.Has(key) {
			r.logger.WithField("folder", key).Info("Folder already processed, skipping")
			result.MonthsSkipped++
			continue
		}

		if err := r.session.ChangeDir(month); err != nil {
			r.logger.WithError(err).WithField("folder", key).Warn("Cannot enter month directory, skipping")
			continue
		}
		r.logger.WithField("folder", key).Info("Processing new folder")

		r.processMonth(month, result)

		if err := r.session.ChangeDirUp(); err != nil {
			r.logger.WithError(err).WithField("folder", key).Error("Cannot return to year directory, aborting")
			return err
		}

		// Commit point: the month is ledgered only after walking out of
		// it, per-member decode failures included.
		if err := r.ledger.Commit(key); err != nil {
			r.logger.WithError(err).WithField("folder", key).Error("Ledger commit failed, folder will be reprocessed next run")
			continue
		}
		result.MonthsProcessed++
	}

	return nil
}

// processMonth fetches and processes every archive of the month the session
// currently sits in. One corrupt archive never blocks its siblings.
func (r *Runner) processMonth(month string, result *Result) {
	archives := r.walker.Archives()
	r.logger.WithFields(map[string]interface{}{
		"month":    month,
		"archives": archives,
	}).Info("Archives found")

	for _, name := range archives {
		if err := r.processArchive(month, name, result); err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"month":   month,
				"archive": name,
			}).Error("Archive failed, skipping")
			result.ArchivesFailed++
		}
	}
}

// processArchive downloads one archive into a scoped local file, extracts
// its members, and persists plus decodes each qualifying one.
func (r *Runner) processArchive(month, name string, result *Result) error {
	localPath := filepath.Join(r.cfg.Output.Directory, name)

	r.logger.WithFields(map[string]interface{}{
		"archive": name,
		"local":   localPath,
	}).Info("Downloading archive")

	if err := r.fetch(name, localPath); err != nil {
		return err
	}
	if !r.cfg.Output.KeepArchives {
		defer os.Remove(localPath)
	}
	result.ArchivesFetched++
	r.logger.WithField("archive", name).Info("Download complete")

	if r.cfg.Extract.InMemory {
		return r.processMembersInMemory(month, name, localPath, result)
	}
	return r.processMembersViaScratch(month, name, localPath, result)
}

// fetch retrieves one remote file into localPath, removing the partial file
// on failure.
func (r *Runner) fetch(name, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return errors.Storage("create", localPath, err)
	}

	retrErr := r.session.Retrieve(name, out)
	closeErr := out.Close()

	if retrErr != nil {
		os.Remove(localPath)
		return retrErr
	}
	if closeErr != nil {
		os.Remove(localPath)
		return errors.Storage("close", localPath, closeErr)
	}
	return nil
}

// processMembersViaScratch extracts the whole archive into a scratch
// directory that is released when the archive is done.
func (r *Runner) processMembersViaScratch(month, name, localPath string, result *Result) error {
	scratch, err := os.MkdirTemp("", "cagedfetch-extract-")
	if err != nil {
		return errors.Storage("mkdir temp", "", err)
	}
	defer os.RemoveAll(scratch)

	members, err := r.extractor.ExtractAll(localPath, scratch)
	if err != nil {
		return err
	}
	r.logger.WithFields(map[string]interface{}{
		"archive": name,
		"members": members,
	}).Info("Archive extracted")

	for _, member := range members {
		if !archive.QualifiesMember(member) {
			continue
		}

		srcPath := filepath.Join(scratch, filepath.FromSlash(member))
		derived := archive.DerivedName(month, member)

		if r.cfg.Output.SaveExtracted {
			if err := r.store.SaveFrom(srcPath, derived); err != nil {
				r.logger.WithError(err).WithField("file", derived).Error("Failed to persist extracted member")
			} else {
				result.FilesSaved++
			}
		}

		r.decodeMemberFile(srcPath, derived, result)
	}

	return nil
}

// processMembersInMemory streams qualifying members straight out of the
// archive, trading peak memory for fewer filesystem writes.
func (r *Runner) processMembersInMemory(month, name, localPath string, result *Result) error {
	members, err := r.extractor.ListMembers(localPath)
	if err != nil {
		return err
	}
	r.logger.WithFields(map[string]interface{}{
		"archive": name,
		"members": members,
	}).Info("Archive opened")

	for _, member := range members {
		if !archive.QualifiesMember(member) {
			continue
		}

		data, err := r.extractor.ReadMember(localPath, member)
		if err != nil {
			r.logger.WithError(err).WithField("member", member).Error("Failed to read archive member")
			result.MembersFailed++
			continue
		}

		derived := archive.DerivedName(month, member)

		if r.cfg.Output.SaveExtracted {
			if err := r.store.Save(bytes.NewReader(data), derived); err != nil {
				r.logger.WithError(err).WithField("file", derived).Error("Failed to persist extracted member")
			} else {
				result.FilesSaved++
			}
		}

		tbl, err := r.decoder.Decode(data, derived)
		if err != nil {
			r.logger.WithError(err).WithField("table", derived).Error("All decode attempts failed, member skipped")
			result.MembersFailed++
			continue
		}
		result.Tables[derived] = tbl
		result.MembersDecoded++
	}

	return nil
}

// decodeMemberFile decodes one extracted file; when every scheme fails the
// member is skipped and the persisted copy is left for manual inspection.
func (r *Runner) decodeMemberFile(path, key string, result *Result) {
	tbl, err := r.decoder.DecodeFile(path, key)
	if err != nil {
		r.logger.WithError(err).WithField("table", key).Error("All decode attempts failed, member skipped")
		result.MembersFailed++
		return
	}
	result.Tables[key] = tbl
	result.MembersDecoded++
}

func (r *Runner) logSummary(result *Result) {
	r.logger.WithFields(result.Fields()).Info("Ingestion pass complete")

	for key, tbl := range result.Tables {
		r.logger.WithFields(map[string]interface{}{
			"table":   key,
			"rows":    tbl.RowCount(),
			"columns": tbl.ColumnCount(),
			"scheme":  tbl.Scheme,
		}).Debug("Table summary")
	}
}
