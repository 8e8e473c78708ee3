package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cagedfetch/pkg/archive"
	"cagedfetch/pkg/config"
	"cagedfetch/pkg/errors"
	"cagedfetch/pkg/logger"
)

// fakeDir models one remote directory.
type fakeDir struct {
	dirs  map[string]*fakeDir
	files map[string][]byte
}

func newFakeDir() *fakeDir {
	return &fakeDir{
		dirs:  make(map[string]*fakeDir),
		files: make(map[string][]byte),
	}
}

func (d *fakeDir) addDir(name string) *fakeDir {
	child := newFakeDir()
	d.dirs[name] = child
	return child
}

// fakeSession mimics a stateful FTP session over an in-memory tree.
type fakeSession struct {
	root      *fakeDir
	cwd       []*fakeDir
	fetches   map[string]int
	failEnter map[string]bool
	failBase  bool
}

func newFakeSession(root *fakeDir) *fakeSession {
	return &fakeSession{
		root:      root,
		cwd:       []*fakeDir{root},
		fetches:   make(map[string]int),
		failEnter: make(map[string]bool),
	}
}

func (s *fakeSession) ChangeDir(path string) error {
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		if s.failBase || s.failEnter[seg] {
			return errors.Transport("cd", seg, fmt.Errorf("550 permission denied"))
		}
		cur := s.cwd[len(s.cwd)-1]
		child, ok := cur.dirs[seg]
		if !ok {
			return errors.Transport("cd", seg, fmt.Errorf("550 no such directory"))
		}
		s.cwd = append(s.cwd, child)
	}
	return nil
}

func (s *fakeSession) ChangeDirUp() error {
	if len(s.cwd) == 1 {
		return errors.Transport("cd ..", "", fmt.Errorf("already at root"))
	}
	s.cwd = s.cwd[:len(s.cwd)-1]
	return nil
}

func (s *fakeSession) List() ([]string, error) {
	cur := s.cwd[len(s.cwd)-1]
	var names []string
	for name := range cur.dirs {
		names = append(names, name)
	}
	for name := range cur.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *fakeSession) Retrieve(name string, sink io.Writer) error {
	cur := s.cwd[len(s.cwd)-1]
	data, ok := cur.files[name]
	if !ok {
		return errors.Transport("retrieve", name, fmt.Errorf("550 no such file"))
	}
	s.fetches[name]++
	_, err := sink.Write(data)
	return err
}

func (s *fakeSession) Quit() error { return nil }

func (s *fakeSession) totalFetches() int {
	n := 0
	for _, c := range s.fetches {
		n += c
	}
	return n
}

// fakeExtractor serves archive members from memory, keyed by the archive's
// file name.
type fakeExtractor struct {
	members map[string]map[string][]byte
	fail    map[string]bool
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		members: make(map[string]map[string][]byte),
		fail:    make(map[string]bool),
	}
}

func (f *fakeExtractor) add(archiveName, member string, content []byte) {
	if f.members[archiveName] == nil {
		f.members[archiveName] = make(map[string][]byte)
	}
	f.members[archiveName][member] = content
}

func (f *fakeExtractor) names(archiveName string) []string {
	var out []string
	for m := range f.members[archiveName] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (f *fakeExtractor) ListMembers(archivePath string) ([]string, error) {
	name := filepath.Base(archivePath)
	if f.fail[name] {
		return nil, errors.Archive("open", archivePath, fmt.Errorf("corrupt archive"))
	}
	return f.names(name), nil
}

func (f *fakeExtractor) ExtractAll(archivePath, destDir string) ([]string, error) {
	name := filepath.Base(archivePath)
	if f.fail[name] {
		return nil, errors.Archive("open", archivePath, fmt.Errorf("corrupt archive"))
	}
	for member, content := range f.members[name] {
		if err := os.WriteFile(filepath.Join(destDir, member), content, 0644); err != nil {
			return nil, err
		}
	}
	return f.names(name), nil
}

func (f *fakeExtractor) ReadMember(archivePath, member string) ([]byte, error) {
	name := filepath.Base(archivePath)
	if f.fail[name] {
		return nil, errors.Archive("open", archivePath, fmt.Errorf("corrupt archive"))
	}
	data, ok := f.members[name][member]
	if !ok {
		return nil, errors.Archive("read member", member, fmt.Errorf("member not found"))
	}
	return data, nil
}

var _ archive.Extractor = (*fakeExtractor)(nil)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.FTP.Host = "ftp.example.test"
	cfg.FTP.BasePath = "base"
	cfg.Output.Directory = filepath.Join(t.TempDir(), "out")
	cfg.Ledger.File = filepath.Join(t.TempDir(), "ledger.txt")
	return cfg
}

// standardTree builds base/2024/202401/file1.7z plus an empty base/2024/202402.
func standardTree() *fakeDir {
	root := newFakeDir()
	base := root.addDir("base")
	y2024 := base.addDir("2024")
	m1 := y2024.addDir("202401")
	m1.files["file1.7z"] = []byte("7z-bytes")
	y2024.addDir("202402")
	return root
}

func newRunner(t *testing.T, cfg *config.Config, session *fakeSession, ext *fakeExtractor) *Runner {
	t.Helper()
	r, err := New(cfg, session, logger.NewTestLogger())
	require.NoError(t, err)
	r.SetExtractor(ext)
	return r
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	session := newFakeSession(standardTree())
	ext := newFakeExtractor()
	ext.add("file1.7z", "a.csv", []byte("nome;uf\nana;SP\nbruno;RJ\n"))

	r := newRunner(t, cfg, session, ext)
	result, err := r.Run()
	require.NoError(t, err)

	// Both months committed, the empty one included
	assert.Equal(t, []string{"2024/202401", "2024/202402"}, r.Ledger().Keys())
	assert.Equal(t, 2, result.MonthsProcessed)

	// One file in the durable store under the derived name
	assert.Equal(t, []string{"202401_a.csv"}, r.Store().Files())
	assert.Equal(t, 1, result.FilesSaved)

	// One in-memory table with the expected dimensions
	require.Contains(t, result.Tables, "202401_a.csv")
	tbl := result.Tables["202401_a.csv"]
	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, 2, tbl.ColumnCount())

	// The archive was downloaded once and not retained
	assert.Equal(t, 1, session.fetches["file1.7z"])
	_, statErr := os.Stat(filepath.Join(cfg.Output.Directory, "file1.7z"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	session := newFakeSession(standardTree())
	ext := newFakeExtractor()
	ext.add("file1.7z", "a.csv", []byte("nome;uf\nana;SP\n"))

	r := newRunner(t, cfg, session, ext)
	_, err := r.Run()
	require.NoError(t, err)
	fetchesAfterFirst := session.totalFetches()

	// Second run over the same ledger: no new fetches, no new entries
	r2 := newRunner(t, cfg, session, ext)
	result, err := r2.Run()
	require.NoError(t, err)

	assert.Equal(t, fetchesAfterFirst, session.totalFetches())
	assert.Equal(t, 2, result.MonthsSkipped)
	assert.Equal(t, 0, result.MonthsProcessed)
	assert.Empty(t, result.Tables)
	assert.Len(t, r2.Ledger().Keys(), 2)
}

func TestRunContainsArchiveFailure(t *testing.T) {
	root := newFakeDir()
	base := root.addDir("base")
	y := base.addDir("2024")
	m1 := y.addDir("202401")
	m1.files["bad.7z"] = []byte("7z-bytes")
	m1.files["good.7z"] = []byte("7z-bytes")
	m2 := y.addDir("202402")
	m2.files["next.7z"] = []byte("7z-bytes")

	cfg := testConfig(t)
	session := newFakeSession(root)
	ext := newFakeExtractor()
	ext.fail["bad.7z"] = true
	ext.add("good.7z", "b.csv", []byte("a;b\n1;2\n"))
	ext.add("next.7z", "c.csv", []byte("a;b\n3;4\n"))

	r := newRunner(t, cfg, session, ext)
	result, err := r.Run()
	require.NoError(t, err)

	// The corrupt archive is skipped, its month still committed, and the
	// following month untouched by the failure
	assert.Equal(t, []string{"2024/202401", "2024/202402"}, r.Ledger().Keys())
	assert.Equal(t, 1, result.ArchivesFailed)
	assert.Contains(t, result.Tables, "202401_b.csv")
	assert.Contains(t, result.Tables, "202402_c.csv")
}

func TestRunAbortsOnBasePathFailure(t *testing.T) {
	cfg := testConfig(t)
	session := newFakeSession(standardTree())
	session.failBase = true

	r := newRunner(t, cfg, session, newFakeExtractor())
	result, err := r.Run()

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
	assert.Empty(t, result.Tables)
	assert.Equal(t, 0, r.Ledger().Len())
}

func TestRunSkipsUnreachableMonth(t *testing.T) {
	cfg := testConfig(t)
	session := newFakeSession(standardTree())
	session.failEnter["202401"] = true

	ext := newFakeExtractor()
	r := newRunner(t, cfg, session, ext)
	result, err := r.Run()
	require.NoError(t, err)

	// The unreachable month is neither processed nor committed; its
	// sibling still is
	assert.Equal(t, []string{"2024/202402"}, r.Ledger().Keys())
	assert.Equal(t, 1, result.MonthsProcessed)
}

func TestRunSkipsUnreachableYear(t *testing.T) {
	root := standardTree()
	root.dirs["base"].addDir("2025").addDir("202501")

	cfg := testConfig(t)
	session := newFakeSession(root)
	session.failEnter["2024"] = true

	r := newRunner(t, cfg, session, newFakeExtractor())
	result, err := r.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"2025/202501"}, r.Ledger().Keys())
	assert.Equal(t, 1, result.YearsVisited)
}

func TestRunDecodeFailureDoesNotBlockCommit(t *testing.T) {
	cfg := testConfig(t)
	session := newFakeSession(standardTree())
	ext := newFakeExtractor()
	// Single column under every delimiter and invalid UTF-8: every decode
	// scheme fails
	ext.add("file1.7z", "broken.csv", []byte("coluna\xff\nvalor\n"))

	r := newRunner(t, cfg, session, ext)
	result, err := r.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, result.MembersFailed)
	assert.Empty(t, result.Tables)
	assert.True(t, r.Ledger().Has("2024/202401"))

	// The undecodable file stays in the store for manual inspection
	assert.True(t, r.Store().Exists("202401_broken.csv"))
}

func TestRunInMemoryMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extract.InMemory = true
	session := newFakeSession(standardTree())
	ext := newFakeExtractor()
	ext.add("file1.7z", "a.csv", []byte("nome;uf\nana;SP\n"))
	ext.add("file1.7z", "layout.pdf", []byte("%PDF"))

	r := newRunner(t, cfg, session, ext)
	result, err := r.Run()
	require.NoError(t, err)

	require.Contains(t, result.Tables, "202401_a.csv")
	assert.Equal(t, 1, result.MembersDecoded)
	assert.Equal(t, 1, result.FilesSaved)
	// Non-qualifying members are ignored entirely
	assert.False(t, r.Store().Exists("202401_layout.pdf"))
}

func TestRunYearAllowList(t *testing.T) {
	root := standardTree()
	base := root.dirs["base"]
	base.addDir("2023").addDir("202312")

	cfg := testConfig(t)
	cfg.FTP.Years = []string{"2024"}
	session := newFakeSession(root)
	ext := newFakeExtractor()
	ext.add("file1.7z", "a.csv", []byte("a;b\n1;2\n"))

	r := newRunner(t, cfg, session, ext)
	_, err := r.Run()
	require.NoError(t, err)

	assert.False(t, r.Ledger().Has("2023/202312"))
	assert.True(t, r.Ledger().Has("2024/202401"))
}

func TestRunKeepArchives(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.KeepArchives = true
	session := newFakeSession(standardTree())
	ext := newFakeExtractor()
	ext.add("file1.7z", "a.csv", []byte("a;b\n1;2\n"))

	r := newRunner(t, cfg, session, ext)
	_, err := r.Run()
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(cfg.Output.Directory, "file1.7z"))
	assert.NoError(t, statErr)
}
