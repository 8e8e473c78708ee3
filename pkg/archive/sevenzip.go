package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	"cagedfetch/pkg/errors"
)

// SevenZip reads 7z archives with the pure-Go sevenzip reader.
type SevenZip struct{}

var _ Extractor = SevenZip{}

// ListMembers returns the file members of the archive, directories excluded.
func (SevenZip) ListMembers(archivePath string) ([]string, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Archive("open", archivePath, err)
	}
	defer r.Close()

	var members []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		members = append(members, f.Name)
	}
	return members, nil
}

// ExtractAll decompresses every member into destDir, preserving member
// names, and returns the names written.
func (SevenZip) ExtractAll(archivePath, destDir string) ([]string, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Archive("open", archivePath, err)
	}
	defer r.Close()

	var members []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractMember(f, destDir); err != nil {
			return nil, errors.Archive("extract", f.Name, err)
		}
		members = append(members, f.Name)
	}
	return members, nil
}

// ReadMember streams one member into memory.
func (SevenZip) ReadMember(archivePath, name string) ([]byte, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Archive("open", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Archive("open member", name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Archive("read member", name, err)
		}
		return data, nil
	}

	return nil, errors.Archive("read member", name, fmt.Errorf("member not found in %s", archivePath))
}

func extractMember(f *sevenzip.File, destDir string) error {
	// Reject members that would escape the scratch directory.
	name := filepath.FromSlash(f.Name)
	if strings.Contains(name, "..") || filepath.IsAbs(name) {
		return fmt.Errorf("unsafe member path %q", f.Name)
	}

	target := filepath.Join(destDir, name)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	return out.Close()
}
