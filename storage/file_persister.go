// Package storage deals with the files reactview reads and writes: embedded
// front-end bundles served to the browser, and debug dumps of failed
// resource loads.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FilePersister will persist files. It abstracts away the where and how of
// writing files to the destination.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// LocalFilePersister will persist files to the local disk.
type LocalFilePersister struct{}

// Persist writes the contents of data to path on the local disk, creating
// intermediate directories as needed.
func (l *LocalFilePersister) Persist(_ context.Context, path string, data io.Reader) (err error) {
	cp := filepath.Clean(path)

	dir := filepath.Dir(cp)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating a local directory %q: %w", dir, err)
	}

	f, err := os.OpenFile(cp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating a local file %q: %w", cp, err)
	}
	defer func() {
		cerr := f.Close()
		// Only return the close error if there isn't already one.
		if cerr != nil && err == nil {
			err = fmt.Errorf("closing the local file %q: %w", cp, cerr)
		}
	}()

	_, err = io.Copy(f, data)

	return
}

// DumpPersister writes debug dumps of failed resource loads under a single
// directory, one file per failure, named so that dumps sort by time.
type DumpPersister struct {
	Dir       string
	persister FilePersister

	nowFn func() time.Time // for tests
}

// NewDumpPersister returns a DumpPersister rooted at dir.
func NewDumpPersister(dir string) *DumpPersister {
	return &DumpPersister{
		Dir:       dir,
		persister: &LocalFilePersister{},
		nowFn:     time.Now,
	}
}

// DumpFailure persists a description of a failed resource load and returns
// the path it was written to.
func (p *DumpPersister) DumpFailure(ctx context.Context, url, errorText string) (string, error) {
	name := fmt.Sprintf("%s_%s.txt", p.nowFn().UTC().Format("20060102T150405.000"), uuid.NewString())
	path := filepath.Join(p.Dir, name)

	body := fmt.Sprintf("url: %s\nerror: %s\n", url, errorText)
	if err := p.persister.Persist(ctx, path, strings.NewReader(body)); err != nil {
		return "", fmt.Errorf("dumping failed resource load for %q: %w", url, err)
	}

	return path, nil
}
