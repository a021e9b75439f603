package storage

import (
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// EmbeddedSource resolves embedded:// resource URLs against a front-end
// bundle, typically an embed.FS compiled into the host application.
//
// The URL host selects the bundle root ("embedded://main/index.js" maps to
// main/index.js inside the filesystem); an empty path serves index.html.
type EmbeddedSource struct {
	fsys fs.FS
}

// NewEmbeddedSource returns an EmbeddedSource serving from fsys.
func NewEmbeddedSource(fsys fs.FS) *EmbeddedSource {
	return &EmbeddedSource{fsys: fsys}
}

// Resolve loads the resource addressed by rawURL and returns its bytes and
// mime type. The mime type comes from the file extension when known, and
// from content sniffing otherwise.
func (s *EmbeddedSource) Resolve(rawURL string) (data []byte, mimeType string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parsing embedded resource URL %q: %w", rawURL, err)
	}

	p := path.Join(u.Host, strings.TrimPrefix(u.Path, "/"))
	if p == "" || p == "." || strings.HasSuffix(u.Path, "/") {
		p = path.Join(p, "index.html")
	}

	data, err = fs.ReadFile(s.fsys, p)
	if err != nil {
		return nil, "", fmt.Errorf("reading embedded resource %q: %w", p, err)
	}

	if mt := mime.TypeByExtension(path.Ext(p)); mt != "" {
		return data, mt, nil
	}
	return data, mimetype.Detect(data).String(), nil
}
