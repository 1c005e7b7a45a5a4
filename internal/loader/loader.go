// Package loader fetches form metadata documents from files, fs.FS entries,
// HTTP endpoints, or in-memory payloads, and parses them into
// metadata.Document values.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

// maxDocumentSize caps how many bytes Load will accept from any source.
// Metadata documents are small; anything past this is a misdirected URL or
// a runaway endpoint, not a form definition.
const maxDocumentSize = 4 << 20

// acceptHeader advertises the document encodings metadata.Parse understands.
const acceptHeader = "application/json, application/yaml;q=0.9, text/yaml;q=0.8"

// Option customises a Loader.
type Option func(*Loader)

// WithFileSystem provides the fs.FS consulted for SourceKindFS sources.
func WithFileSystem(files fs.FS) Option {
	return func(l *Loader) { l.fs = files }
}

// WithHTTPClient enables SourceKindURL sources using the supplied client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) { l.http = client }
}

// WithRequestTimeout bounds each HTTP fetch. Ignored for other source kinds.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(l *Loader) { l.timeout = timeout }
}

// Loader resolves a Source to raw bytes and parses them as a metadata
// document. JSON and YAML payloads are both accepted.
type Loader struct {
	fs      fs.FS
	http    *http.Client
	timeout time.Duration
}

// New constructs a Loader applying any provided options. HTTP support is off
// unless WithHTTPClient is supplied.
func New(options ...Option) *Loader {
	l := &Loader{}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load fetches the document behind src, parses it, and validates its
// structural integrity.
func (l *Loader) Load(ctx context.Context, src Source) (metadata.Document, error) {
	if src == nil {
		return metadata.Document{}, errors.New("loader: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return metadata.Document{}, err
	}

	data, err := l.read(ctx, src)
	if err != nil {
		return metadata.Document{}, err
	}
	if len(data) > maxDocumentSize {
		return metadata.Document{}, fmt.Errorf("loader: document %q exceeds %d bytes", src.Location(), maxDocumentSize)
	}

	doc, err := metadata.Parse(data)
	if err != nil {
		return metadata.Document{}, fmt.Errorf("loader: parse %q: %w", src.Location(), err)
	}
	if err := metadata.Validate(doc); err != nil {
		return metadata.Document{}, fmt.Errorf("loader: invalid document %q: %w", src.Location(), err)
	}
	return doc, nil
}

func (l *Loader) read(ctx context.Context, src Source) ([]byte, error) {
	location := src.Location()
	switch src.Kind() {
	case SourceKindFile:
		return l.readFile(location)
	case SourceKindFS:
		return l.readFS(location)
	case SourceKindURL:
		return l.fetch(ctx, location)
	case SourceKindBytes:
		bs, ok := src.(bytesSource)
		if !ok {
			return nil, errors.New("loader: bytes source has no payload")
		}
		return bs.data, nil
	default:
		return nil, fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
}

func (l *Loader) readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("loader: file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

func (l *Loader) readFS(name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("loader: fs path is required")
	}
	if l.fs == nil {
		return nil, errors.New("loader: fs is nil")
	}
	return fs.ReadFile(l.fs, name)
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if l.http == nil {
		return nil, errors.New("loader: http client is not configured")
	}
	if url == "" {
		return nil, errors.New("loader: url is required")
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("loader: fetch %q: unexpected status %s", url, resp.Status)
	}

	// Read one byte past the cap so Load can tell "at the limit" from "over".
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
}
