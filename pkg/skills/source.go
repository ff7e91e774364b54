package skills

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/llm-inline/llmi/pkg/utils"
	"github.com/pkg/errors"
)

type sourceKind int

const (
	sourceRemote sourceKind = iota
	sourceLocal
)

// source is a classified install location of a manifest
type source struct {
	raw  string
	kind sourceKind
	// manifestURL is set for remote sources
	manifestURL *url.URL
	// manifestPath is set for local sources
	manifestPath string
}

func parseSource(raw string) (*source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &FetchError{Source: raw, Err: errors.New("empty source")}
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, &FetchError{Source: raw, Err: errors.New("malformed URL")}
		}
		if strings.HasSuffix(u.Path, "/") {
			u = u.JoinPath(ManifestFileName)
		}
		return &source{raw: raw, kind: sourceRemote, manifestURL: u}, nil

	case strings.HasPrefix(lower, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return nil, &FetchError{Source: raw, Err: errors.New("malformed file URL")}
		}
		return localSource(raw, u.Path)

	case strings.Contains(raw, "://"):
		return nil, &FetchError{Source: raw, Err: errors.New("unsupported URL scheme (use http, https, file or a local path)")}
	}

	return localSource(raw, raw)
}

func localSource(raw, p string) (*source, error) {
	abs, err := filepath.Abs(utils.ExpandUserPath(p))
	if err != nil {
		return nil, &FetchError{Source: raw, Err: err}
	}
	info, err := os.Stat(abs)
	if err == nil && info.IsDir() {
		abs = filepath.Join(abs, ManifestFileName)
	}
	return &source{raw: raw, kind: sourceLocal, manifestPath: abs}, nil
}

// String returns the canonical location of the manifest
func (s *source) String() string {
	if s.kind == sourceRemote {
		return s.manifestURL.String()
	}
	return s.manifestPath
}

// handlerLocation resolves a manifest-relative handler reference
func (s *source) handlerLocation(handler string) string {
	if s.kind == sourceRemote {
		ref := &url.URL{Path: handler}
		return s.manifestURL.ResolveReference(ref).String()
	}
	return filepath.Join(filepath.Dir(s.manifestPath), filepath.FromSlash(path.Clean(handler)))
}

// fetcher reads bytes from a source location under a size ceiling
type fetcher struct {
	client  *http.Client
	maxSize int64
}

func (f *fetcher) fetch(ctx context.Context, s *source, location string) ([]byte, error) {
	if s.kind == sourceRemote {
		return f.fetchURL(ctx, location)
	}
	return f.fetchFile(location)
}

func (f *fetcher) fetchURL(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &FetchError{Source: location, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Source: location, StatusCode: resp.StatusCode}
	}

	return f.readLimited(location, resp.Body)
}

func (f *fetcher) fetchFile(location string) ([]byte, error) {
	file, err := os.Open(location)
	if err != nil {
		return nil, &FetchError{Source: location, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &FetchError{Source: location, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &FetchError{Source: location, Err: errors.New("not a regular file")}
	}

	return f.readLimited(location, file)
}

func (f *fetcher) readLimited(location string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxSize+1))
	if err != nil {
		return nil, &FetchError{Source: location, Err: err}
	}
	if int64(len(data)) > f.maxSize {
		return nil, &FetchError{Source: location, Err: errors.Errorf("exceeds size limit of %d bytes", f.maxSize)}
	}
	return data, nil
}
