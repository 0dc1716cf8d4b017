package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var (
	ErrDownloadFailed  = errors.New("download failed")
	ErrHostNotAllowed  = errors.New("download host not allowed")
	errTooManyRedirect = errors.New("stopped after 10 redirects")
)

// File is a fetched remote file. The caller must close Body.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

type HTTPDownloader struct {
	httpClient   *http.Client
	allowedHosts map[string]struct{}
}

// NewHTTPDownloader fetches only from allowedHosts. An entry matches either
// the bare host name or host:port. Redirects are held to the same list.
func NewHTTPDownloader(timeout time.Duration, allowedHosts []string) *HTTPDownloader {
	d := &HTTPDownloader{allowedHosts: make(map[string]struct{}, len(allowedHosts))}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			d.allowedHosts[h] = struct{}{}
		}
	}
	d.httpClient = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errTooManyRedirect
			}
			return d.checkHost(req.URL)
		},
	}
	return d
}

func (d *HTTPDownloader) checkHost(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrHostNotAllowed, u.Scheme)
	}
	if _, ok := d.allowedHosts[strings.ToLower(u.Host)]; ok {
		return nil
	}
	if _, ok := d.allowedHosts[strings.ToLower(u.Hostname())]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrHostNotAllowed, u.Hostname())
}

// Fetch downloads rawURL. A host outside the allow list yields
// ErrHostNotAllowed before any connection is made; any non-2xx response
// yields ErrDownloadFailed. filename is used as the save name; when blank it
// falls back to the last path segment of the URL.
func (d *HTTPDownloader) Fetch(ctx context.Context, rawURL, filename string) (*File, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostNotAllowed, err)
	}
	if err := d.checkHost(u); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: remote returned status %d", ErrDownloadFailed, resp.StatusCode)
	}

	name := strings.TrimSpace(filename)
	if name == "" {
		name = path.Base(req.URL.Path)
		if name == "/" || name == "." {
			name = "download"
		}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &File{
		Name:        name,
		ContentType: contentType,
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}
