// Package hubstore implements a read-only object store backed by a
// model-hub repository. Repository files are addressed by their path within
// the repo at a fixed revision; the hub exposes no write API here, so
// uploads fail with ErrNotSupported.
package hubstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	syncerrors "github.com/parakeet-ml/ckptsync/errors"
	"github.com/parakeet-ml/ckptsync/store"
)

// DefaultEndpoint is the public hub endpoint.
const DefaultEndpoint = "https://huggingface.co"

// DefaultRevision is the revision used when none is configured.
const DefaultRevision = "main"

// Config holds the settings for reading from a hub repository.
type Config struct {
	// Repo is the repository identifier, e.g. "org/model" (required)
	Repo string

	// Revision is the branch, tag, or commit to read from
	Revision string

	// Token is the access token for gated or private repositories
	Token string

	// Endpoint overrides the hub endpoint, e.g. for a mirror
	Endpoint string

	// HTTPClient overrides the HTTP client used for all requests
	HTTPClient *http.Client
}

// Store is a hub-backed, read-only object store.
type Store struct {
	repo     string
	revision string
	token    string
	endpoint string
	client   *http.Client
}

// treeEntry is one element of the hub tree listing response.
type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// New creates a Store from the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.Repo == "" {
		return nil, syncerrors.NewError("hubstore", syncerrors.ErrInvalidInput).
			WithMessage("repository cannot be empty")
	}

	revision := cfg.Revision
	if revision == "" {
		revision = DefaultRevision
	}
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	return &Store{
		repo:     cfg.Repo,
		revision: revision,
		token:    cfg.Token,
		endpoint: endpoint,
		client:   client,
	}, nil
}

// List streams the repository tree under prefix. Directories are emitted as
// pseudo-directory markers so downstream filtering stays uniform across
// backends. Listing follows Link-header pagination until exhausted.
func (s *Store) List(ctx context.Context, prefix string) <-chan store.Entry {
	ch := make(chan store.Entry)

	go func() {
		defer close(ch)

		next := fmt.Sprintf("%s/api/models/%s/tree/%s/%s?recursive=true",
			s.endpoint, s.repo, url.PathEscape(s.revision), escapePath(strings.TrimSuffix(prefix, "/")))

		for next != "" {
			entries, nextPage, err := s.listPage(ctx, next)
			if err != nil {
				select {
				case ch <- store.Entry{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			for _, e := range entries {
				key := e.Path
				if e.Type == "directory" {
					key += "/"
				}
				if prefix != "" && !strings.HasPrefix(key, strings.TrimSuffix(prefix, "/")) {
					continue
				}
				entry := store.Entry{Object: ckpttypes.Object{
					Key:  key,
					Size: e.Size,
				}}
				select {
				case ch <- entry:
				case <-ctx.Done():
					return
				}
			}
			next = nextPage
		}
	}()

	return ch
}

// listPage fetches one page of the tree listing and returns the entries plus
// the URL of the next page, if any.
func (s *Store) listPage(ctx context.Context, pageURL string) ([]treeEntry, string, error) {
	resp, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, "", syncerrors.NewError("list", err).
			WithMessage("listing repository " + s.repo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", syncerrors.NewError("list", syncerrors.ErrRemoteNotFound).
			WithMessage("repository or revision not found: " + s.repo + "@" + s.revision)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", syncerrors.NewError("list", syncerrors.ErrRemoteTransport).
			WithMessage(fmt.Sprintf("listing repository %s: status %d", s.repo, resp.StatusCode))
	}

	var entries []treeEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, "", syncerrors.NewError("list", syncerrors.ErrRemoteTransport).
			WithMessage("decoding tree listing: " + err.Error())
	}

	return entries, nextLink(resp.Header.Get("Link")), nil
}

// Download streams the repository file at key into w.
func (s *Store) Download(ctx context.Context, key string, w io.Writer) (int64, error) {
	fileURL := fmt.Sprintf("%s/%s/resolve/%s/%s",
		s.endpoint, s.repo, url.PathEscape(s.revision), escapePath(key))

	resp, err := s.get(ctx, fileURL)
	if err != nil {
		return 0, syncerrors.NewKeyError("download", key, syncerrors.ErrRemoteTransport).
			WithMessage(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, syncerrors.NewKeyError("download", key, syncerrors.ErrRemoteNotFound)
	case resp.StatusCode != http.StatusOK:
		return 0, syncerrors.NewKeyError("download", key, syncerrors.ErrRemoteTransport).
			WithMessage(fmt.Sprintf("status %d", resp.StatusCode))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, syncerrors.NewKeyError("download", key, syncerrors.ErrLocalWrite).
			WithMessage("writing payload: " + err.Error())
	}
	return n, nil
}

// Upload always fails: the hub backend is read-only.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return syncerrors.NewKeyError("upload", key, syncerrors.ErrNotSupported).
		WithMessage("hub repositories are read-only")
}

// get performs an authenticated GET with bounded retries. Only transient
// failures (network errors and 5xx responses) are retried; requests are
// idempotent so retrying is safe.
func (s *Store) get(ctx context.Context, rawURL string) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		r, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if r.StatusCode >= 500 {
			_ = r.Body.Close()
			return fmt.Errorf("server error: status %d", r.StatusCode)
		}

		resp = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// nextLink extracts the rel="next" URL from a Link header, or "" when the
// listing has no further pages.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if strings.TrimSpace(section[1]) == `rel="next"` {
			return strings.Trim(strings.TrimSpace(section[0]), "<>")
		}
	}
	return ""
}

// escapePath escapes each segment of a slash-separated path, preserving the
// separators themselves.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
