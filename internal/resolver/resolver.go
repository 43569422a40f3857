// Package resolver locates the columnar file for each table of the
// distribution: lookup tables from the local tree, large tables from a
// local release directory or from the remote release asset store.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pron-dist/internal/dist"
	"pron-dist/internal/manifest"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL     = "https://github.com"
	defaultTimeout     = 5 * time.Minute
	defaultConcurrency = 4
	userAgent          = "pron-dist/1.0"
)

// Options configures source resolution.
type Options struct {
	Root        string // distribution root directory
	Repo        string // release repository, owner/name
	Release     string // release tag, or "latest"
	Offline     bool   // resolve large tables from data/release/ instead of fetching
	BaseURL     string // asset store base URL; defaults to github.com
	Timeout     time.Duration
	Concurrency int
}

// Source is a resolved, checksum-verified columnar file for one table.
type Source struct {
	Table  string
	Path   string
	Bytes  int64
	Remote bool // true when the file was fetched this run
}

// Resolver resolves manifest entries to local files, fetching release
// assets when needed.
type Resolver struct {
	opts   Options
	client *http.Client
	log    *zap.SugaredLogger
}

func New(opts Options, log *zap.SugaredLogger) *Resolver {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Release == "" {
		opts.Release = "latest"
	}
	return &Resolver{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    log,
	}
}

// AssetURL returns the release asset URL for a file, pinned to a tag or
// pointing at the latest release.
func AssetURL(base, repo, tag, filename string) string {
	if tag == "latest" {
		return fmt.Sprintf("%s/%s/releases/latest/download/%s", base, repo, filename)
	}
	return fmt.Sprintf("%s/%s/releases/download/%s/%s", base, repo, tag, filename)
}

// ResolveAll resolves every table in the manifest before loading begins,
// fetching independent remote assets concurrently. It fails on the first
// unresolvable table: a run never starts loading with missing sources.
func (r *Resolver) ResolveAll(ctx context.Context, m *manifest.Manifest) (map[string]*Source, error) {
	var (
		mu      sync.Mutex
		sources = make(map[string]*Source, len(m.Tables))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, name := range m.TableNames() {
		entry := m.Tables[name]
		g.Go(func() error {
			src, err := r.Resolve(ctx, name, entry)
			if err != nil {
				return err
			}
			mu.Lock()
			sources[name] = src
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

// Resolve locates the columnar file for one table. Lookup tables always
// resolve from the local tree. Large tables resolve from data/release/ in
// offline mode, otherwise from the remote asset store; a cached download
// is reused only when its checksum still matches the manifest.
func (r *Resolver) Resolve(ctx context.Context, table string, e manifest.Entry) (*Source, error) {
	if e.Category == manifest.CategoryLookup {
		path := filepath.Join(r.opts.Root, filepath.FromSlash(e.ParquetPath))
		return r.local(table, path, e, false)
	}

	if r.opts.Offline {
		path := filepath.Join(r.opts.Root, "data", "release", table+".parquet")
		return r.local(table, path, e, false)
	}

	cached := filepath.Join(r.opts.Root, "data", "_tmp_downloaded", table+".parquet")
	if ok, _ := checksumMatches(cached, e.SHA256); ok {
		r.log.Debugw("reusing cached asset", "table", table, "path", cached)
		return r.local(table, cached, e, false)
	}
	if err := r.fetch(ctx, table, e, cached); err != nil {
		return nil, err
	}
	return r.local(table, cached, e, true)
}

func (r *Resolver) local(table, path string, e manifest.Entry, remote bool) (*Source, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, &dist.SourceNotFoundError{Table: table, Path: path}
	}
	if e.SHA256 != "" {
		ok, actual := checksumMatches(path, e.SHA256)
		if !ok {
			if remote {
				os.Remove(path)
			}
			return nil, &dist.IntegrityViolationError{
				Table: table,
				Rule:  fmt.Sprintf("checksum mismatch for %s: manifest %s, file %s", filepath.Base(path), e.SHA256, actual),
			}
		}
	}
	return &Source{Table: table, Path: path, Bytes: st.Size(), Remote: remote}, nil
}

func (r *Resolver) fetch(ctx context.Context, table string, e manifest.Entry, dest string) error {
	url := AssetURL(r.opts.BaseURL, r.opts.Repo, r.opts.Release, table+".parquet")
	r.log.Infow("downloading release asset",
		"table", table, "url", url, "size", humanize.Bytes(uint64(e.SizeBytes)))

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &dist.RemoteFetchError{Table: table, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return &dist.RemoteFetchError{Table: table, URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &dist.RemoteFetchError{
			Table: table, URL: url,
			Err: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &dist.RemoteFetchError{Table: table, URL: url, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), table+".*.part")
	if err != nil {
		return &dist.RemoteFetchError{Table: table, URL: url, Err: err}
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &dist.RemoteFetchError{Table: table, URL: url, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &dist.RemoteFetchError{Table: table, URL: url, Err: err}
	}

	r.log.Infow("downloaded", "table", table, "bytes", humanize.Bytes(uint64(n)))
	return nil
}

// checksumMatches reports whether the file at path hashes to the expected
// SHA-256, returning the actual digest for diagnostics. An empty expected
// digest never matches: unverifiable caches are not trusted.
func checksumMatches(path, expected string) (bool, string) {
	if expected == "" {
		return false, ""
	}
	f, err := os.Open(path)
	if err != nil {
		return false, ""
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, ""
	}
	actual := hex.EncodeToString(h.Sum(nil))
	return actual == expected, actual
}

// FileSHA256 returns the hex SHA-256 of a file. Shared with the exporter,
// which records digests in the manifest.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
