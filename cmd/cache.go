package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/lepinkainen/bookhound/internal/cache"
)

// CacheCmd represents the cache command and its subcommands. The cache
// lives in the serve process, so these talk to its HTTP API.
type CacheCmd struct {
	Stats      CacheStatsCmd      `cmd:"" help:"Show cache size and expiry counts"`
	Invalidate CacheInvalidateCmd `cmd:"" help:"Remove entries by ISBN, source or both"`
	Prune      CachePruneCmd      `cmd:"" help:"Remove expired entries"`
	Clear      CacheClearCmd      `cmd:"" help:"Remove every entry"`
}

// ServerFlags locates the server whose cache is managed
type ServerFlags struct {
	Server string `help:"Base URL of a running bookhound server" default:"http://localhost:8080"`
}

// CacheStatsCmd represents the cache stats command
type CacheStatsCmd struct {
	ServerFlags `embed:""`
}

// CacheInvalidateCmd represents the cache invalidate command
type CacheInvalidateCmd struct {
	ServerFlags `embed:""`

	ISBN   string `name:"isbn" help:"Invalidate entries for this ISBN"`
	Source string `help:"Invalidate entries from this source"`
}

// CachePruneCmd represents the cache prune command
type CachePruneCmd struct {
	ServerFlags `embed:""`
}

// CacheClearCmd represents the cache clear command
type CacheClearCmd struct {
	ServerFlags `embed:""`
}

type removedResult struct {
	Removed int `json:"removed"`
}

// cacheClient calls the server's cache endpoints.
type cacheClient struct {
	baseURL string
	http    *http.Client
}

func newCacheClient(baseURL string) *cacheClient {
	return &cacheClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *cacheClient) do(ctx context.Context, method, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *cacheClient) Stats(ctx context.Context) (cache.Stats, error) {
	var stats cache.Stats
	err := c.do(ctx, http.MethodGet, "/api/cache/stats", &stats)
	return stats, err
}

func (c *cacheClient) Prune(ctx context.Context) (int, error) {
	var res removedResult
	err := c.do(ctx, http.MethodPost, "/api/cache/prune", &res)
	return res.Removed, err
}

func (c *cacheClient) Clear(ctx context.Context) (int, error) {
	var res removedResult
	err := c.do(ctx, http.MethodDelete, "/api/cache", &res)
	return res.Removed, err
}

func (c *cacheClient) Invalidate(ctx context.Context, isbn, source string) (int, error) {
	var path string
	switch {
	case isbn != "" && source != "":
		path = "/api/cache/isbn/" + url.PathEscape(isbn) + "/source/" + url.PathEscape(source)
	case isbn != "":
		path = "/api/cache/isbn/" + url.PathEscape(isbn)
	case source != "":
		path = "/api/cache/source/" + url.PathEscape(source)
	default:
		return 0, fmt.Errorf("at least one of --isbn or --source is required")
	}

	var res removedResult
	err := c.do(ctx, http.MethodDelete, path, &res)
	return res.Removed, err
}

func (c *CacheStatsCmd) Run(rc *runContext) error {
	stats, err := newCacheClient(c.Server).Stats(rc.ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(rc.out, renderStats(stats))
	return err
}

func (c *CacheInvalidateCmd) Run(rc *runContext) error {
	removed, err := newCacheClient(c.Server).Invalidate(rc.ctx, c.ISBN, c.Source)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(rc.out, "Removed %d cache entries\n", removed)
	return err
}

func (c *CachePruneCmd) Run(rc *runContext) error {
	removed, err := newCacheClient(c.Server).Prune(rc.ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(rc.out, "Pruned %d expired cache entries\n", removed)
	return err
}

func (c *CacheClearCmd) Run(rc *runContext) error {
	removed, err := newCacheClient(c.Server).Clear(rc.ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(rc.out, "Cleared %d cache entries\n", removed)
	return err
}
