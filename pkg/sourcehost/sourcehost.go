// Package sourcehost implements the source-host external collaborator
// (resolver.SourceHost) against GitHub: paginated tag and branch listing
// for an org/project, with per-page memoization and retry/backoff.
package sourcehost

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v65/github"

	"github.com/imagestack/imagestack/pkg/console"
	"github.com/imagestack/imagestack/pkg/errors"
)

// MaxPages is the number of source-host pages fetched per resolution
// batch.
const MaxPages = 4

// MaxRetries bounds the number of times one failed page request is retried
// after its first attempt.
const MaxRetries = 5

type pageKey struct {
	kind    string
	org     string
	project string
	page    int
}

// Client is a memoizing, retrying GitHub adapter. It is not safe to share
// across process lifetimes; construct one per lock-build invocation.
type Client struct {
	gh *github.Client

	mu    sync.Mutex
	cache map[pageKey][]string
}

// New constructs a Client. Token resolution order: the constructor
// argument, then GH_TOKEN, then GITHUB_TOKEN, then anonymous access.
func New(token string) *Client {
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	} else {
		console.Debug("No GitHub token was provided, you may see errors from rate limiting")
	}
	return &Client{gh: client, cache: make(map[pageKey][]string)}
}

// ListTags returns one page of tag names for org/project, newest-first as
// GitHub's tag API returns them.
func (c *Client) ListTags(ctx context.Context, org, project string, page int) ([]string, error) {
	key := pageKey{"tag", org, project, page}
	if cached, ok := c.get(key); ok {
		console.Debug("Using cached tags for '%s/%s' page %d", org, project, page)
		return cached, nil
	}
	var names []string
	err := retry(func() error {
		tags, _, err := c.gh.Repositories.ListTags(ctx, org, project, &github.ListOptions{Page: page, PerPage: 100})
		if err != nil {
			return err
		}
		names = make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.GetName()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("listing tags for %s/%s: %s", org, project, err))
	}
	c.put(key, names)
	return names, nil
}

// ListBranches returns one page of branch names, in the order GitHub
// returns them (oldest-first); the resolver is responsible for reversing
// to newest-first semantics.
func (c *Client) ListBranches(ctx context.Context, org, project string, page int) ([]string, error) {
	key := pageKey{"branch", org, project, page}
	if cached, ok := c.get(key); ok {
		console.Debug("Using cached branches for '%s/%s' page %d", org, project, page)
		return cached, nil
	}
	var names []string
	err := retry(func() error {
		branches, _, err := c.gh.Repositories.ListBranches(ctx, org, project, &github.BranchListOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: 100},
		})
		if err != nil {
			return err
		}
		names = make([]string, len(branches))
		for i, b := range branches {
			names[i] = b.GetName()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("listing branches for %s/%s: %s", org, project, err))
	}
	c.put(key, names)
	return names, nil
}

// BranchPageCount reports the total number of branch-listing pages for
// org/project, used to locate the tail of the (oldest-first) branch list.
func (c *Client) BranchPageCount(ctx context.Context, org, project string) (int, error) {
	var pages int
	err := retry(func() error {
		_, resp, err := c.gh.Repositories.ListBranches(ctx, org, project, &github.BranchListOptions{
			ListOptions: github.ListOptions{Page: 1, PerPage: 100},
		})
		if err != nil {
			return err
		}
		pages = resp.LastPage
		if pages == 0 {
			pages = 1
		}
		return nil
	})
	if err != nil {
		return 0, errors.Transport(fmt.Sprintf("counting branch pages for %s/%s: %s", org, project, err))
	}
	return pages, nil
}

func (c *Client) get(key pageKey) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[key]
	return v, ok
}

func (c *Client) put(key pageKey, v []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = v
}

// retry drives op through the spec's 1s * 2^attempt backoff ladder,
// retrying at most MaxRetries times after the first attempt.
func retry(op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return backoff.Retry(op, backoff.WithMaxRetries(b, MaxRetries))
}
