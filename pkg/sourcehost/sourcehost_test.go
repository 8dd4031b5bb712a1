package sourcehost

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// withFakeServer points c's underlying GitHub client at an in-process
// test server, so ListTags/ListBranches exercise this package's
// pagination/caching/retry logic without talking to the network.
func withFakeServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New("")
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	c.gh.BaseURL = base
	return c
}

func TestListTagsCachesPerPage(t *testing.T) {
	t.Parallel()

	var requests int
	c := withFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `[{"name":"v1.0.0"},{"name":"v1.1.0"}]`)
	})

	tags, err := c.ListTags(t.Context(), "acme", "widget", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"v1.0.0", "v1.1.0"}, tags)

	_, err = c.ListTags(t.Context(), "acme", "widget", 1)
	require.NoError(t, err)
	require.Equal(t, 1, requests, "second call for the same page should be served from cache")
}

func TestListBranchesReturnsOldestFirstOrder(t *testing.T) {
	t.Parallel()

	c := withFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"v1"},{"name":"v2"},{"name":"v3"}]`)
	})

	branches, err := c.ListBranches(t.Context(), "acme", "widget", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2", "v3"}, branches, "sourcehost itself does not reverse; that is the resolver's job")
}

func TestBranchPageCountReadsLastPage(t *testing.T) {
	t.Parallel()

	c := withFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", `<https://example.com/repos/acme/widget/branches?page=5>; rel="last"`)
		fmt.Fprint(w, `[{"name":"v1"}]`)
	})

	pages, err := c.BranchPageCount(t.Context(), "acme", "widget")
	require.NoError(t, err)
	require.Equal(t, 5, pages)
}
