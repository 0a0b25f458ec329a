package comments

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fb2disqus/pkg/httpclient"
)

const (
	pageA = "https://example.com/blog/a/"
	pageB = "https://example.com/blog/b/"
	pageC = "https://example.com/blog/c/"
)

var threeComments = `{"comments": {"data": [
	{"id": "a_1", "from": {"name": "Ann", "id": "10"}, "created_time": "2014-08-01T12:30:00+0000", "message": "First!"},
	{"id": "a_2", "from": {"name": "Bob", "id": "11"}, "created_time": "2014-08-01T13:00:00+0000", "message": "<b>bold</b> reply"},
	{"id": "a_3", "created_time": "2014-08-02T09:15:00", "message": "no author"}
]}}`

// graphServer serves canned records keyed by URL and records every ids query.
type graphServer struct {
	*httptest.Server

	mu      sync.Mutex
	queries []string
	tokens  []string
}

func newGraphServer(t *testing.T, handler func(w http.ResponseWriter, ids []string)) *graphServer {
	t.Helper()

	gs := &graphServer{}
	gs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("ids")

		gs.mu.Lock()
		gs.queries = append(gs.queries, ids)
		gs.tokens = append(gs.tokens, r.URL.Query().Get("access_token"))
		gs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		handler(w, strings.Split(ids, ","))
	}))
	t.Cleanup(gs.Close)

	return gs
}

// recordsHandler answers with the records of the requested ids that exist.
func recordsHandler(records map[string]string) func(w http.ResponseWriter, ids []string) {
	return func(w http.ResponseWriter, ids []string) {
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			if rec, ok := records[id]; ok {
				parts = append(parts, fmt.Sprintf("%q: %s", id, rec))
			}
		}
		fmt.Fprintf(w, "{%s}", strings.Join(parts, ","))
	}
}

func newFetcher(endpoint, token string) *Fetcher {
	client := httpclient.NewClient(httpclient.DefaultClient, httpclient.Options{Timeout: 5 * time.Second})
	return NewFetcher(client, Options{Endpoint: endpoint, AccessToken: token}, nil)
}

func TestNormalizeTimestamp(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"2014-08-01T12:30:00+0000", "2014-08-01 12:30:00"},
		{"2014-08-01T12:30:00", "2014-08-01 12:30:00"},
		{"2014-08-01T12:30:00+0200", "2014-08-01 12:30:00+0200"},
		{"2014-08-01 12:30:00", "2014-08-01 12:30:00"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeTimestamp(tc.input))
		})
	}
}

func TestFetch_TwoURLScenario(t *testing.T) {
	server := newGraphServer(t, recordsHandler(map[string]string{
		pageA: threeComments,
		pageB: `{"og_object": {"id": "1"}, "share": {"comment_count": 0}}`,
	}))
	fetcher := newFetcher(server.URL+"/comments/", "")

	comments, err := fetcher.Fetch(context.Background(), pageA)
	require.NoError(t, err)
	require.Len(t, comments, 3)

	assert.Equal(t, "a_1", comments[0].ID)
	assert.Equal(t, "Ann", comments[0].Author)
	assert.Equal(t, "2014-08-01 12:30:00", comments[0].CreatedAt)
	assert.Equal(t, "First!", comments[0].Body)
	assert.Equal(t, "<b>bold</b> reply", comments[1].Body)
	assert.Equal(t, "", comments[2].Author, "missing from yields an empty author")
	assert.Equal(t, "2014-08-02 09:15:00", comments[2].CreatedAt)

	comments, err = fetcher.Fetch(context.Background(), pageB)
	require.NoError(t, err)
	assert.Empty(t, comments)

	assert.Equal(t, []string{pageA, pageB}, server.queries)
	assert.Equal(t, []string{"", ""}, server.tokens)
}

func TestFetch_AttributesNormalizedKeys(t *testing.T) {
	server := newGraphServer(t, func(w http.ResponseWriter, ids []string) {
		fmt.Fprintf(w, `{"https://example.com/blog/a/": %s}`, threeComments)
	})
	fetcher := newFetcher(server.URL, "")

	comments, err := fetcher.Fetch(context.Background(), "https://example.com/blog/a")
	require.NoError(t, err)
	assert.Len(t, comments, 3)
}

func TestFetch_SendsAccessToken(t *testing.T) {
	server := newGraphServer(t, recordsHandler(nil))
	fetcher := newFetcher(server.URL, "app|secret")

	_, err := fetcher.Fetch(context.Background(), pageA)
	require.NoError(t, err)
	assert.Equal(t, []string{"app|secret"}, server.tokens)
}

func TestFetch_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantDup bool
	}{
		{"server error", http.StatusInternalServerError, `{}`, false},
		{"bad request", http.StatusBadRequest, `{"error": {"message": "bad"}}`, false},
		{"invalid json", http.StatusOK, `<html>`, false},
		{"graph error envelope", http.StatusOK, `{"error": {"message": "rate limited", "type": "OAuthException", "code": 4}}`, false},
		{"missing id", http.StatusOK, fmt.Sprintf(`{%q: {"comments": {"data": [{"message": "x"}]}}}`, pageA), false},
		{"duplicate id", http.StatusOK, fmt.Sprintf(`{%q: {"comments": {"data": [{"id": "1"}, {"id": "1"}]}}}`, pageA), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newGraphServer(t, func(w http.ResponseWriter, ids []string) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			fetcher := newFetcher(server.URL, "top-secret")

			_, err := fetcher.Fetch(context.Background(), pageA)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCommentFetch)
			if tc.wantDup {
				assert.ErrorIs(t, err, ErrDuplicateCommentID)
			}
			assert.NotContains(t, err.Error(), "top-secret")
		})
	}
}

func TestFetchBatch(t *testing.T) {
	server := newGraphServer(t, func(w http.ResponseWriter, ids []string) {
		fmt.Fprintf(w, `{%q: %s, %q: {"id": "b"}, "https://unrelated.example.com/": %s}`,
			pageA, threeComments, pageB, threeComments)
	})
	fetcher := newFetcher(server.URL, "")

	results := fetcher.FetchBatch(context.Background(), []string{pageA, pageB, pageC})

	require.Len(t, results, 3)
	require.NoError(t, results[pageA].Err)
	assert.Len(t, results[pageA].Comments, 3)
	require.NoError(t, results[pageB].Err)
	assert.Empty(t, results[pageB].Comments)
	require.NoError(t, results[pageC].Err)
	assert.Empty(t, results[pageC].Comments, "URL absent from the response has no comments")

	assert.Equal(t, []string{pageA + "," + pageB + "," + pageC}, server.queries, "one request for the whole batch")
}

func TestFetchBatch_FallsBackPerURL(t *testing.T) {
	records := map[string]string{pageA: threeComments, pageC: `{}`}
	server := newGraphServer(t, func(w http.ResponseWriter, ids []string) {
		for _, id := range ids {
			if id == pageB {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		recordsHandler(records)(w, ids)
	})
	fetcher := newFetcher(server.URL, "")

	results := fetcher.FetchBatch(context.Background(), []string{pageA, pageB, pageC})

	require.NoError(t, results[pageA].Err)
	assert.Len(t, results[pageA].Comments, 3)
	assert.ErrorIs(t, results[pageB].Err, ErrCommentFetch)
	require.NoError(t, results[pageC].Err)
	assert.Empty(t, results[pageC].Comments)

	assert.Len(t, server.queries, 4, "failed batch followed by one request per URL")
}

func TestFetchBatch_URLWithCommaIsFetchedAlone(t *testing.T) {
	odd := "https://example.com/tags/a,b/"
	server := newGraphServer(t, recordsHandler(map[string]string{pageA: threeComments}))
	fetcher := newFetcher(server.URL, "")

	results := fetcher.FetchBatch(context.Background(), []string{pageA, odd, pageB})

	require.Len(t, results, 3)
	assert.Len(t, results[pageA].Comments, 3)
	assert.Contains(t, server.queries, odd)
	assert.Contains(t, server.queries, pageA+","+pageB)
}
