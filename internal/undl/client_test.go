package undl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhl-metadata/unlibmd/internal/model"
)

// fakeUNDL simulates the UNDL search API: cursor pagination over a fixed
// set of records, optional throttling, and token auth checks.
type fakeUNDL struct {
	mu sync.Mutex

	// total is the size of the simulated result set.
	total int

	// searchID is the cursor handed out on the first request.
	searchID string

	// served counts records already returned, so each request serves
	// the next slice.
	served int

	// throttleFirst makes the server answer this many requests with 429
	// before behaving normally.
	throttleFirst int

	// retryAfter, when positive, is sent as the Retry-After header on
	// 429 responses.
	retryAfter int

	// requests records the query parameters of every request received.
	requests []map[string]string
}

func (f *fakeUNDL) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		params := map[string]string{}
		for key := range r.URL.Query() {
			params[key] = r.URL.Query().Get(key)
		}
		f.requests = append(f.requests, params)

		if f.throttleFirst > 0 {
			f.throttleFirst--
			if f.retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(f.retryAfter))
			}
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		// rg is asserted on the recorded requests in the tests themselves;
		// the handler just needs a usable page size.
		pageSize, err := strconv.Atoi(params["rg"])
		if err != nil || pageSize <= 0 {
			pageSize = 10
		}

		remaining := f.total - f.served
		if remaining < 0 {
			remaining = 0
		}
		count := pageSize
		if count > remaining {
			count = remaining
		}

		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`)
		fmt.Fprintf(w, `<response><total>%d</total><search_id>%s</search_id>`, f.total, f.searchID)
		fmt.Fprintf(w, `<collection xmlns="http://www.loc.gov/MARC21/slim">`)
		for i := 0; i < count; i++ {
			id := f.served + i + 1
			fmt.Fprintf(w, `<record><controlfield tag="001">%d</controlfield>`+
				`<datafield tag="245" ind1="1" ind2="0">`+
				`<subfield code="a">Record %d</subfield></datafield></record>`, id, id)
		}
		fmt.Fprint(w, `</collection></response>`)
		f.served += count
	}
}

// testClient builds a client pointed at the fake server with rate
// limiting off and a fast retry schedule, so tests run in milliseconds.
func testClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()

	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)

	base := []Option{
		WithBaseURL(server.URL),
		WithRateLimit(0),
		WithLogger(quiet),
		WithRetryPolicy(2, time.Millisecond, 10*time.Millisecond),
	}
	client, err := NewClient("test-key", append(base, opts...)...)
	require.NoError(t, err)
	return client
}

// TestNewClient_RequiresKey verifies that anonymous clients are refused
// up front instead of failing on the first request.
func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

// TestSearch_SinglePage verifies request shape and envelope decoding for
// a one-page result set.
func TestSearch_SinglePage(t *testing.T) {
	fake := &fakeUNDL{total: 3, searchID: "cursor-1"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)
	query := &model.SearchQuery{Pattern: "climate", Collection: "Reports", Sort: "latest first", PageSize: 10}

	page, err := client.Search(context.Background(), query, "")
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "cursor-1", page.SearchID)
	require.Len(t, page.Records, 3)
	assert.Equal(t, "1", page.Records[0].ControlNumber())

	// The request must carry the API's parameter names.
	require.Len(t, fake.requests, 1)
	sent := fake.requests[0]
	assert.Equal(t, "climate", sent["p"])
	assert.Equal(t, "Reports", sent["c"])
	assert.Equal(t, "latest first", sent["sort"])
	assert.Equal(t, "10", sent["rg"])
	assert.Equal(t, "xml", sent["format"])
	_, hasCursor := sent["search_id"]
	assert.False(t, hasCursor, "first request must not carry a cursor")
}

// TestHarvest_Pagination verifies the cursor loop: the first request has
// no search_id, every later request does, and the harvest stops at the
// reported total.
func TestHarvest_Pagination(t *testing.T) {
	fake := &fakeUNDL{total: 25, searchID: "cursor-abc"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)
	query := &model.SearchQuery{Pattern: "x", PageSize: 10}

	var ids []string
	stats, err := client.Harvest(context.Background(), query, func(page *SearchPage) error {
		for i := range page.Records {
			ids = append(ids, page.Records[i].ControlNumber())
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 25, stats.Total)
	assert.Equal(t, 25, stats.Fetched)
	assert.Equal(t, 3, stats.Pages)
	require.Len(t, ids, 25)
	assert.Equal(t, "1", ids[0])
	assert.Equal(t, "25", ids[24])

	// 25 records at page size 10 is exactly three requests.
	require.Len(t, fake.requests, 3)
	_, first := fake.requests[0]["search_id"]
	assert.False(t, first, "first request must not carry a cursor")
	assert.Equal(t, "cursor-abc", fake.requests[1]["search_id"])
	assert.Equal(t, "cursor-abc", fake.requests[2]["search_id"])
}

// TestHarvest_MaxRecords verifies that the cap truncates the final page
// and stops the pagination loop early.
func TestHarvest_MaxRecords(t *testing.T) {
	fake := &fakeUNDL{total: 100, searchID: "cursor-abc"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)
	query := &model.SearchQuery{Pattern: "x", PageSize: 10, MaxRecords: 15}

	records, stats, err := client.HarvestAll(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, 100, stats.Total)
	assert.Equal(t, 15, stats.Fetched)
	require.Len(t, records, 15)
	assert.Equal(t, "15", records[14].ControlNumber())
	assert.Len(t, fake.requests, 2)
}

// TestHarvest_NoHits verifies that an empty result set finishes cleanly
// without attempting to paginate a cursor the API never issued.
func TestHarvest_NoHits(t *testing.T) {
	fake := &fakeUNDL{total: 0}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)

	records, stats, err := client.HarvestAll(context.Background(), &model.SearchQuery{Pattern: "no such record"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, stats.Total)
	assert.Len(t, fake.requests, 1)
}

// TestHarvest_InvalidQuery verifies that validation runs before any
// network traffic and maps to the invalid-query exit code.
func TestHarvest_InvalidQuery(t *testing.T) {
	fake := &fakeUNDL{}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)

	_, _, err := client.HarvestAll(context.Background(), &model.SearchQuery{})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitInvalidQuery, cliErr.Code)
	assert.Empty(t, fake.requests, "invalid queries must not reach the API")
}

// TestHarvest_MissingCursor verifies that a multi-page result set
// without a search_id stops with a parse error. Continuing without the
// cursor would resend the original query and fetch page one forever.
func TestHarvest_MissingCursor(t *testing.T) {
	fake := &fakeUNDL{total: 25, searchID: ""}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)

	_, _, err := client.HarvestAll(context.Background(), &model.SearchQuery{Pattern: "x", PageSize: 10})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitParseError, cliErr.Code)
	assert.Len(t, fake.requests, 1, "the harvest must stop instead of restarting from page one")
}

// TestFetchPage_RetriesThrottling verifies that 429 responses are
// retried and the harvest then completes.
func TestFetchPage_RetriesThrottling(t *testing.T) {
	fake := &fakeUNDL{total: 2, searchID: "cursor", throttleFirst: 2, retryAfter: 0}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)

	records, _, err := client.HarvestAll(context.Background(), &model.SearchQuery{Pattern: "x", PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	// Two throttled requests plus the successful one.
	assert.Len(t, fake.requests, 3)
}

// TestFetchPage_HonorsRetryAfter verifies that a Retry-After header
// replaces the backoff interval. The test client's schedule waits at
// most 10ms, so an elapsed time of a full second can only come from
// the header.
func TestFetchPage_HonorsRetryAfter(t *testing.T) {
	fake := &fakeUNDL{total: 2, searchID: "cursor", throttleFirst: 1, retryAfter: 1}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)

	start := time.Now()
	records, _, err := client.HarvestAll(context.Background(), &model.SearchQuery{Pattern: "x", PageSize: 10})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, fake.requests, 2)
	assert.GreaterOrEqual(t, elapsed, time.Second,
		"the server asked for a one second wait")
}

// TestFetchPage_RetryBudgetExhausted verifies that persistent throttling
// surfaces as the rate-limited exit code once the budget runs out.
func TestFetchPage_RetryBudgetExhausted(t *testing.T) {
	fake := &fakeUNDL{total: 2, searchID: "cursor", throttleFirst: 100}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)

	_, _, err := client.HarvestAll(context.Background(), &model.SearchQuery{Pattern: "x"})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitRateLimited, cliErr.Code)
	// Initial attempt plus the two retries configured in testClient.
	assert.Len(t, fake.requests, 3)
}

// TestFetchPage_Unauthorized verifies the credentials exit code for
// rejected keys, with no retry.
func TestFetchPage_Unauthorized(t *testing.T) {
	fake := &fakeUNDL{total: 2}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)
	client, err := NewClient("wrong-key",
		WithBaseURL(server.URL), WithRateLimit(0), WithLogger(quiet))
	require.NoError(t, err)

	_, searchErr := client.Search(context.Background(), &model.SearchQuery{Pattern: "x"}, "")
	require.Error(t, searchErr)

	var cliErr *model.CLIError
	require.True(t, errors.As(searchErr, &cliErr))
	assert.Equal(t, model.ExitNoCredentials, cliErr.Code)
	assert.Len(t, fake.requests, 0, "auth check happens before request logging in the fake")
}

// TestFetchPage_BadXML verifies the parse-error exit code for responses
// that are not a search envelope.
func TestFetchPage_BadXML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not xml at all")
	}))
	defer server.Close()

	client := testClient(t, server)

	_, err := client.Search(context.Background(), &model.SearchQuery{Pattern: "x"}, "")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitParseError, cliErr.Code)
}

// TestCount verifies that counting asks for a single record and reads
// the envelope total.
func TestCount(t *testing.T) {
	fake := &fakeUNDL{total: 4721, searchID: "cursor"}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := testClient(t, server)

	total, err := client.Count(context.Background(), &model.SearchQuery{Pattern: "x", PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 4721, total)

	require.Len(t, fake.requests, 1)
	assert.Equal(t, "1", fake.requests[0]["rg"], "count must request a single record")
}

// TestParseRetryAfter covers the header parsing contract.
func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))
}
