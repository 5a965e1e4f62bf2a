package undl

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/dhl-metadata/unlibmd/internal/marc"
	"github.com/dhl-metadata/unlibmd/internal/model"
)

// SearchPage is one page of a paginated search: the records plus the
// cursor and the result-set total reported by the API.
type SearchPage struct {
	// Total is the number of records matching the query across all
	// pages. Constant for a given search_id.
	Total int

	// SearchID is the pagination cursor to present on the next request.
	// Empty when the query matched nothing.
	SearchID string

	// Records holds this page's MARC records. Empty on the page past
	// the end of the result set.
	Records []marc.Record
}

// searchEnvelope is the raw XML response wrapper around a page of
// records: <response><total>…<search_id>…<collection>…</collection>.
type searchEnvelope struct {
	XMLName    xml.Name `xml:"response"`
	Total      int      `xml:"total"`
	SearchID   string   `xml:"search_id"`
	Collection struct {
		Records []marc.Record `xml:"record"`
	} `xml:"collection"`
}

// Search runs a single search request and returns one page of results.
// A non-empty searchID continues a previous search from its cursor; an
// empty searchID starts a new one.
func (c *Client) Search(ctx context.Context, query *model.SearchQuery, searchID string) (*SearchPage, error) {
	params := url.Values{}
	if query.Pattern != "" {
		params.Set("p", query.Pattern)
	}
	if query.Collection != "" {
		params.Set("c", query.Collection)
	}
	if query.Sort != "" {
		params.Set("sort", query.Sort)
	}
	params.Set("rg", strconv.Itoa(query.EffectivePageSize()))
	params.Set("format", "xml")
	if searchID != "" {
		// The cursor replaces the original query parameters' role in
		// positioning: the server remembers the query and hands out the
		// next slice for this search_id.
		params.Set("search_id", searchID)
	}

	return c.fetchPage(ctx, params)
}

// Count returns the total number of records matching the query without
// harvesting them. It requests a single record (rg=1) and reads the
// total from the response envelope.
func (c *Client) Count(ctx context.Context, query *model.SearchQuery) (int, error) {
	counting := *query
	counting.PageSize = 1

	page, err := c.Search(ctx, &counting, "")
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// fetchPage performs one logical page fetch, retrying retryable
// failures (429, 5xx) on an exponential backoff schedule. A server
// Retry-After overrides the computed interval.
func (c *Client) fetchPage(ctx context.Context, params url.Values) (*SearchPage, error) {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = c.retryInitialWait
	schedule.MaxInterval = c.retryMaxWait
	schedule.MaxElapsedTime = 0 // the attempt counter bounds the loop
	schedule.Reset()

	var attempt int
	for {
		page, err := c.attempt(ctx, params)
		if err == nil {
			return page, nil
		}

		var statusErr *StatusError
		canRetry := errors.As(err, &statusErr) && statusErr.retryable()
		if !canRetry || attempt >= c.maxRetries {
			return nil, err
		}

		wait := schedule.NextBackOff()
		if statusErr.RetryAfter > 0 {
			wait = statusErr.RetryAfter
		}
		attempt++
		c.logger.WithFields(logrus.Fields{
			"status":  statusErr.StatusCode,
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("UNDL API request throttled, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, model.WrapCLIError(model.ExitGeneralError, "harvest cancelled", ctx.Err())
		}
	}
}

// attempt performs exactly one HTTP request and decodes the response.
func (c *Client) attempt(ctx context.Context, params url.Values) (*SearchPage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "harvest cancelled", err)
		}
	}

	endpoint := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "building search request", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitAPIUnreachable,
			"UNDL API is not reachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decoding.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Drain so the connection can be reused before returning.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, model.WrapCLIError(model.ExitNoCredentials,
			"UNDL API rejected the key", &StatusError{StatusCode: resp.StatusCode})
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, model.WrapCLIError(model.ExitRateLimited,
			"UNDL API rate limit hit", &StatusError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			})
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("UNDL API request failed with status %d", resp.StatusCode),
			&StatusError{StatusCode: resp.StatusCode})
	}

	var envelope searchEnvelope
	if err := xml.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, model.WrapCLIError(model.ExitParseError,
			"decoding UNDL search response", err)
	}

	return &SearchPage{
		Total:    envelope.Total,
		SearchID: envelope.SearchID,
		Records:  envelope.Collection.Records,
	}, nil
}

// parseRetryAfter interprets a Retry-After header value as a delay in
// seconds. HTTP-date values and garbage yield zero, leaving the backoff
// schedule in charge.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
