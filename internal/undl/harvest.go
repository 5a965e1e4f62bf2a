package undl

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dhl-metadata/unlibmd/internal/marc"
	"github.com/dhl-metadata/unlibmd/internal/model"
)

// PageFunc receives each page of records as it arrives. Returning an
// error aborts the harvest; the error is passed through unchanged.
type PageFunc func(page *SearchPage) error

// HarvestStats summarizes a completed harvest.
type HarvestStats struct {
	// Total is the number of records the API reported for the query.
	Total int `json:"total"`

	// Fetched is the number of records actually delivered to the page
	// callback. Less than Total when MaxRecords capped the harvest.
	Fetched int `json:"fetched"`

	// Pages is the number of API requests that returned records.
	Pages int `json:"pages"`
}

// Harvest retrieves every record matching the query, streaming pages to
// fn as they arrive. Pagination follows the search_id cursor: the first
// request carries the query, every later request carries the cursor.
// The harvest stops when a page comes back empty, when Fetched reaches
// the reported total, or when query.MaxRecords is hit.
func (c *Client) Harvest(ctx context.Context, query *model.SearchQuery, fn PageFunc) (*HarvestStats, error) {
	if err := query.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidQuery, "invalid search query", err)
	}

	stats := &HarvestStats{}
	searchID := ""
	nextProgress := c.progressInterval

	for {
		page, err := c.Search(ctx, query, searchID)
		if err != nil {
			return stats, err
		}

		if searchID == "" {
			// First page: the total is now known.
			stats.Total = page.Total
			c.logger.WithField("total", page.Total).Info("UNDL search matched")
			if page.Total == 0 {
				// No hits. The API omits search_id here; there is
				// nothing to paginate.
				return stats, nil
			}
		}

		if len(page.Records) == 0 {
			// Past the end of the result set.
			return stats, nil
		}

		// Apply the MaxRecords cap before handing the page over, so the
		// callback never sees more records than requested.
		records := page.Records
		if query.MaxRecords > 0 {
			remaining := query.MaxRecords - stats.Fetched
			if remaining <= 0 {
				return stats, nil
			}
			if len(records) > remaining {
				records = records[:remaining]
			}
		}

		stats.Pages++
		stats.Fetched += len(records)
		if len(records) < len(page.Records) {
			page = &SearchPage{Total: page.Total, SearchID: page.SearchID, Records: records}
		}

		if err := fn(page); err != nil {
			return stats, err
		}

		for stats.Fetched >= nextProgress {
			c.logger.WithFields(logrus.Fields{
				"fetched": stats.Fetched,
				"total":   stats.Total,
			}).Info("harvest progress")
			nextProgress += c.progressInterval
		}

		if stats.Fetched >= stats.Total {
			return stats, nil
		}
		if query.MaxRecords > 0 && stats.Fetched >= query.MaxRecords {
			return stats, nil
		}

		searchID = page.SearchID
		if searchID == "" {
			// Without a cursor the next request would restart from page
			// one and loop forever.
			return stats, model.NewCLIError(model.ExitParseError,
				"UNDL API response is missing the pagination cursor")
		}
	}
}

// HarvestAll retrieves every matching record into memory and returns
// them alongside the harvest statistics. Convenient for small result
// sets; large harvests should stream through Harvest instead.
func (c *Client) HarvestAll(ctx context.Context, query *model.SearchQuery) ([]marc.Record, *HarvestStats, error) {
	var records []marc.Record
	stats, err := c.Harvest(ctx, query, func(page *SearchPage) error {
		records = append(records, page.Records...)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return records, stats, nil
}
