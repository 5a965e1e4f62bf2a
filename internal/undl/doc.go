// Package undl is the client for the UN Digital Library search API
// (https://digitallibrary.un.org/api/v1/search).
//
// The API returns MARC21 slim records and paginates with a server-side
// cursor: the first response carries a search_id, and each follow-up
// request presents that search_id to receive the next page. The client
// handles:
//   - Token authentication ("Authorization: Token <key>")
//   - Cursor pagination until the result set is exhausted
//   - Client-side request rate limiting (golang.org/x/time/rate)
//   - Bounded exponential backoff on 429 and 5xx responses, honoring
//     Retry-After when the server provides one
//   - Progress logging through logrus as records accumulate
//
// Errors crossing the package boundary are model.CLIError values so the
// CLI layer can map failure classes onto process exit codes.
package undl
