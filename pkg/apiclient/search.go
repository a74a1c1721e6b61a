package apiclient

import (
	"net/url"
	"strconv"
	"strings"
)

// SearchResult is the answer to a search.
type SearchResult struct {
	Query []string `json:"query"`
	Items []Item   `json:"items"`
}

// Search returns the items matching every term. A zero limit uses the
// server default.
func (c *Client) Search(ws string, terms []string, limit int) (*SearchResult, error) {
	q := url.Values{"q": {strings.Join(terms, " ")}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return getResource[SearchResult](c, withQuery(workspacePath(ws, "search"), q))
}
