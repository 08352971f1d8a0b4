package ingest

import (
	"context"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// Result is the outcome of one fetch: the raw bytes for hashing and the
// parsed document widgets consume.
type Result struct {
	Raw       []byte
	Payload   interface{}
	MediaType string
	Meta      map[string]interface{}
}

// Fetcher retrieves and parses one source kind
type Fetcher interface {
	Kind() types.SourceKind
	Fetch(ctx context.Context, cfg types.SourceConfig) (*Result, error)
}

// DefaultFetchers builds the full fetcher set. Network kinds share the given
// client.
func DefaultFetchers(client *Client) []Fetcher {
	return []Fetcher{
		&restFetcher{client: client},
		&fileFetcher{},
		&pdfFetcher{},
		newHTMLFetcher(client),
	}
}
