package ingest

import (
	"context"
	"fmt"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// restFetcher polls JSON-speaking HTTP endpoints
type restFetcher struct {
	client *Client
}

func (f *restFetcher) Kind() types.SourceKind {
	return types.SourceRest
}

func (f *restFetcher) Fetch(ctx context.Context, cfg types.SourceConfig) (*Result, error) {
	resp, err := f.client.Get(ctx, cfg.URI, "application/json")
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", types.ErrFetchFailed, cfg.URI, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: get %s: %s", types.ErrFetchFailed, cfg.URI, resp.Status())
	}

	raw := resp.Body()
	payload, format, err := Structured(raw, resp.Header().Get("Content-Type"), cfg.ParserHint)
	if err != nil {
		return nil, err
	}

	return &Result{
		Raw:       raw,
		Payload:   payload,
		MediaType: format,
		Meta: map[string]interface{}{
			"status":     resp.StatusCode(),
			"elapsed_ms": resp.Time().Milliseconds(),
		},
	}, nil
}
