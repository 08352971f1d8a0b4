package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// fileFetcher reads local files. Files without a hint are format-sniffed;
// yaml and toml files need to declare themselves.
type fileFetcher struct{}

func (f *fileFetcher) Kind() types.SourceKind {
	return types.SourceFile
}

func (f *fileFetcher) Fetch(ctx context.Context, cfg types.SourceConfig) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFetchFailed, err)
	}

	path := filepath.Clean(cfg.URI)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", types.ErrFetchFailed, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", types.ErrFetchFailed, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrFetchFailed, path, err)
	}

	payload, format, err := Structured(raw, "", cfg.ParserHint)
	if err != nil {
		return nil, err
	}

	return &Result{
		Raw:       raw,
		Payload:   payload,
		MediaType: format,
		Meta: map[string]interface{}{
			"path":     path,
			"size":     info.Size(),
			"modified": info.ModTime(),
		},
	}, nil
}
