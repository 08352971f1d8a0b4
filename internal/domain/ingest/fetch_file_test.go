package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inthisone/dashcore/internal/shared/types"
)

func fileDecl(path, hint string) types.SourceConfig {
	return types.SourceConfig{
		Kind:         types.SourceFile,
		URI:          path,
		PollInterval: types.Duration(0),
		ParserHint:   hint,
	}
}

func TestFileFetcherJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rows": 5}`), 0o644))

	f := &fileFetcher{}
	res, err := f.Fetch(context.Background(), fileDecl(path, "json"))
	require.NoError(t, err)

	assert.Equal(t, "json", res.MediaType)
	doc := res.Payload.(map[string]interface{})
	assert.Equal(t, float64(5), doc["rows"])
	assert.Equal(t, []byte(`{"rows": 5}`), res.Raw)

	assert.Equal(t, path, res.Meta["path"])
	assert.Equal(t, int64(11), res.Meta["size"])
	assert.NotNil(t, res.Meta["modified"])
}

func TestFileFetcherSniffsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte(`[1, 2, 3]`), 0o644))

	f := &fileFetcher{}
	res, err := f.Fetch(context.Background(), fileDecl(path, ""))
	require.NoError(t, err)

	assert.Equal(t, "json", res.MediaType)
}

func TestFileFetcherDefaultsToText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0o644))

	f := &fileFetcher{}
	res, err := f.Fetch(context.Background(), fileDecl(path, ""))
	require.NoError(t, err)

	assert.Equal(t, "text", res.MediaType)
	doc := res.Payload.(map[string]interface{})
	assert.Equal(t, "first\nsecond\n", doc["text"])
}

func TestFileFetcherMissing(t *testing.T) {
	f := &fileFetcher{}
	_, err := f.Fetch(context.Background(), fileDecl(filepath.Join(t.TempDir(), "gone.txt"), ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFetchFailed)
}

func TestFileFetcherRejectsDirectory(t *testing.T) {
	f := &fileFetcher{}
	_, err := f.Fetch(context.Background(), fileDecl(t.TempDir(), ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFetchFailed)
}

func TestFileFetcherParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	f := &fileFetcher{}
	_, err := f.Fetch(context.Background(), fileDecl(path, "json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrParseFailed)
}

func TestPDFFetcherMissing(t *testing.T) {
	f := &pdfFetcher{}
	cfg := types.SourceConfig{Kind: types.SourcePDF, URI: filepath.Join(t.TempDir(), "gone.pdf")}
	_, err := f.Fetch(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFetchFailed)
}

func TestPDFFetcherMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	f := &pdfFetcher{}
	cfg := types.SourceConfig{Kind: types.SourcePDF, URI: path}
	_, err := f.Fetch(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrParseFailed)
}
