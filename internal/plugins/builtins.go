package plugins

import (
	"time"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// Built-in plugin IDs
const (
	PluginClock       = "clock"
	PluginRestTable   = "rest-table"
	PluginStats       = "stats"
	PluginFileViewer  = "file-viewer"
	PluginPDFViewer   = "pdf-viewer"
	PluginScrapePanel = "scrape-panel"
)

// Builtins returns the manifests of the built-in widget set, ready for
// seeding into a registry. The slice is rebuilt on every call so callers may
// mutate their copy.
func Builtins() []types.PluginManifest {
	return []types.PluginManifest{
		{
			PluginID:    PluginClock,
			DisplayName: "World Clock",
			Description: "Time and date across a configurable set of IANA zones",
			Factory:     newClock,
		},
		{
			PluginID:    PluginRestTable,
			DisplayName: "REST API Table",
			Description: "Rows from a polled JSON endpoint",
			Factory:     newRestTable,
		},
		{
			PluginID:    PluginStats,
			DisplayName: "Statistics",
			Description: "Descriptive statistics over a numeric series",
			Factory:     newStats,
		},
		{
			PluginID:    PluginFileViewer,
			DisplayName: "File Viewer",
			Description: "Tail of a watched local file",
			Factory:     newFileViewer,
		},
		{
			PluginID:    PluginPDFViewer,
			DisplayName: "PDF Viewer",
			Description: "Extracted text pages of a local PDF document",
			Factory:     newPDFViewer,
		},
		{
			PluginID:    PluginScrapePanel,
			DisplayName: "Scrape Panel",
			Description: "CSS-selected fragments of a scraped web page",
			Factory:     newScrapePanel,
		},
	}
}

// adoptSource resolves which source a refresh should read. A non-empty
// trigger re-points the widget at that source; an empty trigger falls back
// to the last known binding.
func adoptSource(held *string, trigger string) string {
	if trigger != "" {
		*held = trigger
	}
	return *held
}

// intervalOrDefault substitutes def for unset or non-positive intervals
func intervalOrDefault(d types.Duration, def time.Duration) types.Duration {
	if d > 0 {
		return d
	}
	return types.Duration(def)
}
