package types

import (
	"fmt"
	"time"
)

// SourceKind represents the kind of data source
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceRest SourceKind = "rest_api"
	SourcePDF  SourceKind = "pdf"
	SourceHTML SourceKind = "html"
)

// SourceConfig declares a pollable data source. Identical declarations
// (same kind, uri and interval) collapse to a single poller, so the tuple
// returned by Key is the identity used for reference counting.
type SourceConfig struct {
	SourceID     string     `json:"source_id,omitempty"` // derived from Key when empty
	Kind         SourceKind `json:"kind"`
	URI          string     `json:"uri_or_path"`
	PollInterval Duration   `json:"poll_interval"`
	ParserHint   string     `json:"parser_hint,omitempty"`
	TTL          Duration   `json:"ttl,omitempty"` // cache lifetime, defaulted by the ingest manager
}

// Key returns the canonical identity tuple for reference counting
func (c SourceConfig) Key() string {
	return fmt.Sprintf("%s|%s|%s", c.Kind, c.URI, time.Duration(c.PollInterval))
}

// Valid reports whether the declaration is complete enough to poll
func (c SourceConfig) Valid() bool {
	switch c.Kind {
	case SourceFile, SourceRest, SourcePDF, SourceHTML:
	default:
		return false
	}
	return c.URI != "" && c.PollInterval > 0
}

// SourceState represents poller health
type SourceState string

const (
	SourceActive   SourceState = "active"
	SourceBackoff  SourceState = "backoff"
	SourceDegraded SourceState = "degraded"
	SourceStopped  SourceState = "stopped"
)

// SourceInfo is the observable status of one tracked source
type SourceInfo struct {
	Config    SourceConfig `json:"config"`
	State     SourceState  `json:"state"`
	Refs      int          `json:"refs"`
	Failures  int          `json:"failures"`
	LastError string       `json:"last_error,omitempty"`
	LastFetch time.Time    `json:"last_fetch,omitempty"`
	NextPoll  time.Time    `json:"next_poll,omitempty"`
}
