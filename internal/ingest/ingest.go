// Package ingest implements the payload adapter layer. It defines an
// Adapter interface and a central registry that routes raw provider
// payloads to the adapter registered for that provider id. Adapters are
// the single extension point for new providers: adding one means
// registering it, never branching on payload shape at call sites.
package ingest

import (
	"fmt"

	"github.com/abralabs/abra/pkg/models"
)

// PayloadKind is the closed set of canonical shapes an adapter produces.
type PayloadKind string

const (
	PayloadTimeSeries    PayloadKind = "timeseries"
	PayloadSearchResults PayloadKind = "searchresults"
)

// Query carries the context an adapter needs to stamp canonical records.
type Query struct {
	EntityID string
	Channel  models.Channel
	Country  string
}

// Result is the closed variant returned by Normalize: exactly one of
// Series or Results is non-nil, matching the adapter's declared kind.
type Result struct {
	Series  *models.TimeSeries
	Results *models.SearchResultSet
}

// Kind reports which variant the result holds.
func (r *Result) Kind() PayloadKind {
	if r.Series != nil {
		return PayloadTimeSeries
	}
	return PayloadSearchResults
}

// AdapterInfo holds metadata about a registered adapter.
type AdapterInfo struct {
	ID          string           `json:"id"`          // provider id, e.g. "serptrends"
	Description string           `json:"description"` // human-readable description
	Produces    PayloadKind      `json:"produces"`
	Channels    []models.Channel `json:"channels"` // channels this adapter can serve
}

// Adapter converts one provider's raw payload into a canonical record.
// Implementations must be pure: no network, no shared mutable state.
type Adapter interface {
	// Info returns metadata about this adapter.
	Info() AdapterInfo

	// Normalize parses raw into the canonical shape declared by Info.
	// A schema violation returns *MalformedPayloadError scoped to this
	// single payload.
	Normalize(raw []byte, q Query) (*Result, error)
}

// MalformedPayloadError reports a schema violation in a single payload.
// It never affects sibling payloads, channels or entities.
type MalformedPayloadError struct {
	Provider string
	Field    string
	Detail   string
}

func (e *MalformedPayloadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed payload from %q: field %s: %s", e.Provider, e.Field, e.Detail)
	}
	return fmt.Sprintf("malformed payload from %q: %s", e.Provider, e.Detail)
}

// ErrAdapterNotFound is returned when no adapter is registered for a
// provider id.
type ErrAdapterNotFound struct {
	ID string
}

func (e *ErrAdapterNotFound) Error() string {
	return fmt.Sprintf("adapter %q not found", e.ID)
}
