// Package providers registers all concrete payload adapters with the
// global adapter registry.
package providers

import (
	"github.com/abralabs/abra/internal/ingest"
	"github.com/abralabs/abra/internal/ingest/providers/newsfeed"
	"github.com/abralabs/abra/internal/ingest/providers/serpsearch"
	"github.com/abralabs/abra/internal/ingest/providers/serptrends"
	"github.com/abralabs/abra/internal/ingest/providers/shophtml"
)

// RegisterAll registers every built-in adapter with the global registry.
func RegisterAll() error {
	return RegisterAllTo(ingest.Global())
}

// RegisterAllTo registers every built-in adapter to the given registry.
func RegisterAllTo(reg *ingest.Registry) error {
	adapters := []ingest.Adapter{
		serptrends.New(),
		serpsearch.New(),
		newsfeed.New(),
		shophtml.New(),
	}
	for _, a := range adapters {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}
