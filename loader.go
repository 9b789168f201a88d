package formrules

import (
	internalLoader "github.com/goliatone/go-formrules/internal/loader"
	"github.com/goliatone/go-formrules/pkg/schema"
)

// NewLoader constructs a loader using the internal implementation while keeping
// the concrete type hidden from consumers.
func NewLoader(options ...schema.LoaderOption) schema.Loader {
	cfg := schema.NewLoaderOptions(options...)
	return internalLoader.New(cfg)
}
