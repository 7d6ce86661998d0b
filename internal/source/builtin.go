package source

import (
	"context"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/model"
)

// BuiltinAdapter handles the Builtin source: a package that ships with the
// language runtime needs no fetch, build, or link step at all.
type BuiltinAdapter struct{}

func (a *BuiltinAdapter) Install(ctx context.Context, dep *model.ResolvedDependency, facade *cache.Facade, libraryDir string, runner BuildRunner, configureArgs []string) (Installed, error) {
	return Installed{Kind: model.KindBinary}, nil
}
