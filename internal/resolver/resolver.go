package resolver

import (
	"context"
	"path/filepath"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/repodb"
	"github.com/a2-ai/rv/internal/version"
)

// RepoEntry pairs a manifest-declared repository with its loaded database,
// in manifest order (earlier entries win ties).
type RepoEntry struct {
	Config model.RepositoryConfig
	DB     *repodb.Database
}

// Resolver walks the dependency graph of a manifest's declared
// dependencies, producing Resolved and Unresolved Dependencies.
type Resolver struct {
	Repos           []RepoEntry
	LanguageVersion version.Version
	Lockfile        *model.Lockfile
	Descriptors     Descriptors
	Cache           *cache.Facade
	ProjectDir      string
}

// workItem is one entry in the BFS queue.
type workItem struct {
	name            string
	req             *version.Requirement
	installSuggests bool
	forceSource     bool
	parent          string
	repoAlias       string
	entry           *model.ManifestDependency // only set for manifest-rooted items
}

// reqFact records a single (name, requirement, required_by) edge
// encountered during the walk, fodder for the SAT post-pass.
type reqFact struct {
	name       string
	req        *version.Requirement
	requiredBy string
}

// Result is the outcome of a Resolve call.
type Result struct {
	Found    []*model.ResolvedDependency
	Failed   []model.UnresolvedDependency
	Conflict Conflict // non-nil only when the SAT post-pass found a conflict
}

// Resolve runs a breadth-first walk over deps (typically a manifest's
// dependency list) and, if that walk completes without fatal errors, a
// SAT conflict-diagnosis pass over the resulting found set.
func (r *Resolver) Resolve(ctx context.Context, deps []model.ManifestDependency) (*Result, error) {
	queue := make([]workItem, 0, len(deps))
	for i := range deps {
		d := deps[i]
		queue = append(queue, workItem{
			name:            d.Name,
			installSuggests: d.InstallSuggestions,
			forceSource:     d.ForceSource,
			repoAlias:       d.Repository,
			entry:           &d,
		})
	}

	processed := map[string]bool{}
	var found []*model.ResolvedDependency
	var failed []model.UnresolvedDependency
	var facts []reqFact

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if model.IsExcluded(item.name) {
			continue
		}

		// Requirement facts are recorded even for a name that was already
		// dispatched on an earlier queue entry: a later, conflicting
		// requirement against an already-resolved name is exactly what the
		// SAT post-pass needs to see.
		if item.req != nil {
			facts = append(facts, reqFact{name: item.name, req: item.req, requiredBy: item.parent})
		}

		if processed[item.name] {
			continue
		}
		processed[item.name] = true

		if r.Lockfile != nil {
			if locked, ok := r.Lockfile.Get(item.name); ok && lockfileCompatible(item, locked) {
				rd := resolvedFromLocked(locked)
				found = append(found, rd)
				queue = append(queue, childItems(rd, item.installSuggests)...)
				continue
			}
		}

		rd, next, err := r.dispatch(ctx, item)
		if err != nil {
			failed = append(failed, model.UnresolvedDependency{
				Name:   item.name,
				Req:    item.req,
				Err:    err.Error(),
				Parent: item.parent,
			})
			continue
		}
		found = append(found, rd)
		queue = append(queue, next...)
	}

	result := &Result{Found: found, Failed: failed}

	if conflict := Diagnose(found, facts); conflict != nil {
		result.Conflict = conflict
		return result, &apperr.ResolutionError{Conflicts: conflict}
	}

	return result, nil
}

// lockfileCompatible is the short-circuit guard: a lockfile entry is used
// unless the manifest entry's declared source kind materially differs
// (e.g. the manifest now points to git where the lockfile has a
// repository entry).
func lockfileCompatible(item workItem, locked model.LockedPackage) bool {
	if item.entry == nil {
		// A transitive dependency queued with just a name: any lockfile
		// source is compatible, it was never pinned to a particular kind.
		return true
	}
	declared := item.entry.SourceKind()
	if declared == model.SourceRepository {
		return locked.Source.Kind == model.SourceRepository
	}
	switch declared {
	case model.SourceGit:
		return locked.Source.Kind == model.SourceGit && item.entry.Git != nil && locked.Source.GitURL == item.entry.Git.URL
	case model.SourceLocal:
		return locked.Source.Kind == model.SourceLocal && locked.Source.LocalPath == item.entry.Path
	case model.SourceURL:
		return locked.Source.Kind == model.SourceURL && locked.Source.URL == item.entry.URL
	default:
		return true
	}
}

func resolvedFromLocked(locked model.LockedPackage) *model.ResolvedDependency {
	return &model.ResolvedDependency{
		Name:            locked.Name,
		Version:         locked.Version,
		Source:          locked.Source,
		Dependencies:    locked.Dependencies,
		Suggests:        locked.Suggests,
		ForceSource:     locked.ForceSource,
		InstallSuggests: locked.InstallSuggests,
		FromLockfile:    true,
		Kind:            model.KindSource,
		Subpath:         locked.Path,
	}
}

// childItems enqueues a Resolved Dependency's own dependencies (and,
// conditionally, its suggests) as plain name-only items.
func childItems(rd *model.ResolvedDependency, parentInstallSuggests bool) []workItem {
	items := make([]workItem, 0, len(rd.Dependencies))
	for _, name := range rd.Dependencies {
		items = append(items, workItem{name: name, parent: rd.Name})
	}
	if parentInstallSuggests {
		for _, name := range rd.Suggests {
			items = append(items, workItem{name: name, parent: rd.Name, installSuggests: true})
		}
	}
	return items
}

// dispatch is the source-kind dispatch for one work item, producing either
// a Resolved Dependency plus follow-on work items, or an error describing
// why no candidate was found.
func (r *Resolver) dispatch(ctx context.Context, item workItem) (*model.ResolvedDependency, []workItem, error) {
	if item.entry != nil {
		switch item.entry.SourceKind() {
		case model.SourceGit:
			return r.dispatchGit(ctx, item)
		case model.SourceLocal:
			return r.dispatchLocal(item)
		case model.SourceURL:
			return r.dispatchURL(ctx, item)
		}
	}
	return r.dispatchRepository(item)
}

func (r *Resolver) dispatchRepository(item workItem) (*model.ResolvedDependency, []workItem, error) {
	forceSource := item.forceSource
	for _, entry := range r.Repos {
		if item.repoAlias != "" && entry.Config.Alias != item.repoAlias {
			continue
		}
		fs := forceSource || entry.Config.ForceSource
		rec, kind := entry.DB.Find(item.name, item.req, r.LanguageVersion, fs)
		if rec == nil {
			continue
		}
		rd := &model.ResolvedDependency{
			Name:            rec.Name,
			Version:         rec.Version,
			Source:          model.RepositorySource(entry.Config.URL),
			Dependencies:    dependencyNames(rec.AllDependencies()),
			Suggests:        dependencyNames(rec.Suggests),
			ForceSource:     fs,
			InstallSuggests: item.installSuggests,
			Kind:            kindFromRepoDB(kind),
			Subpath:         rec.PathPrefix,
		}
		return rd, pinnedChildItems(rd.Name, rec.AllDependencies(), item.installSuggests, rec.Suggests), nil
	}
	return nil, nil, apperr.New(apperr.KindResolutionFailure, item.name, "no repository record satisfies the requirement")
}

func kindFromRepoDB(k repodb.Kind) model.PackageKind {
	if k == repodb.KindBinary {
		return model.KindBinary
	}
	return model.KindSource
}

// pinnedChildItems enqueues a record's dependencies with their pinned
// requirements copied in.
func pinnedChildItems(parent string, deps []model.Dependency, installSuggests bool, suggests []model.Dependency) []workItem {
	items := make([]workItem, 0, len(deps))
	for _, d := range deps {
		items = append(items, workItem{name: d.Name, req: d.Req, parent: parent})
	}
	if installSuggests {
		for _, d := range suggests {
			items = append(items, workItem{name: d.Name, req: d.Req, parent: parent, installSuggests: true})
		}
	}
	return items
}

func dependencyNames(deps []model.Dependency) []string {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	return names
}

func (r *Resolver) dispatchGit(ctx context.Context, item workItem) (*model.ResolvedDependency, []workItem, error) {
	pin := *item.entry.Git
	sha, rec, err := r.Descriptors.Git(ctx, pin, r.Cache)
	if err != nil {
		return nil, nil, err
	}
	rd := &model.ResolvedDependency{
		Name:            item.name,
		Version:         rec.Version,
		Source:          model.GitSource(pin.URL, sha, pin.Directory, pin.Ref()),
		Dependencies:    dependencyNames(rec.AllDependencies()),
		Suggests:        dependencyNames(rec.Suggests),
		ForceSource:     item.entry.ForceSource,
		InstallSuggests: item.installSuggests,
		Kind:            model.KindSource,
	}
	return rd, pinnedChildItems(rd.Name, rec.AllDependencies(), item.installSuggests, rec.Suggests), nil
}

func (r *Resolver) dispatchLocal(item workItem) (*model.ResolvedDependency, []workItem, error) {
	path := item.entry.Path
	rec, err := r.Descriptors.Local(r.ProjectDir, path)
	if err != nil {
		return nil, nil, err
	}
	var sha string
	if isArchivePath(path) {
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(r.ProjectDir, full)
		}
		sha = archiveDigest(full)
	}
	rd := &model.ResolvedDependency{
		Name:            item.name,
		Version:         rec.Version,
		Source:          model.LocalSource(path, sha),
		Dependencies:    dependencyNames(rec.AllDependencies()),
		Suggests:        dependencyNames(rec.Suggests),
		ForceSource:     item.entry.ForceSource,
		InstallSuggests: item.installSuggests,
		Kind:            model.KindSource,
	}
	return rd, pinnedChildItems(rd.Name, rec.AllDependencies(), item.installSuggests, rec.Suggests), nil
}

func (r *Resolver) dispatchURL(ctx context.Context, item workItem) (*model.ResolvedDependency, []workItem, error) {
	sha, rec, err := r.Descriptors.URL(ctx, item.entry.URL, r.Cache)
	if err != nil {
		return nil, nil, err
	}
	rd := &model.ResolvedDependency{
		Name:            item.name,
		Version:         rec.Version,
		Source:          model.URLSource(item.entry.URL, sha),
		Dependencies:    dependencyNames(rec.AllDependencies()),
		Suggests:        dependencyNames(rec.Suggests),
		InstallSuggests: item.installSuggests,
		Kind:            model.KindSource,
	}
	return rd, pinnedChildItems(rd.Name, rec.AllDependencies(), item.installSuggests, rec.Suggests), nil
}
