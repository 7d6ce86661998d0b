// Package sync is the orchestration core that reconciles a resolved
// dependency set against the current project library, then drives the
// Build Planner's worker pool to install whatever is missing into a
// staging directory before promoting it atomically.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
	"golang.org/x/sync/semaphore"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/library"
	"github.com/a2-ai/rv/internal/link"
	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/plan"
	"github.com/a2-ai/rv/internal/source"
	"github.com/a2-ai/rv/internal/version"
)

// NumWorkersEnvVar overrides the worker-pool size; unset or invalid falls
// back to the logical CPU count.
const NumWorkersEnvVar = "NUM_CPUS"

// Action distinguishes what happened to a package during a run.
type Action int

const (
	ActionInstalled Action = iota
	ActionRemoved
)

// Change is one entry of a Sync Handler run's result.
type Change struct {
	Name    string
	Action  Action
	Version version.Version
	Source  model.Source
	Kind    model.PackageKind
	Timing  time.Duration
}

func (c Change) String() string {
	if c.Action == ActionRemoved {
		return "- " + c.Name
	}
	base := fmt.Sprintf("+ %s (%s, %s from %s)", c.Name, c.Version.String(), c.Kind, c.Source.String())
	if c.Timing > 0 {
		base += fmt.Sprintf(" in %dms", c.Timing.Milliseconds())
	}
	return base
}

// Handler owns one sync run end to end.
type Handler struct {
	ProjectDir    string
	LibraryDir    string
	StagingDir    string
	Library       *model.Library
	Cache         *cache.Facade
	Platform      cache.Platform
	Rewriter      *source.BinaryURLRewriter
	Runner        source.BuildRunner
	ConfigureArgs map[string][]string // per-package configure args, looked up by name
	Workers       int
	UsesLockfile  bool
	DryRun        bool

	// OpenFiles, if set, reports names of packages currently held open
	// under the library path. Left nil on platforms where the check is
	// unavailable.
	OpenFiles func(libraryDir string) (map[string]bool, error)
}

func (h *Handler) numWorkers() int {
	if h.Workers > 0 {
		return h.Workers
	}
	if v := os.Getenv(NumWorkersEnvVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

func (h *Handler) configureArgsFor(name string) []string {
	return h.ConfigureArgs[name]
}

// classification is the output of comparing the library against the
// resolved set.
type classification struct {
	seen      map[string]bool // already correctly installed, not re-scheduled
	toCopy    map[string]bool // local packages whose source is unchanged, copy don't rebuild
	toRemove  map[string]bool // library entries to delete (not in resolved set)
	toNotify  map[string]bool // subset of toRemove worth reporting (excludes broken-only noise)
}

// classify partitions the library into already-installed, copy-in-place,
// and to-remove buckets relative to the resolved dependency set.
func classify(lib *model.Library, resolved []*model.ResolvedDependency, projectDir string, usesLockfile bool) (*classification, error) {
	c := &classification{
		seen:     map[string]bool{},
		toCopy:   map[string]bool{},
		toRemove: map[string]bool{},
		toNotify: map[string]bool{},
	}
	byName := make(map[string]*model.ResolvedDependency, len(resolved))
	for _, d := range resolved {
		byName[d.Name] = d
	}

	libNames := make([]string, 0, len(lib.Packages)+len(lib.NonRepoPackages))
	for name := range lib.Packages {
		libNames = append(libNames, name)
	}
	for name := range lib.NonRepoPackages {
		libNames = append(libNames, name)
	}

	for _, name := range libNames {
		dep, ok := byName[name]
		if !ok || dep.Ignored {
			c.toRemove[name] = true
			c.toNotify[name] = true
			continue
		}
		contains, err := library.ContainsPackage(lib, dep, projectDir)
		if err != nil {
			return nil, err
		}
		if !contains {
			c.toRemove[name] = true
			c.toNotify[name] = true
			continue
		}

		switch dep.Source.Kind {
		case model.SourceRepository:
			if !usesLockfile || dep.FromLockfile {
				c.seen[name] = true
			}
		case model.SourceGit, model.SourceURL:
			c.seen[name] = true
		case model.SourceLocal:
			c.toCopy[name] = true
			c.seen[name] = true
		}
	}

	for _, d := range resolved {
		if d.Source.Kind == model.SourceBuiltin {
			c.seen[d.Name] = true
		}
	}

	for name := range lib.Broken {
		c.toRemove[name] = true
	}

	return c, nil
}

// Result is the outcome of a successful Run.
type Result struct {
	Changes []Change
}

// Run executes the full sync algorithm over resolved: classify the library,
// check for in-use files, install or copy whatever is missing, and promote
// the result atomically.
func (h *Handler) Run(ctx context.Context, resolved []*model.ResolvedDependency, token *Token) (*Result, error) {
	if token == nil {
		token = NewToken(ctx)
	}
	if token.State() != StateRunning {
		return &Result{}, nil
	}

	if err := os.RemoveAll(h.StagingDir); err != nil {
		return nil, errors.Wrap(err, "removing stale staging directory")
	}
	if err := os.MkdirAll(h.LibraryDir, 0o777); err != nil {
		return nil, errors.Wrap(err, "creating library directory")
	}

	stagingLock := flock.NewFlock(h.StagingDir + ".lock")
	locked, err := stagingLock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "locking staging directory")
	}
	if !locked {
		return nil, apperr.New(apperr.KindLibraryInUse, "", "another sync is already running against this staging directory")
	}
	defer func() { _ = stagingLock.Unlock() }()

	cls, err := classify(h.Library, resolved, h.ProjectDir, h.UsesLockfile)
	if err != nil {
		return nil, err
	}

	seenNames := make([]string, 0, len(cls.seen))
	for name := range cls.seen {
		seenNames = append(seenNames, name)
	}
	p := plan.New(resolved, seenNames)
	numToInstall := p.NumToInstall()
	needsSync := numToInstall > 0

	var changes []Change
	if len(cls.toRemove) > 0 && h.OpenFiles != nil {
		inUse, err := h.OpenFiles(h.LibraryDir)
		if err == nil && len(inUse) > 0 {
			var busy []string
			for name := range cls.toRemove {
				if inUse[name] {
					busy = append(busy, name)
				}
			}
			if len(busy) > 0 {
				sort.Strings(busy)
				return nil, apperr.New(apperr.KindLibraryInUse, "", "packages loaded in a running session: "+joinNames(busy))
			}
		}
	}

	// Deletions for entries we're removing can happen immediately only
	// when nothing else needs installing; otherwise they wait until after
	// a successful promotion so a mid-run failure never leaves the library
	// in a half-cleaned state.
	if !needsSync {
		for name := range cls.toRemove {
			if !cls.toNotify[name] {
				continue
			}
			if !h.DryRun {
				if err := os.RemoveAll(filepath.Join(h.LibraryDir, name)); err != nil {
					return nil, errors.Wrapf(err, "removing %s from library", name)
				}
			}
			changes = append(changes, Change{Name: name, Action: ActionRemoved})
		}
		sortChanges(changes)
		return &Result{Changes: changes}, nil
	}

	if err := os.MkdirAll(h.StagingDir, 0o777); err != nil {
		return nil, errors.Wrap(err, "creating staging directory")
	}

	byName := make(map[string]*model.ResolvedDependency, len(resolved))
	for _, d := range resolved {
		byName[d.Name] = d
	}

	result, err := h.runWorkers(ctx, token, p, byName, cls)
	if err != nil {
		_ = os.RemoveAll(h.StagingDir)
		return nil, err
	}

	if h.DryRun {
		_ = os.RemoveAll(h.StagingDir)
		sortChanges(result)
		return &Result{Changes: result}, nil
	}

	for name := range cls.toRemove {
		if !cls.toNotify[name] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(h.LibraryDir, name)); err != nil {
			return nil, errors.Wrapf(err, "removing %s from library", name)
		}
		result = append(result, Change{Name: name, Action: ActionRemoved})
	}

	if err := promote(h.StagingDir, h.LibraryDir, cls.seen); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(h.StagingDir); err != nil {
		return nil, errors.Wrap(err, "removing staging directory after promotion")
	}

	sortChanges(result)
	return &Result{Changes: result}, nil
}

// runWorkers drives the Build Planner's worker pool: enqueueReady drains
// newly-ready names from the plan into a ready channel buffered to the
// number of dependencies; a semaphore of weight numWorkers
// (golang.org/x/sync/semaphore) bounds how many install/copy goroutines
// run at once; results land on an equally buffered done channel consumed
// by the loop below.
func (h *Handler) runWorkers(ctx context.Context, token *Token, p *plan.Plan, byName map[string]*model.ResolvedDependency, cls *classification) ([]Change, error) {
	type doneEvent struct {
		change Change
		err    error
		name   string
	}

	ready := make(chan *model.ResolvedDependency, len(byName))
	done := make(chan doneEvent, len(byName))

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(h.numWorkers()))

	// enqueueReady drains every currently-ready name from the plan into the
	// ready channel. Called once up front and again after each completion
	// lands: since the plan only produces new ready names in reaction to a
	// MarkInstalled call made under mu, there is no need for a separate
	// polling scheduler goroutine.
	enqueueReady := func() {
		mu.Lock()
		defer mu.Unlock()
		for {
			action, d := p.Get()
			if action != plan.ActionInstall {
				return
			}
			ready <- byName[d.Name]
		}
	}
	enqueueReady()

	var errOnce sync.Once
	var firstErr error
	var installedCount int
	target := p.NumToInstall()

	results := make([]Change, 0, target)

consume:
	for installedCount < target {
		select {
		case dep, ok := <-ready:
			if !ok {
				break consume
			}
			if token.State() != StateRunning {
				break consume
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				break consume
			}
			wg.Add(1)
			go func(dep *model.ResolvedDependency) {
				defer wg.Done()
				defer sem.Release(1)
				start := time.Now()
				var workErr error
				if cls.toCopy[dep.Name] {
					workErr = h.copyPackage(dep)
				} else {
					workErr = h.installPackage(ctx, token, dep)
				}
				done <- doneEvent{
					name: dep.Name,
					err:  workErr,
					change: Change{
						Name:    dep.Name,
						Action:  ActionInstalled,
						Version: dep.Version,
						Source:  dep.Source,
						Kind:    dep.Kind,
						Timing:  time.Since(start),
					},
				}
			}(dep)
		case ev := <-done:
			if ev.err != nil {
				errOnce.Do(func() { firstErr = apperr.New(apperr.KindBuildFailure, ev.name, ev.err.Error()) })
				break consume
			}
			mu.Lock()
			p.MarkInstalled(ev.name)
			mu.Unlock()
			enqueueReady()
			installedCount++
			if !cls.seen[ev.name] {
				results = append(results, ev.change)
			}
		}
	}

	wg.Wait()
	close(ready)
	close(done)

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (h *Handler) copyPackage(dep *model.ResolvedDependency) error {
	if h.DryRun {
		return nil
	}
	src := filepath.Join(h.LibraryDir, dep.Name)
	dst := filepath.Join(h.StagingDir, dep.Name)
	_, err := link.Place(link.StrategyCopy, src, dst)
	return err
}

func (h *Handler) installPackage(ctx context.Context, token *Token, dep *model.ResolvedDependency) error {
	if h.DryRun {
		return nil
	}
	adapter := source.ForSource(dep.Source, h.Platform, nil, h.Rewriter)
	installCtx := token.HardContext()
	_, err := adapter.Install(installCtx, dep, h.Cache, h.StagingDir, h.Runner, h.configureArgsFor(dep.Name))
	return err
}

// promote moves every staged package directory into the library,
// overwriting a pre-existing copy, skipping names already marked seen
// (those were never staged to begin with). Directory promotion is a plain
// os.Rename, atomic within one filesystem; a small sentinel file recording
// the promotion's completion is written through renameio so a crash
// between individual directory renames leaves unambiguous on-disk
// evidence of how far the promotion got.
func promote(stagingDir, libraryDir string, seen map[string]bool) error {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return errors.Wrap(err, "reading staging directory")
	}
	for _, e := range entries {
		if !e.IsDir() || seen[e.Name()] {
			continue
		}
		src := filepath.Join(stagingDir, e.Name())
		dst := filepath.Join(libraryDir, e.Name())
		if isDir(dst) {
			if err := os.RemoveAll(dst); err != nil {
				return errors.Wrapf(err, "removing existing library entry %s", e.Name())
			}
		}
		if err := os.Rename(src, dst); err != nil {
			return errors.Wrapf(err, "promoting %s into library", e.Name())
		}
	}
	return renameio.WriteFile(filepath.Join(libraryDir, ".rv-promoted"), []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func sortChanges(changes []Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Name < changes[j].Name
	})
}
