// Command rv is the CLI front end for the dependency engine: it loads a
// project manifest and optional lockfile, resolves and syncs the project
// library, and writes back the lockfile the run produced. It dispatches a
// small set of named subcommands from os.Args.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/activation"
	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/cfg"
	"github.com/a2-ai/rv/internal/library"
	"github.com/a2-ai/rv/internal/manifest"
	"github.com/a2-ai/rv/internal/migrate"
	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/plantree"
	"github.com/a2-ai/rv/internal/rcmd"
	"github.com/a2-ai/rv/internal/repoload"
	"github.com/a2-ai/rv/internal/resolver"
	"github.com/a2-ai/rv/internal/sync"
	"github.com/a2-ai/rv/internal/version"
	"github.com/a2-ai/rv/log"
)

type command interface {
	Name() string
	ShortHelp() string
	Run(ctx *appCtx, args []string) error
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr)

	wd, err := os.Getwd()
	if err != nil {
		logger.Logln("failed to get working directory:", err)
		return 1
	}
	ctx := &appCtx{projectDir: wd, stdout: stdout, logger: logger}

	if len(args) < 2 {
		printUsage(stderr)
		return 1
	}

	commands := []command{
		&syncCommand{},
		&initCommand{},
		&treeCommand{},
		&activateCommand{},
		&migrateCommand{},
	}
	for _, c := range commands {
		if c.Name() == args[1] {
			if err := c.Run(ctx, args[2:]); err != nil {
				if apperr.IsCancelled(err) {
					logger.Logln("cancelled:", err)
					return 130
				}
				logger.Logln("rv", c.Name()+":", err)
				return 1
			}
			return 0
		}
	}

	fmt.Fprintf(stderr, "rv: unknown command %q\n", args[1])
	printUsage(stderr)
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: rv <command> [flags]")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  init     write a starter rv.toml in the current directory")
	fmt.Fprintln(w, "  sync     resolve dependencies and install the project library")
	fmt.Fprintln(w, "  tree     print the locked dependency tree")
	fmt.Fprintln(w, "  activate wire the project library into .Rprofile")
	fmt.Fprintln(w, "  migrate  import dependencies from a foreign lockfile (e.g. renv.lock)")
}

// appCtx bundles the ambient state every command needs: the project
// directory, where to print progress, and how to log.
type appCtx struct {
	projectDir string
	stdout     io.Writer
	logger     *log.Logger
}

// --- init -------------------------------------------------------------

type initCommand struct{}

func (initCommand) Name() string      { return "init" }
func (initCommand) ShortHelp() string { return "write a starter manifest" }

func (c *initCommand) Run(ctx *appCtx, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	name := fs.String("name", filepath.Base(ctx.projectDir), "project name")
	rversion := fs.String("r-version", "4.3.0", "R version this project targets")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := filepath.Join(ctx.projectDir, cfg.ManifestName)
	if _, err := os.Stat(path); err == nil {
		return apperr.New(apperr.KindManifestInvalid, "", path+" already exists")
	}

	rv, err := version.Parse(*rversion)
	if err != nil {
		return errors.Wrapf(err, "invalid -r-version %q", *rversion)
	}
	m := &model.Manifest{
		ProjectName: *name,
		RVersion:    rv,
		Repositories: []model.RepositoryConfig{
			{Alias: "CRAN", URL: "https://cran.r-project.org"},
		},
	}
	b, err := cfg.WriteManifest(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	fmt.Fprintf(ctx.stdout, "wrote %s\n", path)
	return nil
}

// --- sync ---------------------------------------------------------------

type syncCommand struct{}

func (syncCommand) Name() string      { return "sync" }
func (syncCommand) ShortHelp() string { return "resolve and install the project library" }

func (c *syncCommand) Run(ctx *appCtx, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report changes without installing")
	libraryDir := fs.String("library", filepath.Join(ctx.projectDir, "rv_library"), "project library directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	manifestPath := filepath.Join(ctx.projectDir, cfg.ManifestName)
	mf, err := os.Open(manifestPath)
	if err != nil {
		return apperr.New(apperr.KindManifestInvalid, "", "opening "+manifestPath+": "+err.Error())
	}
	manifest, err := cfg.ReadManifest(mf)
	mf.Close()
	if err != nil {
		return err
	}

	if installed, err := rcmd.DetectVersion(context.Background(), ""); err != nil {
		ctx.logger.Logf("could not detect installed R version, skipping requirement check: %v", err)
	} else if req, err := version.ParseLanguageRequirement(">= " + manifest.RVersion.String()); err == nil && !req.Accepts(installed) {
		ctx.logger.Logf("installed R %s does not satisfy project.r_version %s", installed, manifest.RVersion)
	}

	var lockfile *model.Lockfile
	usesLockfile := false
	lockPath := filepath.Join(ctx.projectDir, cfg.LockfileName)
	if lf, err := os.Open(lockPath); err == nil {
		lockfile, err = cfg.ReadLockfile(lf)
		lf.Close()
		if err != nil {
			return err
		}
		usesLockfile = true
	}

	cacheRoot := os.Getenv("RV_CACHE_DIR")
	if cacheRoot == "" {
		cacheRoot = filepath.Join(ctx.projectDir, ".rv-cache")
	}
	platform := cache.Platform{Family: runtime.GOOS, Arch: runtime.GOARCH}
	layout := cache.New(cacheRoot, platform, manifest.RVersion)

	var global *cache.Layout
	if g := os.Getenv("RV_GLOBAL_CACHE_DIR"); g != "" {
		gl := cache.New(g, platform, manifest.RVersion)
		global = &gl
	}
	facade, err := cache.NewFacade(layout, global)
	if err != nil {
		return err
	}
	unlock, err := facade.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now()
	repos := make([]resolver.RepoEntry, 0, len(manifest.Repositories))
	for _, r := range manifest.Repositories {
		maj, min := manifest.RVersion.MajorMinor()
		sourceURL := r.URL + "/src/contrib/PACKAGES"
		binaryURL := r.URL + "/" + platform.Path() + "/contrib/" + manifest.RVersion.String() + "/PACKAGES"
		db, err := repoload.Load(context.Background(), facade, r.Alias, r.URL, sourceURL,
			[]repoload.BinaryDescriptor{{Major: maj, Minor: min, URL: binaryURL}}, now)
		if err != nil {
			ctx.logger.Logf("repository %s unavailable: %v", r.Alias, err)
			continue
		}
		repos = append(repos, resolver.RepoEntry{Config: r, DB: db})
	}

	res := &resolver.Resolver{
		Repos:           repos,
		LanguageVersion: manifest.RVersion,
		Lockfile:        lockfile,
		Descriptors:     &resolver.FileDescriptors{},
		Cache:           facade,
		ProjectDir:      ctx.projectDir,
	}

	result, err := res.Resolve(context.Background(), manifest.Dependencies)
	if err != nil {
		// Covers the SAT post-pass's conflict diagnosis: Resolve already
		// returns a *apperr.ResolutionError in that case.
		return err
	}
	if len(result.Failed) > 0 {
		re := &apperr.ResolutionError{}
		for _, u := range result.Failed {
			re.Unresolved = append(re.Unresolved, u.Name)
		}
		return re
	}

	lib, err := library.Inspect(*libraryDir)
	if err != nil {
		return err
	}

	token := sync.NewToken(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		for range sigCh {
			state := token.Signal()
			ctx.logger.Logln("received interrupt, cancellation:", state)
		}
	}()
	defer signal.Stop(sigCh)

	handler := &sync.Handler{
		ProjectDir:   ctx.projectDir,
		LibraryDir:   *libraryDir,
		StagingDir:   filepath.Join(cacheRoot, "staging"),
		Library:      lib,
		Cache:        facade,
		Platform:     platform,
		Runner:       &rcmd.Runner{LogDir: filepath.Join(cacheRoot, "logs")},
		UsesLockfile: usesLockfile,
		DryRun:       *dryRun,
		OpenFiles:    sync.OpenFilesChecker(),
	}

	syncResult, err := handler.Run(context.Background(), result.Found, token)
	if err != nil {
		return err
	}
	for _, change := range syncResult.Changes {
		fmt.Fprintln(ctx.stdout, change.String())
	}

	if *dryRun {
		return nil
	}

	newLock := &model.Lockfile{LanguageVersion: manifest.RVersion}
	for _, d := range result.Found {
		newLock.Packages = append(newLock.Packages, model.LockedPackage{
			Name:            d.Name,
			Version:         d.Version,
			Source:          d.Source,
			Dependencies:    d.Dependencies,
			Suggests:        d.Suggests,
			ForceSource:     d.ForceSource,
			InstallSuggests: d.InstallSuggests,
		})
	}
	b, err := cfg.WriteLockfile(newLock)
	if err != nil {
		return err
	}
	return os.WriteFile(lockPath, b, 0o644)
}

// --- tree -----------------------------------------------------------------

type treeCommand struct{}

func (treeCommand) Name() string      { return "tree" }
func (treeCommand) ShortHelp() string { return "print the locked dependency tree" }

func (c *treeCommand) Run(ctx *appCtx, args []string) error {
	lockPath := filepath.Join(ctx.projectDir, cfg.LockfileName)
	lf, err := os.Open(lockPath)
	if err != nil {
		return apperr.New(apperr.KindManifestInvalid, "", "opening "+lockPath+": "+err.Error())
	}
	defer lf.Close()
	lockfile, err := cfg.ReadLockfile(lf)
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(ctx.projectDir, cfg.ManifestName)
	mf, err := os.Open(manifestPath)
	if err != nil {
		return apperr.New(apperr.KindManifestInvalid, "", "opening "+manifestPath+": "+err.Error())
	}
	m, err := cfg.ReadManifest(mf)
	mf.Close()
	if err != nil {
		return err
	}

	deps := make([]*model.ResolvedDependency, 0, len(lockfile.Packages))
	for _, p := range lockfile.Packages {
		deps = append(deps, &model.ResolvedDependency{
			Name:         p.Name,
			Version:      p.Version,
			Source:       p.Source,
			Dependencies: p.Dependencies,
		})
	}
	direct := make([]string, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		direct = append(direct, d.Name)
	}

	plantree.Write(ctx.stdout, plantree.Build(deps, direct))
	return nil
}

// --- activate ---------------------------------------------------------------

type activateCommand struct{}

func (activateCommand) Name() string      { return "activate" }
func (activateCommand) ShortHelp() string { return "wire the project library into .Rprofile" }

func (c *activateCommand) Run(ctx *appCtx, args []string) error {
	if err := activation.Activate(ctx.projectDir); err != nil {
		return err
	}
	fmt.Fprintf(ctx.stdout, "activated %s\n", ctx.projectDir)
	return nil
}

// --- migrate ----------------------------------------------------------------

type migrateCommand struct{}

func (migrateCommand) Name() string      { return "migrate" }
func (migrateCommand) ShortHelp() string { return "import dependencies from a foreign lockfile" }

func (c *migrateCommand) Run(ctx *appCtx, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	from := fs.String("from", "renv.lock", "path to the foreign lockfile")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *from
	if !filepath.IsAbs(path) {
		path = filepath.Join(ctx.projectDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	var lastErr error
	for _, importer := range migrate.Importers {
		repos, deps, err := importer.Import(data)
		if err != nil {
			lastErr = err
			continue
		}

		manifestPath := filepath.Join(ctx.projectDir, cfg.ManifestName)
		var m *model.Manifest
		if mf, err := os.Open(manifestPath); err == nil {
			m, err = cfg.ReadManifest(mf)
			mf.Close()
			if err != nil {
				return err
			}
		} else {
			m = &model.Manifest{ProjectName: filepath.Base(ctx.projectDir)}
		}

		for _, r := range repos {
			manifest.AddRepository(m, r)
		}
		for _, d := range deps {
			manifest.AddDependency(m, d)
		}

		b, err := cfg.WriteManifest(m)
		if err != nil {
			return err
		}
		if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", manifestPath)
		}
		fmt.Fprintf(ctx.stdout, "imported %d dependencies from %s via %s\n", len(deps), path, importer.Name())
		return nil
	}
	return errors.Wrapf(lastErr, "no importer could read %s", path)
}
