package cfg

import (
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// LockfileName is the canonical lockfile name within a project directory.
const LockfileName = "rv.lock"

type rawLockfile struct {
	RVersion string            `toml:"r_version"`
	Package  []rawLockedPackage `toml:"package"`
}

type rawLockedPackage struct {
	Name            string        `toml:"name"`
	Version         string        `toml:"version"`
	Source          rawLockSource `toml:"source"`
	Depends         []string      `toml:"depends,omitempty"`
	Suggests        []string      `toml:"suggests,omitempty"`
	ForceSource     bool          `toml:"force_source,omitempty"`
	InstallSuggests bool          `toml:"install_suggests,omitempty"`
	Path            string        `toml:"path,omitempty"`
}

// rawLockSource mirrors model.Source as a typed sub-table; only the fields
// relevant to Kind are populated on write and read back.
type rawLockSource struct {
	Kind      string `toml:"kind"`
	URL       string `toml:"url,omitempty"`
	SHA       string `toml:"sha,omitempty"`
	Directory string `toml:"directory,omitempty"`
	Branch    string `toml:"branch,omitempty"`
	Tag       string `toml:"tag,omitempty"`
	Commit    string `toml:"commit,omitempty"`
}

func sourceKindName(k model.SourceKind) string {
	return k.String()
}

func parseSourceKind(s string) (model.SourceKind, error) {
	switch s {
	case "repository":
		return model.SourceRepository, nil
	case "git":
		return model.SourceGit, nil
	case "local":
		return model.SourceLocal, nil
	case "url":
		return model.SourceURL, nil
	case "builtin":
		return model.SourceBuiltin, nil
	default:
		return 0, errors.Errorf("unknown lockfile source kind %q", s)
	}
}

func toRawSource(s model.Source) rawLockSource {
	switch s.Kind {
	case model.SourceRepository:
		return rawLockSource{Kind: "repository", URL: s.RepositoryURL}
	case model.SourceGit:
		return rawLockSource{
			Kind: "git", URL: s.GitURL, SHA: s.GitSHA, Directory: s.GitDirectory,
			Branch: s.GitRef.Branch, Tag: s.GitRef.Tag, Commit: s.GitRef.Commit,
		}
	case model.SourceLocal:
		return rawLockSource{Kind: "local", URL: s.LocalPath, SHA: s.LocalSHA}
	case model.SourceURL:
		return rawLockSource{Kind: "url", URL: s.URL, SHA: s.URLSHA}
	default:
		return rawLockSource{Kind: "builtin"}
	}
}

func fromRawSource(r rawLockSource) (model.Source, error) {
	kind, err := parseSourceKind(r.Kind)
	if err != nil {
		return model.Source{}, err
	}
	switch kind {
	case model.SourceRepository:
		return model.RepositorySource(r.URL), nil
	case model.SourceGit:
		return model.GitSource(r.URL, r.SHA, r.Directory, model.GitRef{
			Branch: r.Branch, Tag: r.Tag, Commit: r.Commit,
		}), nil
	case model.SourceLocal:
		return model.LocalSource(r.URL, r.SHA), nil
	case model.SourceURL:
		return model.URLSource(r.URL, r.SHA), nil
	default:
		return model.BuiltinSource(), nil
	}
}

// ReadLockfile parses a lockfile from r.
func ReadLockfile(r io.Reader) (*model.Lockfile, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raw rawLockfile
	if err := toml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "could not decode lockfile")
	}

	rv, err := version.Parse(raw.RVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid r_version %q", raw.RVersion)
	}

	lf := &model.Lockfile{LanguageVersion: rv}
	for _, p := range raw.Package {
		v, err := version.Parse(p.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "package %s: invalid version %q", p.Name, p.Version)
		}
		src, err := fromRawSource(p.Source)
		if err != nil {
			return nil, errors.Wrapf(err, "package %s", p.Name)
		}
		lf.Packages = append(lf.Packages, model.LockedPackage{
			Name:            p.Name,
			Version:         v,
			Source:          src,
			Dependencies:    p.Depends,
			Suggests:        p.Suggests,
			ForceSource:     p.ForceSource,
			InstallSuggests: p.InstallSuggests,
			Path:            p.Path,
		})
	}
	return lf, nil
}

// WriteLockfile renders lf as TOML in canonical (alphabetical) package
// order.
func WriteLockfile(lf *model.Lockfile) ([]byte, error) {
	lf.Sort()
	raw := rawLockfile{RVersion: lf.LanguageVersion.String()}
	for _, p := range lf.Packages {
		raw.Package = append(raw.Package, rawLockedPackage{
			Name:            p.Name,
			Version:         p.Version.String(),
			Source:          toRawSource(p.Source),
			Depends:         p.Dependencies,
			Suggests:        p.Suggests,
			ForceSource:     p.ForceSource,
			InstallSuggests: p.InstallSuggests,
			Path:            p.Path,
		})
	}
	return toml.Marshal(raw)
}
