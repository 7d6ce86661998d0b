// Package cfg is the TOML codec boundary for the two on-disk documents the
// dependency engine reads and writes: the project manifest and the
// lockfile. It owns the raw/typed conversion so internal/model stays pure
// data shapes.
package cfg

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// ManifestName is the canonical manifest file name within a project
// directory.
const ManifestName = "rv.toml"

type rawManifest struct {
	Project rawProject `toml:"project"`
}

type rawProject struct {
	Name         string            `toml:"name"`
	RVersion     string            `toml:"r_version"`
	Repositories []rawRepository   `toml:"repositories"`
	Dependencies []rawDependency   `toml:"dependencies"`
}

type rawRepository struct {
	Alias       string `toml:"alias"`
	URL         string `toml:"url"`
	ForceSource bool   `toml:"force_source,omitempty"`
}

// rawDependency captures the union of every shape a "project.dependencies"
// entry can take. A bare-string entry is handled separately in
// decodeManifestDocument since go-toml doesn't let one array mix scalar
// and table elements under the same Go type.
type rawDependency struct {
	Name                string `toml:"name"`
	Repository          string `toml:"repository,omitempty"`
	InstallSuggestions  bool   `toml:"install_suggestions,omitempty"`
	ForceSource         bool   `toml:"force_source,omitempty"`
	DependenciesOnly    bool   `toml:"dependencies_only,omitempty"`
	Git                 string `toml:"git,omitempty"`
	Commit              string `toml:"commit,omitempty"`
	Tag                 string `toml:"tag,omitempty"`
	Branch              string `toml:"branch,omitempty"`
	Directory           string `toml:"directory,omitempty"`
	Path                string `toml:"path,omitempty"`
	URL                 string `toml:"url,omitempty"`
}

// ReadManifest parses a project manifest from r.
func ReadManifest(r io.Reader) (*model.Manifest, error) {
	raw, err := decodeManifestDocument(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode manifest")
	}

	rv, err := version.Parse(raw.Project.RVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid project.r_version %q", raw.Project.RVersion)
	}

	m := &model.Manifest{
		ProjectName: raw.Project.Name,
		RVersion:    rv,
	}
	for _, r := range raw.Project.Repositories {
		m.Repositories = append(m.Repositories, model.RepositoryConfig{
			Alias:       r.Alias,
			URL:         r.URL,
			ForceSource: r.ForceSource,
		})
	}
	for _, d := range raw.Project.Dependencies {
		dep, err := toManifestDependency(d)
		if err != nil {
			return nil, err
		}
		m.Dependencies = append(m.Dependencies, dep)
	}
	return m, nil
}

func toManifestDependency(d rawDependency) (model.ManifestDependency, error) {
	md := model.ManifestDependency{
		Name:               d.Name,
		Repository:         d.Repository,
		InstallSuggestions: d.InstallSuggestions,
		ForceSource:        d.ForceSource,
		DependenciesOnly:   d.DependenciesOnly,
		Path:               d.Path,
		URL:                d.URL,
	}

	set := 0
	for _, v := range []string{d.Commit, d.Tag, d.Branch} {
		if v != "" {
			set++
		}
	}
	if d.Git != "" {
		if set != 1 {
			return md, errors.Errorf("git dependency %q: exactly one of commit|tag|branch must be set", d.Name)
		}
		md.Git = &model.GitPin{
			URL:       d.Git,
			Commit:    d.Commit,
			Tag:       d.Tag,
			Branch:    d.Branch,
			Directory: d.Directory,
		}
	} else if set != 0 {
		return md, errors.Errorf("dependency %q: commit|tag|branch set without git", d.Name)
	}
	return md, nil
}

// decodeManifestDocument normalises bare-string dependency entries
// ("dplyr") into the table shape before unmarshalling the rest through
// go-toml, since a TOML array cannot mix scalars and tables under one
// static Go type.
func decodeManifestDocument(r io.Reader) (rawManifest, error) {
	var generic struct {
		Project struct {
			Name         string        `toml:"name"`
			RVersion     string        `toml:"r_version"`
			Repositories []rawRepository `toml:"repositories"`
			Dependencies []interface{} `toml:"dependencies"`
		} `toml:"project"`
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return rawManifest{}, err
	}
	if err := toml.Unmarshal(b, &generic); err != nil {
		return rawManifest{}, err
	}

	out := rawManifest{}
	out.Project.Name = generic.Project.Name
	out.Project.RVersion = generic.Project.RVersion
	out.Project.Repositories = generic.Project.Repositories

	for _, v := range generic.Project.Dependencies {
		switch t := v.(type) {
		case string:
			out.Project.Dependencies = append(out.Project.Dependencies, rawDependency{Name: t})
		case map[string]interface{}:
			out.Project.Dependencies = append(out.Project.Dependencies, rawDependencyFromMap(t))
		default:
			return rawManifest{}, fmt.Errorf("unsupported dependency entry type %T", v)
		}
	}
	return out, nil
}

func rawDependencyFromMap(m map[string]interface{}) rawDependency {
	str := func(k string) string {
		if v, ok := m[k].(string); ok {
			return v
		}
		return ""
	}
	boolv := func(k string) bool {
		if v, ok := m[k].(bool); ok {
			return v
		}
		return false
	}
	return rawDependency{
		Name:               str("name"),
		Repository:         str("repository"),
		InstallSuggestions: boolv("install_suggestions"),
		ForceSource:        boolv("force_source"),
		DependenciesOnly:   boolv("dependencies_only"),
		Git:                str("git"),
		Commit:             str("commit"),
		Tag:                str("tag"),
		Branch:             str("branch"),
		Directory:          str("directory"),
		Path:               str("path"),
		URL:                str("url"),
	}
}

// WriteManifest renders m as TOML, in canonical field order.
func WriteManifest(m *model.Manifest) ([]byte, error) {
	raw := rawManifest{Project: rawProject{
		Name:     m.ProjectName,
		RVersion: m.RVersion.String(),
	}}
	for _, r := range m.Repositories {
		raw.Project.Repositories = append(raw.Project.Repositories, rawRepository{
			Alias: r.Alias, URL: r.URL, ForceSource: r.ForceSource,
		})
	}
	for _, d := range m.Dependencies {
		rd := rawDependency{
			Name:               d.Name,
			Repository:         d.Repository,
			InstallSuggestions: d.InstallSuggestions,
			ForceSource:        d.ForceSource,
			DependenciesOnly:   d.DependenciesOnly,
			Path:               d.Path,
			URL:                d.URL,
		}
		if d.Git != nil {
			rd.Git = d.Git.URL
			rd.Commit = d.Git.Commit
			rd.Tag = d.Git.Tag
			rd.Branch = d.Git.Branch
			rd.Directory = d.Git.Directory
		}
		raw.Project.Dependencies = append(raw.Project.Dependencies, rd)
	}
	return toml.Marshal(raw)
}
