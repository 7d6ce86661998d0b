package migrate

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/model"
)

// renvSource mirrors the RenvSource enum in the original renv.lock reader:
// it decides which other fields on a renvPackage are meaningful.
type renvSource string

const (
	renvSourceRepository renvSource = "Repository"
	renvSourceGitHub     renvSource = "GitHub"
	renvSourceLocal      renvSource = "Local"
)

type renvPackage struct {
	Package        string   `json:"Package"`
	Version        string   `json:"Version"`
	Source         string   `json:"Source"`
	Repository     string   `json:"Repository"`
	RemoteType     string   `json:"RemoteType"`
	RemoteHost     string   `json:"RemoteHost"`
	RemoteRepo     string   `json:"RemoteRepo"`
	RemoteUsername string   `json:"RemoteUsername"`
	RemoteSha      string   `json:"RemoteSha"`
	RemoteURL      string   `json:"RemoteUrl"`
	Requirements   []string `json:"Requirements"`
}

type renvRepository struct {
	Name string `json:"Name"`
	URL  string `json:"URL"`
}

type renvLock struct {
	R struct {
		Version      string           `json:"Version"`
		Repositories []renvRepository `json:"Repositories"`
	} `json:"R"`
	Packages map[string]renvPackage `json:"Packages"`
}

// RenvLockImporter reads the renv.lock JSON format (produced by the R
// package "renv"): a flat "Packages" map keyed by name, each entry tagged
// by a Source that decides which of Repository/RemoteRepo/RemoteUrl
// applies.
type RenvLockImporter struct{}

func (RenvLockImporter) Name() string { return "renv.lock" }

func (RenvLockImporter) Import(data []byte) ([]model.RepositoryConfig, []model.ManifestDependency, error) {
	var lock renvLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, nil, errors.Wrap(err, "parsing renv.lock")
	}

	repos := make([]model.RepositoryConfig, 0, len(lock.R.Repositories))
	for _, r := range lock.R.Repositories {
		repos = append(repos, model.RepositoryConfig{Alias: r.Name, URL: r.URL})
	}

	deps := make([]model.ManifestDependency, 0, len(lock.Packages))
	for name, p := range lock.Packages {
		dep, err := renvDependency(name, p)
		if err != nil {
			return nil, nil, err
		}
		deps = append(deps, dep)
	}
	return repos, deps, nil
}

func renvDependency(name string, p renvPackage) (model.ManifestDependency, error) {
	switch renvSource(p.Source) {
	case renvSourceRepository:
		return model.ManifestDependency{Name: name, Repository: p.Repository}, nil
	case renvSourceGitHub:
		if p.RemoteUsername == "" || p.RemoteRepo == "" {
			return model.ManifestDependency{}, fmt.Errorf("renv.lock package %q: GitHub source missing RemoteUsername/RemoteRepo", name)
		}
		host := p.RemoteHost
		if host == "" {
			host = "github.com"
		}
		return model.ManifestDependency{
			Name: name,
			Git: &model.GitPin{
				URL:    fmt.Sprintf("https://%s/%s/%s", host, p.RemoteUsername, p.RemoteRepo),
				Commit: p.RemoteSha,
			},
		}, nil
	case renvSourceLocal:
		return model.ManifestDependency{Name: name, Path: p.RemoteURL}, nil
	default:
		// "Other(String)" in the original: an unrecognized Source tag still
		// names a package, so fall back to a plain repository dependency
		// rather than dropping it from the migrated manifest.
		return model.ManifestDependency{Name: name, Repository: p.Repository}, nil
	}
}
