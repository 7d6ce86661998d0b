// Package activation writes the project-local activation script and wires
// it into the project's .Rprofile, mirroring activate.rs/deactivate.rs from
// the original sources: a project gets a script under
// rv/scripts/activate.R, sourced from .Rprofile by a single guarded line
// that activate/deactivate can find and remove idempotently.
package activation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ScriptPath is the activation script's path relative to a project
// directory.
const ScriptPath = "rv/scripts/activate.R"

// sourceLine is the exact line appended to .Rprofile; Deactivate matches on
// this literal string, the same way the original scans lines for equality
// rather than a pattern.
const sourceLine = `source("` + ScriptPath + `")`

// ProjectScriptContent is written to rv/scripts/activate.R for a project
// directory (as opposed to a user's home directory, which would get a
// differently scoped script in a fuller implementation).
const ProjectScriptContent = `# Generated by rv. Do not edit by hand.
local({
  lib <- file.path(getwd(), "rv_library")
  if (dir.exists(lib)) {
    .libPaths(c(lib, .libPaths()))
  }
})
`

// Activate ensures dir/rv/scripts/activate.R exists with the expected
// content and that dir/.Rprofile sources it exactly once.
func Activate(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return errors.Errorf("%s is not a directory", dir)
	}

	scriptPath := filepath.Join(dir, ScriptPath)
	if err := os.MkdirAll(filepath.Dir(scriptPath), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(scriptPath))
	}
	existing, _ := os.ReadFile(scriptPath)
	if string(existing) != ProjectScriptContent {
		if err := os.WriteFile(scriptPath, []byte(ProjectScriptContent), 0o644); err != nil {
			return errors.Wrapf(err, "writing %s", scriptPath)
		}
	}

	rprofilePath := filepath.Join(dir, ".Rprofile")
	content, err := os.ReadFile(rprofilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrapf(err, "reading %s", rprofilePath)
		}
		content = nil
	}
	if strings.Contains(string(content), sourceLine) {
		return nil
	}

	f, err := os.OpenFile(rprofilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", rprofilePath)
	}
	defer f.Close()
	if _, err := f.WriteString(sourceLine + "\n"); err != nil {
		return errors.Wrapf(err, "writing %s", rprofilePath)
	}
	return nil
}

// Deactivate removes the guarded source line from dir/.Rprofile, if
// present. It leaves the activation script itself in place.
func Deactivate(dir string) error {
	rprofilePath := filepath.Join(dir, ".Rprofile")
	content, err := os.ReadFile(rprofilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading %s", rprofilePath)
	}

	lines := strings.Split(string(content), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line != sourceLine {
			kept = append(kept, line)
		}
	}
	return errors.Wrapf(
		os.WriteFile(rprofilePath, []byte(strings.Join(kept, "\n")), 0o644),
		"writing %s", rprofilePath,
	)
}
