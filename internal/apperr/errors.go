// Package apperr collects the structured error taxonomy shared by every
// component: each kind carries a free-form message plus whatever
// structured context its producer has on hand.
package apperr

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/vcs"
)

// Kind tags which taxonomy bucket an error belongs to, so callers (the CLI
// summary printer, log sinks) can group or count without string matching.
type Kind int

const (
	KindManifestInvalid Kind = iota
	KindIndexFetchFailure
	KindIndexParseFailure
	KindResolutionFailure
	KindSourceFetchFailure
	KindBuildFailure
	KindLinkFailure
	KindLibraryInUse
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindManifestInvalid:
		return "manifest invalid"
	case KindIndexFetchFailure:
		return "index fetch failure"
	case KindIndexParseFailure:
		return "index parse failure"
	case KindResolutionFailure:
		return "resolution failure"
	case KindSourceFetchFailure:
		return "source fetch failure"
	case KindBuildFailure:
		return "build failure"
	case KindLinkFailure:
		return "link failure"
	case KindLibraryInUse:
		return "library in use"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the common shape: a kind, the package the error concerns (if
// any), and a free-form message. Producers that need more structure use
// the separate ResolutionError and BuildError types below.
type Error struct {
	Kind    Kind
	Package string
	Msg     string
}

func (e *Error) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Package, e.Msg)
}

func New(kind Kind, pkg, msg string) *Error {
	return &Error{Kind: kind, Package: pkg, Msg: msg}
}

// ResolutionError carries the two structured resolution failure modes: a
// flat list of unresolved names, and a conflict map produced by the SAT
// post-pass.
type ResolutionError struct {
	Unresolved []string
	Conflicts  map[string][]string
}

func (e *ResolutionError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s:", KindResolutionFailure)
	for _, name := range e.Unresolved {
		fmt.Fprintf(&buf, "\n\tunresolved: %s", name)
	}
	for name, reqs := range e.Conflicts {
		fmt.Fprintf(&buf, "\n\tconflict %s: %v", name, reqs)
	}
	return buf.String()
}

// BuildError carries the package name, build log path, and truncated
// stderr for a non-zero build-runner exit.
type BuildError struct {
	Package  string
	LogPath  string
	ExitCode int
	Stderr   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: build of %s failed (exit %d), log at %s: %s",
		KindBuildFailure, e.Package, e.ExitCode, e.LogPath, e.Stderr)
}

// IsCancelled reports whether err represents a soft or hard cancellation,
// whether it was produced directly by this package or surfaced through a
// context.Context cancellation.
func IsCancelled(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindCancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// UnwrapVCS extracts the actual command output from a Masterminds/vcs
// error: vcs.LocalError/RemoteError carry their process output separately
// from Error(), so a bare err.Error() call drops the most useful
// diagnostic.
func UnwrapVCS(err error) error {
	switch verr := err.(type) {
	case *vcs.LocalError:
		return fmt.Errorf("%s: %s", verr.Error(), verr.Out())
	case *vcs.RemoteError:
		return fmt.Errorf("%s: %s", verr.Error(), verr.Out())
	default:
		return err
	}
}
