package source

import (
	"fmt"
	"strings"

	"github.com/a2-ai/rv/internal/cache"
)

// BinaryURLRewriter implements the optional binary-URL rewrite for one
// particular package-hosting service (Posit Package Manager's
// distro/release-scoped binary endpoints).
//
// Rather than sniffing the server's advertised capabilities at runtime,
// this is gated behind an explicit caller-supplied flag: a rewriter is only
// ever constructed with AdvertisesMatchingDistro set true by a caller that
// has already confirmed, out of band, that the configured repository host
// serves binaries for the requested distro/release. With the flag false
// Rewrite is a no-op, so an un-opted-in caller gets exactly the base
// repository URL it would have gotten without this type existing at all.
type BinaryURLRewriter struct {
	// AdvertisesMatchingDistro gates the rewrite entirely; see type doc.
	AdvertisesMatchingDistro bool
	// Host is the package-hosting service base this rewriter targets,
	// e.g. "https://packagemanager.posit.co/cran".
	Host string
}

// Rewrite returns a distro/release-scoped binary URL derived from base, or
// (base, false) when the rewriter isn't activated or base isn't rooted at
// Host.
func (r *BinaryURLRewriter) Rewrite(base string, platform cache.Platform) (string, bool) {
	if r == nil || !r.AdvertisesMatchingDistro {
		return base, false
	}
	if r.Host == "" || !strings.HasPrefix(base, r.Host) {
		return base, false
	}
	if platform.Family == "" || platform.Codename == "" {
		return base, false
	}
	suffix := strings.TrimPrefix(base, r.Host)
	return fmt.Sprintf("%s/__linux__/%s/%s", r.Host, platform.Codename, strings.TrimPrefix(suffix, "/")), true
}
