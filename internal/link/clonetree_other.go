//go:build !linux && !darwin

package link

import "github.com/pkg/errors"

// cloneTree has no portable implementation outside linux/darwin; Place
// falls back to copyTree whenever this returns an error.
func cloneTree(src, dst string) error {
	return errors.New("clone strategy not supported on this platform")
}
