//go:build !linux && !darwin

package launch

// jitAvailable reports false on hosts without the mmap probe; the
// translator chain falls back to interpreter flags there.
func jitAvailable() bool {
	return false
}
