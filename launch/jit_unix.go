//go:build linux || darwin

package launch

import "golang.org/x/sys/unix"

// jitAvailable probes whether the host allows writable+executable
// anonymous mappings. Hardened kernels (W^X) refuse the combination, in
// which case the translator runs with its interpreter fallback flags.
func jitAvailable() bool {
	page, err := unix.Mmap(-1, 0, unix.Getpagesize(),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return false
	}
	unix.Munmap(page)
	return true
}
