//go:build linux || darwin || freebsd || netbsd || openbsd

package pool

import "golang.org/x/sys/unix"

// NewMmap returns a pool whose blocks are private anonymous mappings.
// Each block is unmapped when freed, so a stale slice held past Free
// faults instead of silently reading reused memory. A limit of zero or
// less means no limit.
func NewMmap(limit int64) *Pool {
	return newPool("mmap", limit, mmapAcquire, mmapRelease)
}

func mmapAcquire(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func mmapRelease(data []byte) error {
	return unix.Munmap(data)
}
