//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package pool

// NewMmap returns a heap pool on platforms without anonymous mappings.
func NewMmap(limit int64) *Pool {
	return NewHeap(limit)
}
