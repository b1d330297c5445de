package sqlite3

import (
	"fmt"
	"unsafe"

	"modernc.org/libc"
	"modernc.org/libc/sys/types"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// region owns C-heap buffers passed to SQLite for the duration of one
// call scope. Nothing allocated from a region may be referenced after
// release, except handles read out of a ptrSlot.
type region struct {
	tls  *libc.TLS
	ptrs []uintptr
}

// withRegion runs fn with a fresh region and releases it on every exit
// path, including a panic in fn.
func withRegion(tls *libc.TLS, fn func(r *region) error) error {
	r := &region{tls: tls}
	defer r.release()
	return fn(r)
}

func (r *region) alloc(n int) (uintptr, error) {
	p := libc.Xmalloc(r.tls, types.Size_t(n))
	if p == 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrNoMemory, n)
	}
	r.ptrs = append(r.ptrs, p)
	return p, nil
}

// cstring copies s into the region as a NUL-terminated C string.
func (r *region) cstring(s string) (uintptr, error) {
	p, err := r.alloc(len(s) + 1)
	if err != nil {
		return 0, err
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), len(s)+1)
	copy(b, s)
	b[len(s)] = 0
	return p, nil
}

// ptrSlot allocates a zeroed pointer-sized out-parameter.
func (r *region) ptrSlot() (uintptr, error) {
	p, err := r.alloc(ptrSize)
	if err != nil {
		return 0, err
	}
	*(*uintptr)(unsafe.Pointer(p)) = 0
	return p, nil
}

// release frees every buffer in reverse allocation order. It is safe to
// call more than once.
func (r *region) release() {
	for i := len(r.ptrs) - 1; i >= 0; i-- {
		libc.Xfree(r.tls, r.ptrs[i])
	}
	r.ptrs = r.ptrs[:0]
}

func (r *region) size() int { return len(r.ptrs) }

func readPtr(slot uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(slot))
}

// goStringN copies n bytes at p into a Go string.
func goStringN(p uintptr, n int) string {
	if p == 0 || n <= 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}
