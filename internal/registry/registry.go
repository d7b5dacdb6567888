// Package registry implements the process-wide HandleRegistry spec.md §4.3
// describes: a dense, monotonically-allocated u32 handle space guarded by a
// single mutex, with no intra-group parallelism (spec.md §5). Grounded on
// the handle-table shape spec.md §9 motivates directly (object references
// can't cross a host ABI boundary, so the registry exchanges indices
// instead) — no example repo in the pack shows this exact pattern, so it is
// original glue code over the teacher's mutex-guarded-map idiom
// (matjam-go-mls doesn't show one; germtb-mlsgit's repository layer uses a
// similar single-mutex-guarded-map shape for its object store).
package registry

import (
	"math"
	"sync"

	"github.com/takoserver/mlsengine/internal/mlserr"
)

// Registry maps u32 handles to live values of type T. Zero value is not
// usable; construct with New.
type Registry[T any] struct {
	mu      sync.Mutex
	nextID  uint32
	entries map[uint32]T
}

// New constructs an empty Registry with the handle counter starting at 1
// (0 is reserved as "no handle").
func New[T any]() *Registry[T] {
	return &Registry[T]{nextID: 1, entries: make(map[uint32]T)}
}

// Insert allocates a fresh handle for value and stores it, returning
// mlserr.HandleExhausted if the 32-bit counter has wrapped. nextID is reset
// to 0 once MaxUint32 has been issued, which Insert treats as permanently
// exhausted — handles are never reissued within the process lifetime
// (spec.md §3 invariant), so wraparound can't recycle a freed id.
func (r *Registry[T]) Insert(value T) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nextID == 0 {
		return 0, mlserr.New(mlserr.HandleExhausted, "registry.Insert", nil)
	}
	id := r.nextID
	r.entries[id] = value
	if r.nextID == math.MaxUint32 {
		r.nextID = 0
	} else {
		r.nextID++
	}
	return id, nil
}

// Get returns the value stored under handle, or mlserr.UnknownHandle if
// absent — including for a handle the caller never received (spec.md
// §4.3: "the caller must not fabricate handles").
func (r *Registry[T]) Get(handle uint32) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[handle]
	if !ok {
		var zero T
		return zero, mlserr.New(mlserr.UnknownHandle, "registry.Get", nil)
	}
	return v, nil
}

// Remove deletes handle from the registry, returning mlserr.UnknownHandle
// if it was already absent.
func (r *Registry[T]) Remove(handle uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[handle]; !ok {
		return mlserr.New(mlserr.UnknownHandle, "registry.Remove", nil)
	}
	delete(r.entries, handle)
	return nil
}

// WithLocked runs fn while holding the registry's exclusion lock, resolving
// handle first. This is how every GroupEngine mutation gets "single logical
// owner per group" (spec.md §5): the protocol call runs under one critical
// section per call, with no fine-grained locking of subfields; callers
// decode their input before taking the lock and encode results after it. A panic inside fn is
// recovered and reported as mlserr.ProtocolError (spec.md §5's poisoning
// note, softened per SPEC_FULL.md D.4 so a protocol-library bug can't take
// down the whole host process).
func (r *Registry[T]) WithLocked(handle uint32, fn func(value T) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[handle]
	if !ok {
		return mlserr.New(mlserr.UnknownHandle, "registry.WithLocked", nil)
	}

	defer func() {
		if p := recover(); p != nil {
			err = mlserr.New(mlserr.ProtocolError, "registry.WithLocked", nil)
		}
	}()
	return fn(v)
}
