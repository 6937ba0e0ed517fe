package store

import (
	"context"
	"errors"
	"sync"

	"github.com/xhad/askdocs/internal/models"
)

type collectionInfo struct {
	dimension int
	metric    models.Distance
}

type describeFunc func(ctx context.Context, name string) (collectionInfo, error)

// registry caches collection parameters for the life of the process.
// Another process may drop or recreate a collection behind it, so an entry
// is refreshed when a request made with it fails.
type registry struct {
	mu    sync.Mutex
	known map[string]collectionInfo
}

func newRegistry() *registry {
	return &registry{known: make(map[string]collectionInfo)}
}

func (r *registry) get(name string) (collectionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.known[name]
	return info, ok
}

func (r *registry) put(name string, info collectionInfo) {
	r.mu.Lock()
	r.known[name] = info
	r.mu.Unlock()
}

func (r *registry) forget(name string) {
	r.mu.Lock()
	delete(r.known, name)
	r.mu.Unlock()
}

// resolve returns cached parameters, asking describe on a miss.
func (r *registry) resolve(ctx context.Context, name string, describe describeFunc) (collectionInfo, bool, error) {
	if info, ok := r.get(name); ok {
		return info, true, nil
	}
	info, err := describe(ctx, name)
	if err != nil {
		return collectionInfo{}, false, err
	}
	r.put(name, info)
	return info, false, nil
}

// withCollection runs op with the collection's parameters. When op fails on
// cached parameters with an error a stale entry could cause, the entry is
// dropped and op runs once more with fresh ones.
func (r *registry) withCollection(ctx context.Context, name string, describe describeFunc, op func(collectionInfo) error) error {
	info, cached, err := r.resolve(ctx, name, describe)
	if err != nil {
		return err
	}
	err = op(info)
	if err == nil || !cached || !staleEntry(err) {
		return err
	}

	r.forget(name)
	info, _, err = r.resolve(ctx, name, describe)
	if err != nil {
		return err
	}
	return op(info)
}

func staleEntry(err error) bool {
	return errors.Is(err, models.ErrDimensionMismatch) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrProvider)
}
