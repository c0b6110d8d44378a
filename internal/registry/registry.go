// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/ontotrans/ontorec/internal/metrics"
	"github.com/ontotrans/ontorec/internal/stardog"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Factory constructs the store for a database that is not cached yet
type Factory func(ctx context.Context, name string) (stardog.TripleStore, error)

// Registry maps database names to their already constructed stores.
// It is owned by the server and lives as long as it does.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]stardog.TripleStore
	group  singleflight.Group
}

func New() *Registry {
	return &Registry{stores: make(map[string]stardog.TripleStore)}
}

// Get returns the cached store; it never constructs one
func (r *Registry) Get(name string) (stardog.TripleStore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.stores[name]
	return store, ok
}

// Add stores the mapping, replacing and closing any previous store for the name
func (r *Registry) Add(name string, store stardog.TripleStore) {
	r.mu.Lock()
	previous, replaced := r.stores[name]
	r.stores[name] = store
	metrics.RegistryInstances.Set(float64(len(r.stores)))
	r.mu.Unlock()

	if replaced && previous != store {
		if err := previous.Close(); err != nil {
			log.Errorf("failed to close replaced store for %s: %v", name, err)
		}
	}
}

// GetOrCreate returns the cached store or builds it with factory.
// Concurrent callers for the same name share a single construction.
func (r *Registry) GetOrCreate(ctx context.Context, name string, factory Factory) (stardog.TripleStore, error) {
	if store, ok := r.Get(name); ok {
		return store, nil
	}
	result, err, _ := r.group.Do(name, func() (any, error) {
		// another caller may have finished while we waited for the lock
		if store, ok := r.Get(name); ok {
			return store, nil
		}
		store, err := factory(ctx, name)
		if err != nil {
			return nil, err
		}
		r.Add(name, store)
		log.Debugf("registered store for database %s", name)
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(stardog.TripleStore), nil
}

// Invalidate closes and forgets the store for name, e.g. after the database is dropped
func (r *Registry) Invalidate(name string) {
	r.mu.Lock()
	store, ok := r.stores[name]
	delete(r.stores, name)
	metrics.RegistryInstances.Set(float64(len(r.stores)))
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := store.Close(); err != nil {
		log.Errorf("failed to close store for %s: %v", name, err)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Close releases every store; the registry is empty afterwards
func (r *Registry) Close() error {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]stardog.TripleStore)
	metrics.RegistryInstances.Set(0)
	r.mu.Unlock()

	var errs []error
	for _, store := range stores {
		errs = append(errs, store.Close())
	}
	return errors.Join(errs...)
}
