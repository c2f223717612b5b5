// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
	"weak"

	"github.com/holomush/hotswap/pkg/errutil"
	"github.com/holomush/hotswap/pkg/hotswap"
)

// Registry owns the known plugins and every reference issued to them.
//
// All operations are serialized by one mutex and run to completion on the
// caller's goroutine, module loads included. Entry points invoked during a
// load receive an API bound to the held lock, so a module calling Add (or
// any other API method) from its entry point does not deadlock.
type Registry struct {
	loader *Loader
	logger *slog.Logger

	mu          sync.Mutex
	descriptors []*Descriptor
	byHash      map[uint32]*Descriptor
	refs        []weak.Pointer[Reference]
	closed      bool
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry that loads modules with loader.
// Panics if loader is nil.
func NewRegistry(loader *Loader, opts ...RegistryOption) *Registry {
	if loader == nil {
		panic("plugin: loader cannot be nil")
	}
	r := &Registry{
		loader: loader,
		logger: slog.Default(),
		byHash: make(map[uint32]*Descriptor),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// API returns the registry's public surface for hosts.
func (r *Registry) API() hotswap.API {
	return registryAPI{r: r}
}

// RequestLoad registers the plugin name found in dir and loads it.
//
// The descriptor stays registered when the first load fails, without a
// module; CheckAll loads it once its file appears or changes.
func (r *Registry) RequestLoad(ctx context.Context, dir, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestLoadLocked(ctx, dir, name)
}

func (r *Registry) requestLoadLocked(ctx context.Context, dir, name string) error {
	if r.closed {
		return ErrRegistryClosed()
	}
	if !ValidName(name) {
		return ErrInvalidName(name)
	}
	d := NewDescriptor(dir, name)
	if _, ok := r.byHash[d.Hash]; ok {
		return ErrAlreadyRegistered(name)
	}

	r.descriptors = append(r.descriptors, d)
	r.byHash[d.Hash] = d
	return r.load(ctx, d)
}

// Add installs iface as the named plugin's interface and patches every
// reference issued for it. Unknown names are logged and rejected.
func (r *Registry) Add(name string, iface any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(name, iface)
}

func (r *Registry) addLocked(name string, iface any) error {
	if r.closed {
		return ErrRegistryClosed()
	}
	hash := hotswap.Hash(name)
	d, ok := r.byHash[hash]
	if !ok {
		err := ErrUnknownPlugin(name)
		errutil.LogWarn(r.logger, "discarding interface for unregistered plugin", err)
		return err
	}

	d.iface = iface
	d.registered = d.Generation
	patched := r.patch(hash, iface)
	if patched > 0 {
		ReferencesPatched.WithLabelValues(d.Name).Add(float64(patched))
	}
	r.logger.Debug("interface registered",
		"plugin", d.Name,
		"references_patched", patched)
	return nil
}

// patch refreshes every live reference for hash and prunes collected ones.
func (r *Registry) patch(hash uint32, iface any) int {
	patched := 0
	live := r.refs[:0]
	for _, wp := range r.refs {
		ref := wp.Value()
		if ref == nil {
			continue
		}
		live = append(live, wp)
		if ref.hash == hash {
			ref.set(iface)
			patched++
		}
	}
	clear(r.refs[len(live):])
	r.refs = live
	return patched
}

// Lookup issues a new reference to the named plugin. Every call returns a
// distinct reference; all of them are kept current by Add.
func (r *Registry) Lookup(name string) (*Reference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(name)
}

func (r *Registry) lookupLocked(name string) (*Reference, error) {
	if r.closed {
		return nil, ErrRegistryClosed()
	}
	d, ok := r.byHash[hotswap.Hash(name)]
	if !ok {
		return nil, ErrPluginNotFound(name)
	}
	ref := newReference(d)
	r.refs = append(r.refs, weak.Make(ref))
	r.logger.Debug("reference issued",
		"plugin", d.Name,
		"reference", ref.ID().String())
	return ref, nil
}

// CheckAll reloads every plugin whose module file is newer than its last
// load, synchronously. It returns the number of reloads attempted.
func (r *Registry) CheckAll(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkAllLocked(ctx)
}

func (r *Registry) checkAllLocked(ctx context.Context) int {
	if r.closed {
		return 0
	}
	attempts := 0
	for _, d := range r.descriptors {
		if !r.loader.IsStale(d) {
			continue
		}
		r.logger.InfoContext(ctx, "module file changed, reloading",
			"plugin", d.Name,
			"previous_mod_time", d.ModTime)
		StaleReloads.WithLabelValues(d.Name).Inc()
		attempts++
		// Failures are recorded on the descriptor and logged by load.
		_ = r.load(ctx, d) //nolint:errcheck // see above
	}
	return attempts
}

// load runs the loader and applies the descriptor state transitions.
func (r *Registry) load(ctx context.Context, d *Descriptor) error {
	prev := d.State
	prevIface, prevRegistered := d.iface, d.registered
	if prev == StateLoaded {
		d.State = StateReloading
	}

	err := r.loader.Load(ctx, d, registryAPI{r: r, locked: true})
	if err != nil {
		if d.registered == d.Generation {
			// The failed entry point installed an interface before giving
			// up; its module is gone, so put the previous one back.
			d.iface, d.registered = prevIface, prevRegistered
			r.patch(d.Hash, prevIface)
		}
		d.State = prev
		d.LastError = err
		errutil.Log(ctx, r.logger, slog.LevelError, "module load failed", err,
			"plugin", d.Name,
			"generation", d.Generation)
		return err
	}

	d.State = StateLoaded
	d.LastError = nil
	if prev == StateLoaded {
		d.Reloads++
	}
	if d.registered != d.Generation {
		r.logger.WarnContext(ctx, "module entry point did not register an interface",
			"plugin", d.Name,
			"generation", d.Generation)
	}
	return nil
}

// Status is a snapshot of one descriptor.
type Status struct {
	Name       string
	Hash       uint32
	Dir        string
	State      State
	Generation uint64
	Reloads    int
	ModTime    time.Time
	HasModule  bool
	References int
	LastError  string
}

// Status returns a snapshot of every plugin in registration order.
func (r *Registry) Status() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	refs := make(map[uint32]int)
	for _, wp := range r.refs {
		if ref := wp.Value(); ref != nil {
			refs[ref.hash]++
		}
	}

	out := make([]Status, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		s := Status{
			Name:       d.Name,
			Hash:       d.Hash,
			Dir:        d.Dir,
			State:      d.State,
			Generation: d.Generation,
			Reloads:    d.Reloads,
			ModTime:    d.ModTime,
			HasModule:  d.module != nil,
			References: refs[d.Hash],
		}
		if d.LastError != nil {
			s.LastError = d.LastError.Error()
		}
		out = append(out, s)
	}
	return out
}

// Plugins returns the names of all registered plugins.
func (r *Registry) Plugins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		names = append(names, d.Name)
	}

	// Sort for deterministic output
	sort.Strings(names)
	return names
}

// Ready reports whether every registered plugin has a loaded module.
func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	for _, d := range r.descriptors {
		if d.module == nil {
			return false
		}
	}
	return true
}

// Close releases every module and discards all descriptors and references.
// Later operations fail with REGISTRY_CLOSED.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	for _, d := range r.descriptors {
		r.loader.Release(ctx, d)
		d.State = StateUnloaded
	}

	r.closed = true
	r.descriptors = nil
	clear(r.byHash)
	r.refs = nil
	return nil
}

// registryAPI adapts Registry to hotswap.API. The locked variant is handed
// to entry points, which run while the registry lock is held.
type registryAPI struct {
	r      *Registry
	locked bool
}

func (a registryAPI) Add(name string, iface any) error {
	if a.locked {
		return a.r.addLocked(name, iface)
	}
	return a.r.Add(name, iface)
}

func (a registryAPI) Lookup(name string) (hotswap.Reference, error) {
	var (
		ref *Reference
		err error
	)
	if a.locked {
		ref, err = a.r.lookupLocked(name)
	} else {
		ref, err = a.r.Lookup(name)
	}
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func (a registryAPI) CheckAll(ctx context.Context) {
	if a.locked {
		a.r.checkAllLocked(ctx)
		return
	}
	a.r.CheckAll(ctx)
}

func (a registryAPI) RequestLoad(ctx context.Context, dir, name string) error {
	if a.locked {
		return a.r.requestLoadLocked(ctx, dir, name)
	}
	return a.r.RequestLoad(ctx, dir, name)
}
