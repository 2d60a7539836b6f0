package jumpbridge

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ModuleRegistry caches loaded modules by name. A module is loaded at most
// once; later imports return the cached handle without reloading.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]Module

	loader    Loader
	installer Installer
	group     singleflight.Group
	logger    *slog.Logger
}

func NewModuleRegistry(loader Loader, installer Installer, logger *slog.Logger) *ModuleRegistry {
	if installer == nil {
		installer = NopInstaller{}
	}
	return &ModuleRegistry{
		modules:   make(map[string]Module),
		loader:    loader,
		installer: installer,
		logger:    logger,
	}
}

// Import returns the named module, loading it on first use. When the load
// fails and autoInstall is set, the installer is asked for a package of the
// same name and the load is retried exactly once.
func (r *ModuleRegistry) Import(ctx context.Context, name string, autoInstall bool) (Module, error) {
	if m, ok := r.cached(name); ok {
		return m, nil
	}

	// Concurrent imports of one name share a single load attempt.
	key := name + "\x00" + strconv.FormatBool(autoInstall)
	v, err, _ := r.group.Do(key, func() (any, error) {
		if m, ok := r.cached(name); ok {
			return m, nil
		}
		m, err := r.load(ctx, name, autoInstall)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.modules[name] = m
		r.mu.Unlock()
		r.logger.Info("module imported", "module", name)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Module), nil
}

func (r *ModuleRegistry) load(ctx context.Context, name string, autoInstall bool) (Module, error) {
	m, err := r.loader.Load(ctx, name)
	if err == nil {
		return m, nil
	}
	if !autoInstall {
		return nil, wrapError(KindImport, err, "cannot import module '%s': %v", name, err)
	}

	r.logger.Info("module not loadable, attempting install", "module", name, "error", err)
	if !r.installer.Install(ctx, name) {
		return nil, wrapError(KindImport, err, "failed to auto-install module '%s': %v", name, err)
	}
	m, retryErr := r.loader.Load(ctx, name)
	if retryErr != nil {
		return nil, wrapError(KindImport, errors.Join(err, retryErr),
			"cannot import module '%s' after install: %v", name, retryErr)
	}
	return m, nil
}

func (r *ModuleRegistry) cached(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Lookup returns an already imported module.
func (r *ModuleRegistry) Lookup(name string) (Module, error) {
	if m, ok := r.cached(name); ok {
		return m, nil
	}
	return nil, newError(KindLookup, "module '%s' not imported", name)
}

// Names lists the imported modules in sorted order.
func (r *ModuleRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Preload imports each name without auto-install and reports every failure.
func (r *ModuleRegistry) Preload(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if _, err := r.Import(ctx, name, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
