// Package secrets holds the OAuth client secret and other credentials in a
// thread-safe vault that can be reloaded at runtime (SIGHUP).
package secrets

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Loader retrieves secrets from a source (env vars, config file, ...).
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu      sync.RWMutex
	values  map[string]string
	loader  Loader
	reloads uint64
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{values: vals, loader: loader}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Keys returns the names of all loaded secrets, sorted.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
// It returns the keys whose value changed.
func (v *Vault) Reload() ([]string, error) {
	newVals, err := v.loader()
	if err != nil {
		return nil, fmt.Errorf("reload secrets: %w", err)
	}

	v.mu.Lock()
	var changed []string
	for k, nv := range newVals {
		if v.values[k] != nv {
			changed = append(changed, k)
		}
	}
	for k := range v.values {
		if _, ok := newVals[k]; !ok {
			changed = append(changed, k)
		}
	}
	v.values = newVals
	v.reloads++
	v.mu.Unlock()

	sort.Strings(changed)
	return changed, nil
}

// Redacted returns a masked form of the secret for diagnostics: the first
// two characters followed by "****", or "****" for short values.
func (v *Vault) Redacted(key string) string {
	return mask(v.Get(key))
}

// RedactString masks every loaded secret value occurring in s.
func (v *Vault) RedactString(s string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, val := range v.values {
		if len(val) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, val, mask(val))
	}
	return s
}

func mask(val string) string {
	switch {
	case val == "":
		return ""
	case len(val) <= 4:
		return "****"
	default:
		return val[:2] + "****"
	}
}
