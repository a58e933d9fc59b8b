// Package memo persists the results of pure history queries across
// processes. filter-branch starts a fresh filterclang process for every
// commit, so an in-memory cache would never be hit.
package memo

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Cache stores JSON-encoded results keyed by function name and argument.
// Entries are written once and never invalidated.
type Cache interface {
	Get(fn, arg string) ([]byte, bool, error)
	Put(fn, arg string, value []byte) error
}

// Nop is a Cache that never hits and drops every write.
type Nop struct{}

func (Nop) Get(string, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Put(string, string, []byte) error         { return nil }

// Do returns the cached result of fn(arg) or computes, stores and
// returns it. compute must be pure; its errors are returned and never
// cached.
func Do[T any](c Cache, fn, arg string, compute func() (T, error)) (T, error) {
	var zero T

	if data, ok, err := c.Get(fn, arg); err != nil {
		return zero, fmt.Errorf("reading cached %s(%s): %w", fn, arg, err)
	} else if ok {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return zero, fmt.Errorf("decoding cached %s(%s): %w", fn, arg, err)
		}
		log.WithFields(log.Fields{"fn": fn, "arg": arg}).Debug("cache hit")
		return v, nil
	}

	start := time.Now()
	v, err := compute()
	if err != nil {
		return zero, err
	}
	log.WithFields(log.Fields{
		"fn":      fn,
		"arg":     arg,
		"elapsed": time.Since(start),
	}).Debug("computed")

	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encoding %s(%s): %w", fn, arg, err)
	}
	if err := c.Put(fn, arg, data); err != nil {
		return zero, fmt.Errorf("caching %s(%s): %w", fn, arg, err)
	}
	return v, nil
}
