// Package masterdata holds the station-complex lookup used to resolve raw
// device groups into the logical complexes that aggregates report against.
package masterdata

import (
	"context"
	"errors"
)

// ErrNilMapping is returned when a resolver is built from a nil snapshot source.
var ErrNilMapping = errors.New("masterdata: nil mapping source")

// MappingSource loads the device-group to complex lookup table.
type MappingSource interface {
	LoadMapping(ctx context.Context) (map[string]string, error)
}

// Resolver resolves device groups to complex ids against an immutable
// snapshot taken at run start. Lookup changes mid-run are not observed.
type Resolver struct {
	mapping map[string]string
}

// NewResolver constructs a resolver over a snapshot of the lookup table.
// A nil or empty snapshot is valid: every group then self-maps.
func NewResolver(mapping map[string]string) *Resolver {
	snapshot := make(map[string]string, len(mapping))
	for group, complexID := range mapping {
		if group == "" || complexID == "" {
			continue
		}
		snapshot[group] = complexID
	}
	return &Resolver{mapping: snapshot}
}

// LoadResolver takes the run-start snapshot from a mapping source.
func LoadResolver(ctx context.Context, source MappingSource) (*Resolver, error) {
	if source == nil {
		return nil, ErrNilMapping
	}
	mapping, err := source.LoadMapping(ctx)
	if err != nil {
		return nil, err
	}
	return NewResolver(mapping), nil
}

// Resolve returns the complex id for a device group. Unmapped groups resolve
// to themselves, so every device lands in exactly one complex.
func (r *Resolver) Resolve(group string) string {
	if r == nil || r.mapping == nil {
		return group
	}
	if complexID, ok := r.mapping[group]; ok {
		return complexID
	}
	return group
}

// Size reports how many explicit mappings the snapshot carries.
func (r *Resolver) Size() int {
	if r == nil {
		return 0
	}
	return len(r.mapping)
}
