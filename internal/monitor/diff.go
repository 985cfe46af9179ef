package monitor

import (
	"errors"
	"fmt"
)

// ErrIdentity is returned when an entity has no usable identity.
var ErrIdentity = errors.New("entity has no identity")

// KeyFunc extracts a comparable key from an entity.
type KeyFunc[T any] func(T) (string, error)

func keySet[T any](items []T, key KeyFunc[T]) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(items))
	for i, it := range items {
		k, err := key(it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		set[k] = struct{}{}
	}
	return set, nil
}

// HasChanged reports whether the key sets of old and new differ. Order and
// attributes outside the key are ignored.
func HasChanged[T any](old, new []T, key KeyFunc[T]) (bool, error) {
	oldSet, err := keySet(old, key)
	if err != nil {
		return false, err
	}
	newSet, err := keySet(new, key)
	if err != nil {
		return false, err
	}
	if len(oldSet) != len(newSet) {
		return true, nil
	}
	for k := range newSet {
		if _, ok := oldSet[k]; !ok {
			return true, nil
		}
	}
	return false, nil
}

// NewItems returns the entities of new whose identity does not occur in
// old, in the order they appear in new. Entities sharing an identity are
// reported once. Both inputs are left untouched.
func NewItems[T any](old, new []T, id KeyFunc[T]) ([]T, error) {
	oldSet, err := keySet(old, id)
	if err != nil {
		return nil, err
	}
	var out []T
	seen := make(map[string]struct{}, len(new))
	for i, it := range new {
		k, err := id(it)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if _, ok := oldSet[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}
