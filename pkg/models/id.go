package models

import "github.com/google/uuid"

// NewID returns a fresh entity id with the given type prefix, e.g.
// NewID("eval") -> "eval_4f2c...". Prefixes keep keys self-describing in the
// document store.
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
