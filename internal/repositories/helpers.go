package repositories

import (
	"errors"

	"github.com/anonto42/devforum/backend/internal/realtime"
)

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(values []string, v string) []string {
	out := values[:0]
	for _, s := range values {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// loadDocument turns a point read into a document snapshot, mapping ErrNotFound to
// a snapshot that does not exist.
func loadDocument[T any](v *T, err error) (realtime.Document[T], error) {
	if errors.Is(err, ErrNotFound) {
		return realtime.Document[T]{}, nil
	}
	if err != nil {
		return realtime.Document[T]{}, err
	}
	return realtime.Document[T]{Value: *v, Exists: true}, nil
}
