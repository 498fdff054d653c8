package cache

import (
	"context"
	"errors"
)

type LookupRecorder interface {
	CacheLookup(cache string, hit bool)
}

// Instrumented reports every Get on c as a hit or a miss under name. Errors other than
// ErrCacheMiss are not counted.
func Instrumented(c Cache, name string, r LookupRecorder) Cache {
	return &instrumented{Cache: c, name: name, rec: r}
}

type instrumented struct {
	Cache
	name string
	rec  LookupRecorder
}

func (i *instrumented) Get(ctx context.Context, key string, dst any) error {
	err := i.Cache.Get(ctx, key, dst)
	switch {
	case err == nil:
		i.rec.CacheLookup(i.name, true)
	case errors.Is(err, ErrCacheMiss):
		i.rec.CacheLookup(i.name, false)
	}
	return err
}
