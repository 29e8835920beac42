package knowledge

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// IndexCache holds the current index snapshot. Builds for the same
// fingerprint collapse into one flight; readers take the snapshot
// without locking.
type IndexCache struct {
	current atomic.Pointer[Index]
	group   singleflight.Group
}

func NewIndexCache() *IndexCache {
	return &IndexCache{}
}

// Current returns the latest snapshot, or nil when nothing is built yet.
func (c *IndexCache) Current() *Index {
	return c.current.Load()
}

// GetOrBuild returns the snapshot for fingerprint, invoking build at
// most once per fingerprint across concurrent callers. A successful
// build replaces the current snapshot.
func (c *IndexCache) GetOrBuild(fingerprint string, build func() (*Index, error)) (*Index, error) {
	if ix := c.current.Load(); ix != nil && ix.Fingerprint == fingerprint {
		return ix, nil
	}
	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		if ix := c.current.Load(); ix != nil && ix.Fingerprint == fingerprint {
			return ix, nil
		}
		ix, err := build()
		if err != nil {
			return nil, err
		}
		c.current.Store(ix)
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Invalidate drops the snapshot if it matches fingerprint, or any
// snapshot when fingerprint is empty.
func (c *IndexCache) Invalidate(fingerprint string) {
	if fingerprint == "" {
		c.current.Store(nil)
		return
	}
	if ix := c.current.Load(); ix != nil && ix.Fingerprint == fingerprint {
		c.current.CompareAndSwap(ix, nil)
	}
}
