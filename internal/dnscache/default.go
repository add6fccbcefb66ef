package dnscache

import (
	"context"
	"sync"
)

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-global Cache, building and starting it on
// first use with the system resolver. Every backend connection in the
// process shares this one instance, matching the original implementation's
// process-global DNS cache.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultCache = New(Config{})
		go defaultCache.Run(context.Background())
	})
	return defaultCache
}
