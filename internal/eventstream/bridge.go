package eventstream

import (
	"time"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore"
)

// Bridge registers an ASYNC_TIMED listener on a Cache that republishes
// every lifecycle event onto a Bus, making the cache's otherwise
// in-process event stream observable to external WebSocket subscribers.
// ASYNC_TIMED is used deliberately: a slow or disconnected external
// observer must never be able to stall a cache mutation (spec.md §4.6).
func Bridge[K comparable, V any](c *cachecore.Cache[K, V], bus *Bus, keyFn func(K) string, queueSize int, timeout time.Duration) (string, error) {
	return c.RegisterCacheEntryListener(cachecore.ListenerConfig[K, V]{
		Listener: cachecore.ListenerFunc[K, V](func(e cachecore.Event[K, V]) {
			_ = bus.Publish(NewWireEvent(e, keyFn))
		}),
		Mode:      cachecore.DispatchAsyncTimed,
		QueueSize: queueSize,
		Timeout:   timeout,
	})
}
