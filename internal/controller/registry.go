package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/acocosum/traffic-protocol/internal/wire"
)

// registryTTL is comfortably longer than one heartbeat interval, so a
// registry entry only expires once a session has actually gone stale
// rather than between two consecutive touches.
const registryTTL = 300 * time.Second

// Registry mirrors established sessions into Redis for external liveness
// visibility. A nil *Registry is valid and a no-op — the registry is
// observability, never load-bearing for the session state machine
// itself.
type Registry struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRegistry dials url and pings it. An empty url disables the registry
// entirely (nil, nil).
func NewRegistry(ctx context.Context, url string, log zerolog.Logger) (*Registry, error) {
	if url == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: url})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", url, err)
	}
	return &Registry{client: client, log: log}, nil
}

func (r *Registry) key(connID string) string {
	return "sigctrl:session:" + connID
}

// Register records a newly established session with a TTL. Failures are
// logged and swallowed: losing the registry mirror never tears down the
// TCP session itself.
func (r *Registry) Register(ctx context.Context, connID string, identity wire.DeviceId, peerAddr string) {
	if r == nil {
		return
	}
	value := fmt.Sprintf("%06X:%d:%s", identity.AdminCode, identity.DeviceId, peerAddr)
	if err := r.client.Set(ctx, r.key(connID), value, registryTTL).Err(); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Msg("registry: failed to register session")
	}
}

// Touch refreshes the TTL, called alongside every heartbeat reset.
func (r *Registry) Touch(ctx context.Context, connID string) {
	if r == nil {
		return
	}
	r.client.Expire(ctx, r.key(connID), registryTTL)
}

// Remove deletes the session's registry entry on teardown.
func (r *Registry) Remove(ctx context.Context, connID string) {
	if r == nil {
		return
	}
	r.client.Del(ctx, r.key(connID))
}

// Close releases the underlying Redis client.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
