package rateLimit_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/ticket-inventory/internal/adapters/redis"
	"github.com/robertarktes/ticket-inventory/internal/rateLimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestAllow_FixedWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	rl := rateLimit.NewRateLimiter(redisadapter.NewCache(client, time.Second))
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(ctx, "user:a", 3, time.Minute), "request %d", i+1)
	}
	assert.False(t, rl.Allow(ctx, "user:a", 3, time.Minute))
	assert.True(t, rl.Allow(ctx, "user:b", 3, time.Minute), "keys are counted separately")

	ttl, err := client.TTL(ctx, "rl:user:a").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestAllow_FailsOpen(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer client.Close()

	rl := rateLimit.NewRateLimiter(redisadapter.NewCache(client, time.Second))
	assert.True(t, rl.Allow(context.Background(), "user:a", 0, time.Minute))
}
