package publisher

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	pub := NewRedisPublisher(ctx, client, "test_extracted", 1, 100)
	defer pub.Close()

	stream := "test_extracted:product:0"
	client.Del(ctx, stream)

	err := pub.Publish("product", []byte(`{"title":"Widget"}`))
	require.NoError(t, err)

	messages, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)

	encoded, ok := messages[0].Values["product"].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Widget"}`, string(decoded))
}

func TestRedisPublisherTrimStreams(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	pub := NewRedisPublisher(ctx, client, "test_trim", 1, 5)
	defer pub.Close()

	stream := "test_trim:listing:0"
	client.Del(ctx, stream)

	for i := 0; i < 20; i++ {
		require.NoError(t, pub.Publish("listing", []byte("payload")))
	}
	require.NoError(t, pub.TrimStreams())

	// XTRIM MAXLEN without ~ is exact
	length, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, length, int64(5))
}
