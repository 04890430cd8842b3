package db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/config"
)

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 3})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.Equal(t, 3, client.Options().PoolSize)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestOpenRedis_Disabled(t *testing.T) {
	client, err := OpenRedis(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOpenRedis_Errors(t *testing.T) {
	_, err := OpenRedis(context.Background(), config.RedisConfig{URL: "not a url"})
	assert.ErrorContains(t, err, "invalid redis URL")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = OpenRedis(context.Background(), config.RedisConfig{URL: "redis://" + addr})
	assert.ErrorContains(t, err, "failed to connect to redis")
}
