package main

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostones/mediavault/internal/config"
)

func TestLocalBaseURL(t *testing.T) {
	tests := map[string]string{
		":4000":          "http://localhost:4000",
		"0.0.0.0:8080":   "http://localhost:8080",
		"127.0.0.1:9000": "http://127.0.0.1:9000",
		"[::]:4000":      "http://localhost:4000",
	}
	for addr, want := range tests {
		assert.Equal(t, want, localBaseURL(addr), addr)
	}
}

func loadConfig(t *testing.T, set map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range set {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestRunRejectsIncompleteS3Config(t *testing.T) {
	cfg := loadConfig(t, map[string]any{"store": "s3", "region": "us-west-2", "bucket": ""})

	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_S3_BUCKET_NAME")
}

func TestRunMemoryStoreShutsDown(t *testing.T) {
	cfg := loadConfig(t, map[string]any{"store": "memory", "addr": "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, cfg))
	assert.Equal(t, "http://127.0.0.1:0/objects", cfg.PublicBaseURL)
}

func TestFlagsBindToConfig(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Set("store", "memory"))
	require.NoError(t, cmd.Flags().Set("server_multipart", "true"))

	for _, name := range []string{"addr", "store", "log_level", "server_multipart"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
