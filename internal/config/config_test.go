package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	for _, k := range []string{"RELAY_ADDR", "LOG_LEVEL", "LOG_FORMAT", "ALLOWED_ORIGINS", "MAX_RECEIVERS", "MAX_MESSAGE_BYTES", "MESSAGES_PER_SECOND", "MESSAGE_BURST"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadServer(ServerOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, 5, cfg.MaxReceivers)
	assert.Equal(t, int64(64*1024), cfg.MaxMessageBytes)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.AllowAnyOrigin())
}

func TestLoadServer_FlagBeatsEnvBeatsDefault(t *testing.T) {
	t.Setenv("RELAY_ADDR", ":9000")
	t.Setenv("MAX_RECEIVERS", "3")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadServer(ServerOptions{Addr: ":7000"})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 3, cfg.MaxReceivers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AllowAnyOrigin())
}

func TestLoadServer_RejectsBadValues(t *testing.T) {
	t.Setenv("MAX_RECEIVERS", "many")
	_, err := LoadServer(ServerOptions{})
	assert.Error(t, err)

	t.Setenv("MAX_RECEIVERS", "-1")
	_, err = LoadServer(ServerOptions{})
	assert.ErrorContains(t, err, "max receivers")

	t.Setenv("MAX_RECEIVERS", "")
	t.Setenv("MESSAGES_PER_SECOND", "fast")
	_, err = LoadServer(ServerOptions{})
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("RELAY_URL", "wss://relay.example/ws")
	t.Setenv("STUN_SERVER", "")

	cfg, err := LoadClient(ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example/ws", cfg.ServerURL)
	assert.Equal(t, "https://relay.example", cfg.HTTPBase())
	assert.Equal(t, "https://relay.example/rooms", cfg.RoomsURL())
	assert.Equal(t, []string{DefaultSTUN}, cfg.GetSTUNServers())

	cfg, err = LoadClient(ClientOptions{ServerURL: "ws://127.0.0.1:8082/ws", NoSTUN: true})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8082", cfg.HTTPBase())
	assert.Nil(t, cfg.GetSTUNServers())

	_, err = LoadClient(ClientOptions{ServerURL: "http://relay.example/ws"})
	assert.Error(t, err)
}
