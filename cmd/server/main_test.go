package main

import (
	"testing"

	"github.com/tbourn/go-restaurant-backend/internal/config"
)

func TestConnectRedis_Disabled(t *testing.T) {
	if c := connectRedis(config.RealtimeConfig{}); c != nil {
		t.Fatal("empty address must disable the relay")
	}
}

func TestConnectRedis_UnreachableFallsBack(t *testing.T) {
	// Port 1 refuses connections, so Ping fails fast.
	if c := connectRedis(config.RealtimeConfig{RedisAddr: "127.0.0.1:1", RedisChannel: "x"}); c != nil {
		t.Fatal("unreachable redis must disable the relay")
	}
}
