package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport.ReconnectDelay != 3*time.Second {
		t.Errorf("reconnect delay = %v", cfg.Transport.ReconnectDelay)
	}
	if cfg.Transport.Driver != "ws" || cfg.Transport.URL != "ws://localhost:8080/ws" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Completion.Language != "javascript" {
		t.Errorf("language = %q", cfg.Completion.Language)
	}
	if cfg.Presence.CursorTTL != 5*time.Minute {
		t.Errorf("cursor ttl = %v", cfg.Presence.CursorTTL)
	}
	if cfg.Participant.IDGenerator != "short-uuid" {
		t.Errorf("id generator = %q", cfg.Participant.IDGenerator)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())
	t.Setenv("ROOM_ID", "r1")
	t.Setenv("TRANSPORT_DRIVER", "pubsub")
	t.Setenv("PUBSUB_DRIVER", "kafka")
	t.Setenv("PRESENCE_CURSOR_TTL", "0s")
	t.Setenv("PARTICIPANT_ID", "0a1b2c3d")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Room.ID != "r1" {
		t.Errorf("room = %q", cfg.Room.ID)
	}
	if cfg.Transport.Driver != "pubsub" || cfg.PubSub.Driver != "kafka" {
		t.Errorf("drivers = %q / %q", cfg.Transport.Driver, cfg.PubSub.Driver)
	}
	if cfg.Participant.ID != "0a1b2c3d" {
		t.Errorf("participant id = %q", cfg.Participant.ID)
	}
	if cfg.Presence.CursorTTL != 0 {
		t.Errorf("cursor ttl = %v, want eviction disabled", cfg.Presence.CursorTTL)
	}
}
