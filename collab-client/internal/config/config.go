package config

import (
	"time"

	pkgconfig "github.com/weiawesome/wes-io-collab/pkg/config"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

type Config struct {
	Room        RoomConfig
	Participant ParticipantConfig
	Transport   TransportConfig
	PubSub      pubsub.Config `mapstructure:"pubsub"`
	Completion  CompletionConfig
	Presence    PresenceConfig
	Editor      EditorConfig
	Log         LogConfig
}

type RoomConfig struct {
	ID string
}

// ParticipantConfig picks the id generator. ID pins the participant id
// instead of generating one; it must be valid for the generator.
type ParticipantConfig struct {
	ID          string
	IDGenerator string `mapstructure:"id_generator"`
}

// TransportConfig selects how the client reaches the room: "ws" through the
// relay, or "pubsub" straight to the broker configured under pubsub.
type TransportConfig struct {
	Driver           string
	URL              string
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
	PublishTimeout   time.Duration `mapstructure:"publish_timeout"`
	HealthInterval   time.Duration `mapstructure:"health_interval"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
}

type CompletionConfig struct {
	URL      string
	Language string
	Timeout  time.Duration
}

type PresenceConfig struct {
	CursorTTL     time.Duration `mapstructure:"cursor_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type EditorConfig struct {
	File string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load(pkgconfig.Path(), "client")
	if err != nil {
		return nil, err
	}

	v.SetDefault("room.id", "")
	v.SetDefault("participant.id", "")
	v.SetDefault("participant.id_generator", "short-uuid")
	v.SetDefault("transport.driver", "ws")
	v.SetDefault("transport.url", "ws://localhost:8080/ws")
	v.SetDefault("transport.reconnect_delay", "3s")
	v.SetDefault("transport.publish_timeout", "2s")
	v.SetDefault("transport.health_interval", "5s")
	v.SetDefault("transport.handshake_timeout", "10s")
	v.SetDefault("transport.ping_interval", "30s")
	v.SetDefault("transport.pong_wait", "60s")
	v.SetDefault("transport.write_wait", "10s")
	v.SetDefault("transport.max_message_size", 1<<20)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 4)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "")
	v.SetDefault("completion.url", "http://localhost:8081")
	v.SetDefault("completion.language", "javascript")
	v.SetDefault("completion.timeout", "10s")
	v.SetDefault("presence.cursor_ttl", "5m")
	v.SetDefault("presence.sweep_interval", "30s")
	v.SetDefault("editor.file", "collab-document.txt")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.BindEnv("room.id", "ROOM_ID")
	v.BindEnv("transport.driver", "TRANSPORT_DRIVER")
	v.BindEnv("transport.url", "RELAY_URL")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("completion.url", "COMPLETION_URL")
	v.BindEnv("completion.language", "COMPLETION_LANGUAGE")
	v.BindEnv("editor.file", "EDITOR_FILE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Transport.ReconnectDelay = pkgconfig.Duration(v, "transport.reconnect_delay", 3*time.Second)
	cfg.Transport.PublishTimeout = pkgconfig.Duration(v, "transport.publish_timeout", 2*time.Second)
	cfg.Transport.HealthInterval = pkgconfig.Duration(v, "transport.health_interval", 5*time.Second)
	cfg.Transport.HandshakeTimeout = pkgconfig.Duration(v, "transport.handshake_timeout", 10*time.Second)
	cfg.Transport.PingInterval = pkgconfig.Duration(v, "transport.ping_interval", 30*time.Second)
	cfg.Transport.PongWait = pkgconfig.Duration(v, "transport.pong_wait", 60*time.Second)
	cfg.Transport.WriteWait = pkgconfig.Duration(v, "transport.write_wait", 10*time.Second)
	cfg.PubSub.Redis.ReadTimeout = pkgconfig.Duration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = pkgconfig.Duration(v, "pubsub.redis.write_timeout", 3*time.Second)
	cfg.Completion.Timeout = pkgconfig.Duration(v, "completion.timeout", 10*time.Second)
	cfg.Presence.CursorTTL = pkgconfig.Duration(v, "presence.cursor_ttl", 5*time.Minute)
	cfg.Presence.SweepInterval = pkgconfig.Duration(v, "presence.sweep_interval", 30*time.Second)

	return &cfg, nil
}
