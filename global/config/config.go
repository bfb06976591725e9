package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"PlayGrid/tools/ids"
)

// AppConfig carries everything the gateway node needs at startup. Values are
// defaults overridable through the environment, see Load.
type AppConfig struct {
	NodeID   string // gateway node id, used in logs and snowflake node part
	HTTPAddr string // gin listen address

	JWTSecret []byte

	// connection lifecycle
	AuthDeadline time.Duration // unauthenticated connections are closed after this
	PingInterval time.Duration // server ping cadence
	PongWait     time.Duration // read deadline extension granted per pong
	WriteWait    time.Duration // per-frame write deadline
	SendBuffer   int           // per-connection outbound queue depth

	// store-and-forward
	QueueCapPerUser int // max buffered payloads per offline user, drop-oldest

	// persistence timeout for the durability write
	StoreTimeout time.Duration

	// collaborators
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI      string
	MongoDatabase string

	KafkaBrokers []string
	KafkaTopic   string // message.stored events
	KafkaEnabled bool

	NatsServers   []string
	NatsName      string
	NotifySubject string // notify.user.> push bridge
	NatsEnabled   bool

	// shared secret for POST /internal/notify
	InternalToken string

	// websocket upgrade origin allow list; empty admits everything
	AllowedOrigins []string
}

var Global = defaults()

func defaults() AppConfig {
	return AppConfig{
		NodeID:   "rt_gw-1",
		HTTPAddr: ":8080",

		JWTSecret: []byte("dev-only-secret-change-me"),

		AuthDeadline: 15 * time.Second,
		PingInterval: 25 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
		SendBuffer:   256,

		QueueCapPerUser: 512,
		StoreTimeout:    5 * time.Second,

		RedisAddr: "127.0.0.1:6379",
		RedisDB:   0,

		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "playgrid",

		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "gateway_message_stored",

		NatsServers:   []string{"nats://127.0.0.1:4222"},
		NatsName:      "rt_gw-1",
		NotifySubject: "notify.user.>",
	}
}

// Load overlays environment variables onto the defaults and configures the id
// generator. Call once from main before anything else.
func Load() {
	c := &Global

	c.NodeID = GetEnv("GATEWAY_ID", c.NodeID)
	c.HTTPAddr = GetEnv("HTTP_ADDR", c.HTTPAddr)
	if s := os.Getenv("JWT_SECRET"); s != "" {
		c.JWTSecret = []byte(s)
	}

	c.AuthDeadline = GetEnvDuration("AUTH_DEADLINE", c.AuthDeadline)
	c.PingInterval = GetEnvDuration("PING_INTERVAL", c.PingInterval)
	c.PongWait = GetEnvDuration("PONG_WAIT", c.PongWait)
	c.WriteWait = GetEnvDuration("WRITE_WAIT", c.WriteWait)
	c.SendBuffer = GetEnvInt("SEND_BUFFER", c.SendBuffer)
	c.QueueCapPerUser = GetEnvInt("QUEUE_CAP_PER_USER", c.QueueCapPerUser)
	c.StoreTimeout = GetEnvDuration("STORE_TIMEOUT", c.StoreTimeout)

	c.RedisAddr = GetEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = GetEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = GetEnvInt("REDIS_DB", c.RedisDB)

	c.MongoURI = GetEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = GetEnv("MONGO_DB", c.MongoDatabase)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	c.KafkaTopic = GetEnv("KAFKA_TOPIC", c.KafkaTopic)
	c.KafkaEnabled = GetEnvBool("KAFKA_ENABLED", c.KafkaEnabled)

	if v := os.Getenv("NATS_SERVERS"); v != "" {
		c.NatsServers = splitList(v)
	}
	c.NatsName = GetEnv("NATS_NAME", c.NodeID)
	c.NotifySubject = GetEnv("NOTIFY_SUBJECT", c.NotifySubject)
	c.NatsEnabled = GetEnvBool("NATS_ENABLED", c.NatsEnabled)

	c.InternalToken = GetEnv("INTERNAL_TOKEN", c.InternalToken)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	ids.SetNodeID(int64(GetEnvInt("SNOWFLAKE_NODE", 1)))
}

func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func GetEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
