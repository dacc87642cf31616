package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	audioKeyPrefix   = "voice:tts:"
	defaultAudioTTL  = 24 * time.Hour
	defaultStream    = "voice:telemetry"
	defaultStreamLen = 10000
)

type IRedis interface {
	GetAudio(ctx context.Context, key string) ([]byte, bool, error)
	PutAudio(ctx context.Context, key string, data []byte) error
	AppendEvent(ctx context.Context, deviceID, kind string, payload interface{}) error
	Close() error
}

type redisClient struct {
	client    *redis.Client
	audioTTL  time.Duration
	stream    string
	streamLen int64
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewFromClient(client)
}

// NewFromClient wraps an existing client, reading the cache TTL and stream
// name from the environment.
func NewFromClient(client *redis.Client) IRedis {
	r := &redisClient{
		client:    client,
		audioTTL:  defaultAudioTTL,
		stream:    defaultStream,
		streamLen: defaultStreamLen,
	}
	if ttl, err := time.ParseDuration(os.Getenv("REDIS_AUDIO_TTL")); err == nil && ttl > 0 {
		r.audioTTL = ttl
	}
	if stream := os.Getenv("REDIS_TELEMETRY_STREAM"); stream != "" {
		r.stream = stream
	}
	return r
}

// GetAudio returns synthesized audio cached under key. A miss is not an error.
func (r *redisClient) GetAudio(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, audioKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Audio cache miss for key %s", key))
		return nil, false, nil
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting audio for key %s: %v", key, err))
		return nil, false, err
	}
	return val, true, nil
}

func (r *redisClient) PutAudio(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, audioKeyPrefix+key, data, r.audioTTL).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching audio for key %s: %v", key, err))
		return err
	}
	logrus.Debug(fmt.Sprintf("Cached %d bytes of audio for key %s", len(data), key))
	return nil
}

// AppendEvent adds one entry to the capped telemetry stream.
func (r *redisClient) AppendEvent(ctx context.Context, deviceID, kind string, payload interface{}) error {
	body, err := jsoniter.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.streamLen,
		Approx: true,
		Values: map[string]interface{}{
			"device_id": deviceID,
			"kind":      kind,
			"payload":   body,
			"at":        time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error appending %s event for device %s: %v", kind, deviceID, err))
		return err
	}
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
