package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror stores socket mappings and presence info in Redis so
// other services can read them.
// Keys used:
// - <prefix>:conn:<userID>     hash socketID -> connection meta JSON
// - <prefix>:presence:<userID> JSON {status,last_seen}
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type ConnMeta struct {
	SocketID    string `json:"socket_id"`
	ConnectedAt int64  `json:"connected_at"`
}

type Record struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewRedisMirror(r *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: r, prefix: prefix, ttl: ttl}
}

func (s *RedisMirror) connKey(userID string) string { return fmt.Sprintf("%s:conn:%s", s.prefix, userID) }
func (s *RedisMirror) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *RedisMirror) AddConnection(ctx context.Context, userID, connID string) error {
	meta, _ := json.Marshal(ConnMeta{SocketID: connID, ConnectedAt: time.Now().Unix()})
	rec, _ := json.Marshal(Record{Status: "online", LastSeen: time.Now().Unix()})
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.connKey(userID), connID, meta)
		p.Expire(ctx, s.connKey(userID), s.ttl)
		p.Set(ctx, s.presenceKey(userID), rec, s.ttl)
		return nil
	})
	return err
}

func (s *RedisMirror) RemoveConnection(ctx context.Context, userID, connID string) error {
	key := s.connKey(userID)
	if err := s.client.HDel(ctx, key, connID).Err(); err != nil {
		return err
	}
	n, err := s.client.HLen(ctx, key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	rec, _ := json.Marshal(Record{Status: "offline", LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.presenceKey(userID), rec, 0).Err()
}

// Get returns the mirrored presence record, or nil when none exists.
func (s *RedisMirror) Get(ctx context.Context, userID string) (*Record, error) {
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
