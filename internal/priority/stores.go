package priority

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/redis/go-redis/v9"
)

// RedisBlobStore keeps the directory as one JSON value under a single key, so
// load/save stay whole-unit operations.
type RedisBlobStore struct {
	client *redis.Client
	key    string
}

// NewRedisBlobStore returns a store under the given key.
func NewRedisBlobStore(client *redis.Client, key string) *RedisBlobStore {
	if key == "" {
		key = "stashkeeper:priority"
	}
	return &RedisBlobStore{client: client, key: key}
}

func (s *RedisBlobStore) Load(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, err
	}
	var users map[string]int
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = map[string]int{}
	}
	return users, nil
}

func (s *RedisBlobStore) Save(ctx context.Context, users map[string]int) error {
	data, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// FileBlobStore keeps the directory as a local JSON file for single-node
// deployments without redis.
type FileBlobStore struct {
	path string
}

// NewFileBlobStore returns a store backed by the given file path.
func NewFileBlobStore(path string) *FileBlobStore {
	return &FileBlobStore{path: path}
}

func (s *FileBlobStore) Load(_ context.Context) (map[string]int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, err
	}
	var users map[string]int
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = map[string]int{}
	}
	return users, nil
}

func (s *FileBlobStore) Save(_ context.Context, users map[string]int) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
