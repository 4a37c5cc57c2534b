package snapshot

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/viewgrid/viewgrid/pkg/errors"
)

// keyPrefix namespaces snapshot keys in Redis.
const keyPrefix = "viewgrid:snapshots:"

// RedisStore persists snapshots as JSON values in Redis. Suited to
// multi-instance deployments where the graph is small enough that
// a document database is overkill.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(viewID string) string { return keyPrefix + viewID }

// Save stores the snapshot under the view's key with no expiry.
func (r *RedisStore) Save(ctx context.Context, viewID string, s Snapshot) (string, error) {
	if err := errors.ValidateViewID(viewID); err != nil {
		return "", err
	}
	s.ViewID = viewID
	data, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "marshal snapshot for view %s", viewID)
	}
	if err := r.client.Set(ctx, redisKey(viewID), data, 0).Err(); err != nil {
		return "", errors.Wrap(errors.ErrCodePersistence, err, "save snapshot for view %s", viewID)
	}
	return uuid.NewString(), nil
}

// Load fetches the snapshot, or nil when the key is absent.
func (r *RedisStore) Load(ctx context.Context, viewID string) (*Snapshot, error) {
	data, err := r.client.Get(ctx, redisKey(viewID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistence, err, "load snapshot for view %s", viewID)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorruptSnapshot, err, "decode snapshot for view %s", viewID)
	}
	return &s, nil
}

// Delete removes the view's snapshot key.
func (r *RedisStore) Delete(ctx context.Context, viewID string) error {
	if err := r.client.Del(ctx, redisKey(viewID)).Err(); err != nil {
		return errors.Wrap(errors.ErrCodePersistence, err, "delete snapshot for view %s", viewID)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
