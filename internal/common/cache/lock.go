package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld 锁已被其他持有者占用
var ErrLockHeld = errors.New("cache: lock held by another owner")

// ErrLockLost 锁已过期或被他人占用，续期失败
var ErrLockLost = errors.New("cache: lock no longer owned")

// 仅当 value 与持有者令牌一致时删除，避免误删他人续占的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker 基于 SET NX PX 的分布式互斥锁
type Locker struct {
	client redis.Cmdable
}

// NewLocker 创建分布式锁；client 为 nil 时所有操作直接成功，单实例部署下由数据库行锁兜底
func NewLocker(client redis.Cmdable) *Locker {
	return &Locker{client: client}
}

// Lock 持有中的锁
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Acquire 尝试获取锁，已被占用时返回 ErrLockHeld
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{locker: l, key: key, token: uuid.NewString()}
	if l == nil || l.client == nil {
		return lock, nil
	}

	ok, err := l.client.SetNX(ctx, key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return lock, nil
}

// Release 释放锁
func (k *Lock) Release(ctx context.Context) error {
	if k == nil || k.locker == nil || k.locker.client == nil {
		return nil
	}
	return unlockScript.Run(ctx, k.locker.client, []string{k.key}, k.token).Err()
}

// Extend 将锁的剩余有效期重置为 ttl，锁已不属于当前持有者时返回 ErrLockLost
func (k *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	if k == nil || k.locker == nil || k.locker.client == nil {
		return nil
	}
	n, err := extendScript.Run(ctx, k.locker.client, []string{k.key}, k.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// Key 锁对应的缓存键
func (k *Lock) Key() string {
	return k.key
}
