package config

import (
	"context"
	"log"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

// GetRedisLock returns the distributed-lock client, or nil if Redis was
// never configured or is unreachable. Callers (the scheduler) must treat
// a nil locker as "proceed without the lock", never as a fatal error —
// the lock is a multi-instance nicety, not a correctness requirement.
func GetRedisLock() *redislock.Client {
	return locker
}

// ConnectRedisBestEffort attempts a single connection to addr and installs
// the lock client on success. Unlike the database connection, this never
// retries or blocks startup: a single-instance deployment has no Redis at
// all, and that must not prevent the scheduler from running.
func ConnectRedisBestEffort(addr string) {
	if addr == "" {
		return
	}
	rdb = redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis unavailable at %s, scheduler will run without a distributed lock: %v", addr, err)
		rdb = nil
		return
	}
	locker = redislock.New(rdb)
	log.Printf("connected to redis at %s for scheduler locking", addr)
}
