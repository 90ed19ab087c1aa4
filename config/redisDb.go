package config

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)
var ctx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func GetRedisContext() context.Context {
	return ctx
}

// ConnectRedisWithRetry connects and sets the global Redis client.
// Redis is an optional optimization: when REDIS_ADDRESS is unset the helpers
// below degrade to no-ops and callers fall through to the database.
func ConnectRedisWithRetry() {
	godotenv.Load()
	address := os.Getenv("REDIS_ADDRESS")
	if address == "" {
		log.Println("REDIS_ADDRESS not set; running without redis cache")
		return
	}

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{Addr: address})
		if err := client.Ping(ctx).Err(); err == nil {
			rdb = client
			locker = redislock.New(client)
			log.Printf("connected to redis (attempt=%d)", attempt)
			return
		} else if attempt >= 5 {
			log.Printf("redis unavailable after %d attempts: %v; running without redis cache", attempt, err)
			return
		} else {
			log.Printf("failed to connect redis (attempt=%d): %v; retrying", attempt, err)
			time.Sleep(time.Second * time.Duration(attempt))
		}
	}
}

func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	err = json.Unmarshal([]byte(val), &dest)
	if err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if err = rdb.Set(ctx, key, objInByte, exp).Err(); err != nil {
		return err
	}
	return nil
}

func RemoveRedisKey(keys ...string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.Del(ctx, keys...).Result()
	return err
}
