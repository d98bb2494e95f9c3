package config

import (
	"context"
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

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func init() {
	// Load env from .env
	godotenv.Load()
	// Redis is the legacy transient draft store plus the purge lock. The kiosk
	// must stay usable without it, so never block startup here.
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
// Call this from main(). Gives up after maxAttempts so a kiosk without redis
// still runs; the draft cache degrades to primary-store-only.
func ConnectRedisWithRetry(maxAttempts int) bool {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", redisAddr)
	}

	var attempt int
	for {
		attempt++
		rdb = redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: "",
			DB:       0, // use default DB
			PoolSize: 10,
		})
		if err := rdb.Ping(context.Background()).Err(); err == nil {
			locker = redislock.New(rdb)
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return true
		} else {
			if maxAttempts > 0 && attempt >= maxAttempts {
				log.Printf("giving up on redis after %d attempts (addr=%s): %v; running without transient store", attempt, redisAddr, err)
				rdb = nil
				locker = nil
				return false
			}
			sleep := time.Second * time.Duration(1<<min(attempt, 5))
			if sleep > 30*time.Second {
				sleep = 30 * time.Second
			}
			log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
			time.Sleep(sleep)
		}
	}
}
