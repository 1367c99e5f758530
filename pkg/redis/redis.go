// Package redis 负责建立 Redis 连接。
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Options 是连接参数。
type Options struct {
	Addr     string
	Password string
	DB       int
}

const pingTimeout = 5 * time.Second

// New 创建客户端并在 5 秒内完成一次 Ping，失败时关闭客户端并返回错误。
func New(ctx context.Context, opts Options, logger logrus.FieldLogger) (*redis.Client, error) {
	logger.WithField("addr", opts.Addr).Info("connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	logger.Info("connected to redis")
	return client, nil
}
