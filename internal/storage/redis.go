package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"talent-search-go/internal/analytics"
	"talent-search-go/internal/config"
	"talent-search-go/internal/constants"
	"talent-search-go/internal/pipeline"
	"talent-search-go/internal/tracing"
	"talent-search-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("talent-search-go/storage/redis")

// 编译期检查：Redis承担简历内容去重和趋势报告缓存
var (
	_ pipeline.Deduper      = (*Redis)(nil)
	_ analytics.TrendsCache = (*Redis)(nil)
)

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// CheckAndSetTextMD5 原子检查并记录简历文本MD5。
// 返回true表示该内容首次出现，false表示重复。
func (r *Redis) CheckAndSetTextMD5(ctx context.Context, md5Hex string) (bool, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndSetTextMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.operation", "EVAL"),
		attribute.String("db.redis.key", tracing.SafeRedisKey(constants.KeyResumeTextMD5Set)),
	)

	if r.Client == nil {
		err := fmt.Errorf("redis client is not initialized")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	// Lua脚本保证检查和写入的原子性，过期时间只在首次创建集合时设置
	script := `
		local exists = redis.call('SISMEMBER', KEYS[1], ARGV[1])
		redis.call('SADD', KEYS[1], ARGV[1])
		if redis.call('TTL', KEYS[1]) < 0 then
			redis.call('EXPIRE', KEYS[1], ARGV[2])
		end
		return exists
	`
	expireSeconds := int64(constants.MD5RecordDefaultExpire / time.Second)
	result, err := r.Client.Eval(ctx, script, []string{constants.KeyResumeTextMD5Set}, md5Hex, expireSeconds).Int64()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, fmt.Errorf("去重检查失败: %w", err)
	}

	fresh := result == 0
	span.SetAttributes(attribute.Bool("dedup.fresh", fresh))
	span.SetStatus(codes.Ok, "")
	return fresh, nil
}

// RemoveTextMD5 从去重集合中移除一条记录，用于修复误判
func (r *Redis) RemoveTextMD5(ctx context.Context, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.SRem(ctx, constants.KeyResumeTextMD5Set, md5Hex).Err()
}

// GetTrendReport 从缓存读取趋势报告，未命中返回 (nil, nil)
func (r *Redis) GetTrendReport(ctx context.Context, windowDays int) (*types.TrendReport, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyTrendsCache, windowDays)
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("读取趋势报告缓存失败: %w", err)
	}

	var report types.TrendReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		// 缓存内容损坏时按未命中处理
		return nil, nil
	}
	return &report, nil
}

// SetTrendReport 缓存趋势报告
func (r *Redis) SetTrendReport(ctx context.Context, windowDays int, report *types.TrendReport) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if report == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("序列化趋势报告失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyTrendsCache, windowDays)
	return r.Client.Set(ctx, key, data, constants.TrendsCacheTTL).Err()
}

// SetLastIndexSync 记录最近一次成功的索引同步时间
func (r *Redis) SetLastIndexSync(ctx context.Context, at time.Time) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Set(ctx, constants.KeyLastIndexSync, at.Format(time.RFC3339), 0).Err()
}

// GetLastIndexSync 读取最近一次成功的索引同步时间，没有记录时返回零值
func (r *Redis) GetLastIndexSync(ctx context.Context) (time.Time, error) {
	if r.Client == nil {
		return time.Time{}, fmt.Errorf("redis client is not initialized")
	}
	val, err := r.Client.Get(ctx, constants.KeyLastIndexSync).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("读取索引同步时间失败: %w", err)
	}
	at, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("索引同步时间格式错误: %w", err)
	}
	return at, nil
}
