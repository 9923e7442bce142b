// Package cache хранит отчеты анализа и счетчики сервиса в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tworjaga/flipper-rf-lab/internal/analytics"
)

const (
	// ReportKeyPrefix префикс ключей отчетов по сессии
	ReportKeyPrefix = "rflab:report:"
	// LatestReportsKey список последних отчетов, новые в начале
	LatestReportsKey = "rflab:reports:latest"
	// MaxLatestReports длина списка последних отчетов
	MaxLatestReports = 1000
	// ReportTTL время жизни отчета сессии
	ReportTTL = 1 * time.Hour

	// Ключи счетчиков
	CounterPulses   = "rflab:counter:pulses"
	CounterFrames   = "rflab:counter:frames"
	CounterAnalyses = "rflab:counter:analyses"
)

// ErrNotFound отчета нет в кэше
var ErrNotFound = errors.New("report not found in cache")

// RedisCache кэш отчетов в Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache подключается к Redis и проверяет соединение
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewFromClient оборачивает готовый клиент
func NewFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// SaveReport сохраняет отчет под ключом сессии и добавляет его в список последних
func (r *RedisCache) SaveReport(ctx context.Context, rep analytics.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, ReportKeyPrefix+rep.SessionID, data, ReportTTL)
	pipe.LPush(ctx, LatestReportsKey, data)
	pipe.LTrim(ctx, LatestReportsKey, 0, MaxLatestReports-1)
	pipe.Incr(ctx, CounterAnalyses)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// GetReport последний отчет сессии
func (r *RedisCache) GetReport(ctx context.Context, sessionID string) (analytics.Report, error) {
	var rep analytics.Report
	data, err := r.client.Get(ctx, ReportKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return rep, ErrNotFound
	}
	if err != nil {
		return rep, fmt.Errorf("failed to get report: %w", err)
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		return rep, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return rep, nil
}

// LatestReports до count последних отчетов, новые первыми.
// Нечитаемые записи пропускаются
func (r *RedisCache) LatestReports(ctx context.Context, count int64) ([]analytics.Report, error) {
	if count <= 0 {
		return nil, nil
	}
	data, err := r.client.LRange(ctx, LatestReportsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reports: %w", err)
	}

	reports := make([]analytics.Report, 0, len(data))
	for _, d := range data {
		var rep analytics.Report
		if err := json.Unmarshal([]byte(d), &rep); err != nil {
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// IncrementCounter увеличивает счетчик на delta
func (r *RedisCache) IncrementCounter(ctx context.Context, key string, delta int64) (int64, error) {
	return r.client.IncrBy(ctx, key, delta).Result()
}

// GetCounter значение счетчика; отсутствующий счетчик равен нулю
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
