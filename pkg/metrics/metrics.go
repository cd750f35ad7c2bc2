// Package metrics provides a metrics collection and reporting system.
// Services write metrics to Redis for centralized access.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long metrics stay in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics holds metrics for a single service.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"

	// Counters (monotonically increasing since start)
	AlertsCreated   uint64 `json:"alerts_created"`
	AlertsAccepted  uint64 `json:"alerts_accepted"`
	AcceptRaceLost  uint64 `json:"accept_race_lost"`
	OffersDeclined  uint64 `json:"offers_declined"`
	AlertsCancelled uint64 `json:"alerts_cancelled"`
	AlertsCompleted uint64 `json:"alerts_completed"`
	Errors          uint64 `json:"errors"`

	// Rate (per report interval)
	AlertsPerSecond float64 `json:"alerts_per_second"`

	// Service-specific counters (flexible map)
	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector collects and reports metrics for a service. Its Record methods are
// safe for concurrent use.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	// Atomic counters
	alertsCreated   atomic.Uint64
	alertsAccepted  atomic.Uint64
	acceptRaceLost  atomic.Uint64
	offersDeclined  atomic.Uint64
	alertsCancelled atomic.Uint64
	alertsCompleted atomic.Uint64
	errors          atomic.Uint64

	// For rate calculation
	lastReportTime  time.Time
	lastCreatedSeen uint64

	// Custom counters
	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	// Stop channel
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector for a service.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		lastReportTime: time.Now().UTC(),
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordCreated increments the alerts created counter.
func (c *Collector) RecordCreated() {
	c.alertsCreated.Add(1)
}

// RecordAccepted increments the alerts accepted counter.
func (c *Collector) RecordAccepted() {
	c.alertsAccepted.Add(1)
}

// RecordAcceptLost increments the lost accept race counter.
func (c *Collector) RecordAcceptLost() {
	c.acceptRaceLost.Add(1)
}

// RecordDeclined increments the offers declined counter.
func (c *Collector) RecordDeclined() {
	c.offersDeclined.Add(1)
}

// RecordCancelled increments the alerts cancelled counter.
func (c *Collector) RecordCancelled() {
	c.alertsCancelled.Add(1)
}

// RecordCompleted increments the alerts completed counter.
func (c *Collector) RecordCompleted() {
	c.alertsCompleted.Add(1)
}

// RecordError increments the errors counter.
func (c *Collector) RecordError() {
	c.errors.Add(1)
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a custom counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
}

// GetSnapshot returns current metrics without writing to Redis.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	now := time.Now().UTC()
	created := c.alertsCreated.Load()

	// Calculate rate
	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(created-c.lastCreatedSeen) / elapsed
	}

	// Build custom counters map
	c.customMu.RLock()
	customCounters := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		customCounters[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:     c.serviceName,
		StartedAt:       c.startedAt,
		LastUpdated:     now,
		Status:          "healthy",
		AlertsCreated:   created,
		AlertsAccepted:  c.alertsAccepted.Load(),
		AcceptRaceLost:  c.acceptRaceLost.Load(),
		OffersDeclined:  c.offersDeclined.Load(),
		AlertsCancelled: c.alertsCancelled.Load(),
		AlertsCompleted: c.alertsCompleted.Load(),
		Errors:          c.errors.Load(),
		AlertsPerSecond: rate,
		CustomCounters:  customCounters,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	metrics := c.GetSnapshot()

	// Update rate calculation state
	c.lastReportTime = metrics.LastUpdated
	c.lastCreatedSeen = metrics.AlertsCreated

	data, err := json.Marshal(metrics)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

// Reader reads service metrics from Redis.
type Reader struct {
	redis *redis.Client
}

// NewReader creates a new metrics reader.
func NewReader(redisClient *redis.Client) *Reader {
	return &Reader{redis: redisClient}
}

// GetServiceMetrics retrieves metrics for a specific service.
func (r *Reader) GetServiceMetrics(ctx context.Context, serviceName string) (*ServiceMetrics, error) {
	key := MetricsKeyPrefix + serviceName
	data, err := r.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no metrics found for service: %s", serviceName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}

	var metrics ServiceMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &metrics, nil
}
