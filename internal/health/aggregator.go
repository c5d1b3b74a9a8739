package health

import (
	"context"
	"sync"
	"time"
)

// Aggregator 并发执行所有检查器并汇总状态
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

// NewAggregator 单项检查默认超时 3 秒
func NewAggregator(checkers ...Checker) *Aggregator {
	return &Aggregator{checkers: checkers, timeout: 3 * time.Second}
}

// AddChecker 添加检查器，nil 忽略
func (a *Aggregator) AddChecker(checker Checker) {
	if checker == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, checker)
}

// CheckAll 执行所有健康检查（并发）
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	a.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			r := c.Check(cctx)

			mu.Lock()
			results[c.Name()] = r
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

// Overall 任一 unhealthy 即 unhealthy，否则任一 degraded 即 degraded
func Overall(results map[string]CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// HealthReport 健康报告
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Report 执行一次检查并生成报告
func (a *Aggregator) Report(ctx context.Context) HealthReport {
	results := a.CheckAll(ctx)
	return HealthReport{Status: Overall(results), Timestamp: time.Now(), Checks: results}
}

// Ready degraded 仍视为就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	return Overall(a.CheckAll(ctx)) != StatusUnhealthy
}
