package health

import (
	"context"
	"sync"
	"time"

	"cadverse/internal/shared/logger"
)

// Status 表示一个探测目标的健康状态。
type Status int

const (
	StatusUnknown Status = iota
	StatusUp
	StatusDown
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// Probe 检查一个目标，返回 nil 表示可用。
type Probe func(ctx context.Context) error

// Result 是一次探测的结果。
type Result struct {
	Status  Status
	Latency time.Duration
	Err     error
}

// Checker 对一组探测目标进行并发健康检查。
type Checker struct {
	timeout time.Duration
}

// New 创建一个新的 Checker 实例。timeout 作用于每个探测。
func New(timeout time.Duration) *Checker {
	return &Checker{timeout: timeout}
}

// Check 并发执行所有探测并等待全部完成。
func (c *Checker) Check(ctx context.Context, probes map[string]Probe) map[string]Result {
	results := make(map[string]Result, len(probes))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()

			pctx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}

			start := time.Now()
			err := probe(pctx)
			res := Result{Status: StatusUp, Latency: time.Since(start), Err: err}
			if err != nil {
				res.Status = StatusDown
				logger.Debug().Str("target", name).Err(err).Msg("HealthCheck: Check failed.")
			} else {
				logger.Debug().Str("target", name).Int("latency_ms", int(res.Latency.Milliseconds())).Msg("HealthCheck: Check passed.")
			}

			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, probe)
	}

	wg.Wait()
	return results
}
