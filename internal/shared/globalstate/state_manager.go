package globalstate

import (
	"sync"
	"time"

	"cadverse/internal/shared"
	"cadverse/internal/shared/types"
)

// StatusManager 结构体用于管理全局状态。
// 它使用 RWMutex 来保护对状态字符串的并发读写。
type StatusManager struct {
	mu      sync.RWMutex
	status  string
	started time.Time
	traffic shared.Traffic
}

// 全局的状态管理器实例
var GlobalStatus = NewStatusManager()

func NewStatusManager() *StatusManager {
	return &StatusManager{status: "Initializing...", started: time.Now()}
}

// Set 方法用于安全地更新状态。
func (sm *StatusManager) Set(newStatus string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.status = newStatus
}

// Get 方法用于安全地读取状态。
func (sm *StatusManager) Get() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.status
}

// Traffic 返回服务端连接的流量计数器。
func (sm *StatusManager) Traffic() *shared.Traffic {
	return &sm.traffic
}

// Snapshot 组合当前状态、客户端数量和运行时长。
func (sm *StatusManager) Snapshot(clients int) types.ServerStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return types.ServerStatus{
		Status:        sm.status,
		Clients:       clients,
		Started:       sm.started,
		Uptime:        time.Since(sm.started).Truncate(time.Second).String(),
		BytesSent:     sm.traffic.Sent.Load(),
		BytesReceived: sm.traffic.Received.Load(),
	}
}
