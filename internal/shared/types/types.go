package types

// ModelStateBroadcaster 由 Hub 实现，供模拟循环推送状态。
type ModelStateBroadcaster interface {
	BroadcastModelStates(payload []byte)
}
