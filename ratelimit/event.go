package ratelimit

import "time"

// EventType 事件类型
type EventType string

const (
	// EventWaited 调用方为取得配额等待过
	EventWaited EventType = "waited"

	// EventRateChanged 自适应速率发生调整
	EventRateChanged EventType = "rate_changed"
)

// Event 事件接口
type Event interface {
	Type() EventType
	Scope() string
	Timestamp() time.Time
}

// BaseEvent 基础事件
type BaseEvent struct {
	eventType EventType
	scope     string
	timestamp time.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType EventType, scope string) BaseEvent {
	return BaseEvent{
		eventType: eventType,
		scope:     scope,
		timestamp: time.Now(),
	}
}

// Type 返回事件类型
func (e *BaseEvent) Type() EventType {
	return e.eventType
}

// Scope 返回事件所属窗口键
func (e *BaseEvent) Scope() string {
	return e.scope
}

// Timestamp 返回事件时间
func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

// WaitedEvent 等待事件
type WaitedEvent struct {
	BaseEvent
	Waited time.Duration
}

// RateChangedEvent 速率调整事件
type RateChangedEvent struct {
	BaseEvent
	OldRate     int
	NewRate     int
	SuccessRate float64
}

// EventListener 事件监听器接口
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc 函数式事件监听器
type EventListenerFunc func(event Event)

// OnEvent 实现 EventListener 接口
func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}
