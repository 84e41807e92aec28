package ratelimit

import "errors"

var (
	// ErrStoreClosed 窗口存储已关闭
	ErrStoreClosed = errors.New("ratelimit: store is closed")

	// ErrLimiterClosed 限流器已关闭
	ErrLimiterClosed = errors.New("ratelimit: limiter is closed")

	// ErrControllerClosed 控制器已关闭
	ErrControllerClosed = errors.New("ratelimit: controller is closed")
)
