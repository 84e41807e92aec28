package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore 内存窗口存储实现
type memoryStore struct {
	mu      sync.Mutex
	windows map[string][]int64 // scope -> 升序的 UnixNano 时间戳
	closed  bool
}

// NewMemoryStore 创建内存窗口存储
func NewMemoryStore() WindowStore {
	return &memoryStore{
		windows: make(map[string][]int64),
	}
}

// Add 追加时间戳
func (s *memoryStore) Add(ctx context.Context, scope string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	nano := ts.UnixNano()
	window := s.windows[scope]

	// wait_if_needed 可能记录未来时间戳，追加后保持有序
	if n := len(window); n > 0 && window[n-1] > nano {
		idx := sort.Search(n, func(i int) bool { return window[i] > nano })
		window = append(window, 0)
		copy(window[idx+1:], window[idx:])
		window[idx] = nano
	} else {
		window = append(window, nano)
	}

	s.windows[scope] = window
	return nil
}

// Count 返回留存数量
func (s *memoryStore) Count(ctx context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	return int64(len(s.windows[scope])), nil
}

// EvictBefore 删除早于 cutoff 的时间戳
func (s *memoryStore) EvictBefore(ctx context.Context, scope string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	window, exists := s.windows[scope]
	if !exists {
		return nil
	}

	nano := cutoff.UnixNano()
	idx := sort.Search(len(window), func(i int) bool { return window[i] >= nano })
	if idx == 0 {
		return nil
	}

	remaining := make([]int64, len(window)-idx)
	copy(remaining, window[idx:])
	if len(remaining) == 0 {
		delete(s.windows, scope)
	} else {
		s.windows[scope] = remaining
	}
	return nil
}

// Oldest 返回最早的时间戳
func (s *memoryStore) Oldest(ctx context.Context, scope string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return time.Time{}, false, ErrStoreClosed
	}

	window := s.windows[scope]
	if len(window) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, window[0]), true, nil
}

// Reset 清空窗口
func (s *memoryStore) Reset(ctx context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	delete(s.windows, scope)
	return nil
}

// Close 关闭存储
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.windows = nil
	return nil
}
