// Package settings provides a thread-safe key/value settings store.
//
// Design philosophy:
// - Standalone package, no dependency on other pacekit components
// - Seeded with engine-wide defaults, overridable from file/env via Loader
// - Typed getters with per-call fallback values, safe for concurrent use
package settings

import (
	"strconv"
	"sync"
	"time"
)

// Well-known setting keys.
const (
	KeyUserAgent = "user_agent"
	KeyTimeout   = "timeout"
	KeyWorkers   = "workers"
	KeyDelay     = "delay"
	KeyDebug     = "debug"
)

// Store 线程安全的配置存储
type Store struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// Defaults returns the built-in default settings.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyUserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.88 Safari/537.36",
		KeyTimeout:   10 * time.Second,
		KeyWorkers:   10,
		KeyDelay:     time.Duration(0),
		KeyDebug:     false,
	}
}

// NewStore creates a store seeded with Defaults.
func NewStore() *Store {
	return &Store{data: Defaults()}
}

// Set stores a value under key.
func (s *Store) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get returns the raw value, or fallback when absent.
func (s *Store) Get(key string, fallback interface{}) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.data[key]; ok {
		return v
	}
	return fallback
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Delete removes a key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// GetString returns a string value, or fallback on absence/type mismatch.
func (s *Store) GetString(key string, fallback string) string {
	if v, ok := s.Get(key, nil).(string); ok {
		return v
	}
	return fallback
}

// GetInt returns an int value, or fallback on absence/type mismatch.
// int64 and float64 values (e.g. decoded from YAML/JSON) are converted.
func (s *Store) GetInt(key string, fallback int) int {
	switch v := s.Get(key, nil).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		// environment variables always arrive as strings
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return fallback
	default:
		return fallback
	}
}

// GetFloat64 returns a float64 value, or fallback on absence/type mismatch.
func (s *Store) GetFloat64(key string, fallback float64) float64 {
	switch v := s.Get(key, nil).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return fallback
	default:
		return fallback
	}
}

// GetBool returns a bool value, or fallback on absence/type mismatch.
func (s *Store) GetBool(key string, fallback bool) bool {
	switch v := s.Get(key, nil).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return fallback
	default:
		return fallback
	}
}

// GetDuration returns a duration value, or fallback on absence/type mismatch.
// String values are parsed with time.ParseDuration.
func (s *Store) GetDuration(key string, fallback time.Duration) time.Duration {
	switch v := s.Get(key, nil).(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return fallback
	case int:
		return time.Duration(v)
	case int64:
		return time.Duration(v)
	default:
		return fallback
	}
}

// Snapshot returns a copy of all current settings.
func (s *Store) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
