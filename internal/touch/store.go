// Package touch 维护镜像的“最后使用时间”：由事件监听任务写入，由回收策略读取。
package touch

import (
	"sync"
	"time"
)

// Store 并发安全的 镜像 ID -> 最后使用时间 映射
type Store struct {
	mu      sync.RWMutex
	touched map[string]time.Time
}

// NewStore 创建空的 Store
func NewStore() *Store {
	return &Store{touched: make(map[string]time.Time)}
}

// Get 返回镜像的最后使用时间
func (s *Store) Get(imageID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.touched[imageID]
	return t, ok
}

// Set 无条件写入
func (s *Store) Set(imageID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[imageID] = t
}

// Touch 仅当 t 晚于已有记录时更新，返回是否发生了更新
func (s *Store) Touch(imageID string, t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.touched[imageID]; ok && !t.After(prev) {
		return false
	}
	s.touched[imageID] = t
	return true
}

// Len 返回记录数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.touched)
}

// Forget 删除不再存在的镜像记录，返回删除条数
func (s *Store) Forget(imageIDs ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range imageIDs {
		if _, ok := s.touched[id]; ok {
			delete(s.touched, id)
			removed++
		}
	}
	return removed
}

// Keys 返回所有有记录的镜像 ID
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.touched))
	for id := range s.touched {
		keys = append(keys, id)
	}
	return keys
}
