// Package cache implements the Cache Fabric (C4): three typed caches
// (analysis, plan-template, operation-result) sharing one byte budget,
// with TTL + LRU eviction and file-dependency invalidation.
package cache

import "time"

// entry is the common header shared by every cache specialization.
type entry struct {
	key          string
	value        []byte
	createdAt    time.Time
	expiresAt    *time.Time
	accessCount  int64
	lastAccessed time.Time
	sizeBytes    int
}

func (e *entry) expired(now time.Time) bool {
	return e.expiresAt != nil && now.After(*e.expiresAt)
}

func (e *entry) touch(now time.Time) {
	e.accessCount++
	e.lastAccessed = now
}
