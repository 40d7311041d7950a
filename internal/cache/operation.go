package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

var nonCacheableOps = map[string]struct{}{
	"write": {}, "delete": {}, "commit": {}, "deploy": {}, "publish": {},
}

var cacheableOps = map[string]struct{}{
	"test": {}, "build": {}, "lint": {}, "static_analysis": {}, "dependency_install": {},
}

var mutatingTokens = []string{"write", "delete", "modify", "create"}

// IsOperationCacheable reports whether opType/params may be cached: not
// in the fixed non-cacheable set, and either in the fixed cacheable set
// or recognized by a side-effect-free signature (no mutating token in
// params).
func IsOperationCacheable(opType string, params map[string]string) bool {
	if _, blocked := nonCacheableOps[opType]; blocked {
		return false
	}
	if _, ok := cacheableOps[opType]; ok {
		return true
	}
	for _, v := range params {
		lower := strings.ToLower(v)
		for _, tok := range mutatingTokens {
			if strings.Contains(lower, tok) {
				return false
			}
		}
	}
	return true
}

var dependentFileParamNames = []string{"file_path", "input_file", "source_file", "config_file", "files"}

// ExtractDependentFiles pulls file paths out of well-known parameter
// names.
func ExtractDependentFiles(params map[string]string) []string {
	var files []string
	for _, name := range dependentFileParamNames {
		if v, ok := params[name]; ok && v != "" {
			if name == "files" {
				files = append(files, strings.Split(v, ",")...)
			} else {
				files = append(files, v)
			}
		}
	}
	return files
}

// OperationHash computes a digest of (operation_type, parameters sorted
// by key); parameter values are hashed as given.
func OperationHash(opType string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(opType))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(params[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type operationEntry struct {
	entry
	operationType   string
	dependentFiles  []string
	fileHashes      map[string]string
}

// OperationCache is keyed by OperationHash and stores execution results
// plus the files each result depends on.
type OperationCache struct {
	mu      sync.Mutex
	entries map[string]*operationEntry
	ttl     time.Duration
}

// NewOperationCache builds an operation-result cache with the given
// default TTL (30 min if unset).
func NewOperationCache(ttl time.Duration) *OperationCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &OperationCache{entries: make(map[string]*operationEntry), ttl: ttl}
}

// CacheOperationResult stores result under the digest of (opType,
// params), recording dependentFiles and their content digests at insert
// time.
func (c *OperationCache) CacheOperationResult(opType string, params map[string]string, result any, dependentFiles []string, fileHashes map[string]string) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}

	hash := OperationHash(opType, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	expires := now.Add(c.ttl)
	c.entries[hash] = &operationEntry{
		entry: entry{
			key: hash, value: b, createdAt: now, expiresAt: &expires,
			lastAccessed: now, sizeBytes: len(b),
		},
		operationType:  opType,
		dependentFiles: append([]string(nil), dependentFiles...),
		fileHashes:     copyStrMap(fileHashes),
	}
	return hash, nil
}

func copyStrMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GetOperationResult looks up a cached result by (opType, params). A
// stale (expired or dependency-changed) entry is evicted and reported as
// a miss; currentFileHashes supplies the caller's current digests for
// dependency validation.
func (c *OperationCache) GetOperationResult(opType string, params map[string]string, currentFileHashes map[string]string, dst any) bool {
	hash := OperationHash(opType, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[hash]
	if !ok {
		return false
	}
	if e.expired(time.Now()) {
		delete(c.entries, hash)
		return false
	}
	for path, recorded := range e.fileHashes {
		current, tracked := currentFileHashes[path]
		if tracked && current != recorded {
			delete(c.entries, hash)
			return false
		}
	}
	if err := json.Unmarshal(e.value, dst); err != nil {
		return false
	}
	e.touch(time.Now())
	return true
}

// InvalidateRelatedResults removes any entry whose dependent files
// intersect paths.
func (c *OperationCache) InvalidateRelatedResults(paths []string) int {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		for _, f := range e.dependentFiles {
			if _, hit := set[f]; hit {
				delete(c.entries, k)
				n++
				break
			}
		}
	}
	return n
}

// InvalidateWorkspace removes entries whose dependent files are under
// workspaceRoot.
func (c *OperationCache) InvalidateWorkspace(workspaceRoot string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		for _, f := range e.dependentFiles {
			if strings.HasPrefix(f, workspaceRoot) {
				delete(c.entries, k)
				n++
				break
			}
		}
	}
	return n
}

// EvictExpired removes every entry past its TTL and returns the count.
func (c *OperationCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len reports the current entry count.
func (c *OperationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalBytes reports the approximate in-memory footprint.
func (c *OperationCache) TotalBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, e := range c.entries {
		total += e.sizeBytes
	}
	return total
}
