package core

import (
	"strings"
	"sync"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

// SourceIndex 记录本进程内每个邮箱最先由哪种策略发现,仅用于诊断和报告
// 每个邮箱只记录一个来源,进程退出即丢弃
type SourceIndex struct {
	mu      sync.RWMutex
	sources map[string]models.EmailSource
}

// NewSourceIndex 创建空索引
func NewSourceIndex() *SourceIndex {
	return &SourceIndex{sources: make(map[string]models.EmailSource)}
}

// Record 记录邮箱来源,已存在时保留第一次的来源,返回是否新增
func (x *SourceIndex) Record(email string, source models.EmailSource) bool {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return false
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.sources[key]; ok {
		return false
	}
	x.sources[key] = source
	return true
}

// Lookup 查询邮箱来源
func (x *SourceIndex) Lookup(email string) (models.EmailSource, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	src, ok := x.sources[strings.ToLower(strings.TrimSpace(email))]
	return src, ok
}

// Len 已记录的邮箱数
func (x *SourceIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.sources)
}

// CountBySource 按来源统计邮箱数
func (x *SourceIndex) CountBySource() map[models.EmailSource]int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[models.EmailSource]int)
	for _, src := range x.sources {
		out[src]++
	}
	return out
}
