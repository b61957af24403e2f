package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TaskStatus 单个目标的处理状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成(找到或未找到邮箱)
	TaskStatusFailed    TaskStatus = "failed"    // 永久失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// EmailSource 邮箱的发现来源
type EmailSource string

const (
	SourcePageScan     EmailSource = "page_scan"     // 落地页扫描
	SourceCrawl        EmailSource = "crawl"         // 站内爬取
	SourceSearchEngine EmailSource = "search_engine" // 搜索引擎
	SourceWhois        EmailSource = "whois"         // WHOIS
	SourceNone         EmailSource = "none"          // 未找到
)

// BusinessTarget 一个待发现邮箱的业务目标
// 由外部任务编排器创建,创建后不可变
type BusinessTarget struct {
	BusinessID *int64 `json:"business_id,omitempty"` // 业务记录ID(可选)
	Domain     string `json:"domain"`                // 规范化后的域名(不含www.)
	URL        string `json:"url"`                   // 入口URL
}

// NewBusinessTarget 根据网站地址创建目标
// 缺少协议时默认使用https,主机名统一小写
func NewBusinessTarget(businessID *int64, website string) (BusinessTarget, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return BusinessTarget{}, fmt.Errorf("%w: 网站地址为空", ErrInvalidTarget)
	}

	if !strings.Contains(website, "://") {
		website = "https://" + website
	}

	parsed, err := url.Parse(website)
	if err != nil {
		return BusinessTarget{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return BusinessTarget{}, fmt.Errorf("%w: 不支持的协议 %s", ErrInvalidTarget, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" || !strings.Contains(host, ".") || strings.ContainsAny(host, " _") {
		return BusinessTarget{}, fmt.Errorf("%w: 无效的主机名 %q", ErrInvalidTarget, parsed.Host)
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return BusinessTarget{
		BusinessID: businessID,
		Domain:     strings.TrimPrefix(host, "www."),
		URL:        parsed.String(),
	}, nil
}

// HasBusinessID 是否关联了业务记录
func (t BusinessTarget) HasBusinessID() bool {
	return t.BusinessID != nil
}

// String 用于日志
func (t BusinessTarget) String() string {
	if t.BusinessID != nil {
		return fmt.Sprintf("#%d %s", *t.BusinessID, t.Domain)
	}
	return t.Domain
}

// ExtractionResult 单个目标一次运行的提取结果
// 不单独持久化,只合并进业务记录
type ExtractionResult struct {
	Email      string      `json:"email,omitempty"`
	Source     EmailSource `json:"source"`
	Attempts   int         `json:"attempts"`
	DurationMs int64       `json:"duration_ms"`
	// LastFault 重试用尽后按未找到处理时,最后一次故障的描述
	LastFault string `json:"last_fault,omitempty"`
}

// Found 是否找到邮箱
func (r ExtractionResult) Found() bool {
	return r.Email != ""
}

// TaskRecord 批量运行中单个目标的处理记录(用于报告)
type TaskRecord struct {
	Target      BusinessTarget   `json:"target"`
	Status      TaskStatus       `json:"status"`
	Result      ExtractionResult `json:"result"`
	Error       string           `json:"error,omitempty"`
	ProcessedAt time.Time        `json:"processed_at"`
}

// ToJSON 序列化为JSON
func (r *TaskRecord) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
