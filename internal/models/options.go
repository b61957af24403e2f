package models

import (
	"fmt"
	"strings"
	"time"
)

// 默认查找参数
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 2
	DefaultMaxDepth     = 2
	DefaultMaxPages     = 10
	DefaultSearchEngine = "google"
	DefaultConcurrency  = 3
)

// SupportedSearchEngines 支持的搜索引擎
var SupportedSearchEngines = []string{"google", "bing", "duckduckgo"}

// FindOptions 单次查找的参数
type FindOptions struct {
	UseSearchEngines  bool          `mapstructure:"use_search_engines" json:"use_search_engines"`
	SearchEngine      string        `mapstructure:"search_engine" json:"search_engine"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries" json:"max_retries"`
	MaxDepth          int           `mapstructure:"max_depth" json:"max_depth"`
	MaxPages          int           `mapstructure:"max_pages" json:"max_pages"`
	SaveToDatabase    bool          `mapstructure:"save_to_database" json:"save_to_database"`
	UseWhois          bool          `mapstructure:"use_whois" json:"use_whois"`
	PropagateToDomain bool          `mapstructure:"propagate_to_domain" json:"propagate_to_domain"`

	// DomainFilter 非空时只处理域名包含该子串(或以其结尾)的目标
	DomainFilter string `mapstructure:"domain_filter" json:"domain_filter,omitempty"`

	// BusinessID 覆盖目标自带的业务记录ID
	BusinessID *int64 `mapstructure:"-" json:"business_id,omitempty"`
}

// DefaultFindOptions 返回默认查找参数
func DefaultFindOptions() FindOptions {
	return FindOptions{
		SearchEngine:   DefaultSearchEngine,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		MaxDepth:       DefaultMaxDepth,
		MaxPages:       DefaultMaxPages,
		SaveToDatabase: true,
	}
}

// WithDefaults 用默认值填充零值字段
func (o FindOptions) WithDefaults() FindOptions {
	def := DefaultFindOptions()
	if o.SearchEngine == "" {
		o.SearchEngine = def.SearchEngine
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	// 与MaxRetries一样,显式的0有意义: 只扫描落地页,不做站内爬取
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	if o.MaxPages <= 0 {
		o.MaxPages = def.MaxPages
	}
	o.SearchEngine = strings.ToLower(strings.TrimSpace(o.SearchEngine))
	return o
}

// Validate 校验参数
func (o FindOptions) Validate() error {
	if o.Timeout < time.Second {
		return &OptionError{Field: "timeout", Message: fmt.Sprintf("超时时间过短: %s", o.Timeout)}
	}
	if o.MaxRetries < 0 || o.MaxRetries > 10 {
		return &OptionError{Field: "max_retries", Message: fmt.Sprintf("重试次数必须在0-10之间: %d", o.MaxRetries)}
	}
	if o.MaxDepth < 0 || o.MaxDepth > 5 {
		return &OptionError{Field: "max_depth", Message: fmt.Sprintf("爬取深度必须在0-5之间: %d", o.MaxDepth)}
	}
	if o.MaxPages < 1 || o.MaxPages > 200 {
		return &OptionError{Field: "max_pages", Message: fmt.Sprintf("最大页面数必须在1-200之间: %d", o.MaxPages)}
	}
	if o.UseSearchEngines && !IsSupportedEngine(o.SearchEngine) {
		return &OptionError{
			Field:   "search_engine",
			Message: fmt.Sprintf("不支持的搜索引擎 %q, 可选: %s", o.SearchEngine, strings.Join(SupportedSearchEngines, ", ")),
		}
	}
	return nil
}

// MatchesDomain 目标域名是否通过DomainFilter
func (o FindOptions) MatchesDomain(domain string) bool {
	filter := strings.ToLower(strings.TrimSpace(o.DomainFilter))
	if filter == "" {
		return true
	}
	domain = strings.ToLower(domain)
	return strings.Contains(domain, filter) || strings.HasSuffix(domain, strings.TrimPrefix(filter, "*"))
}

// IsSupportedEngine 检查搜索引擎名称
func IsSupportedEngine(name string) bool {
	for _, e := range SupportedSearchEngines {
		if e == name {
			return true
		}
	}
	return false
}

// OptionError 查找参数校验错误
type OptionError struct {
	Field   string
	Message string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("参数 %s 无效: %s", e.Field, e.Message)
}
