// Package strategies 实现邮箱提取的各个回退策略
//
// 策略按固定优先级顺序执行: 落地页扫描 → 站内爬取(含sitemap) → 搜索引擎 → WHOIS。
// 每个策略接收同一个带截止时间的ctx,剩余预算不足MinStrategySlice时不再启动。
package strategies

import (
	"context"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

// MinStrategySlice 启动一个策略所需的最小剩余时间
const MinStrategySlice = 2 * time.Second

// Candidate 策略的提取结果
type Candidate struct {
	Email   string
	Source  models.EmailSource
	PageURL string // 发现邮箱的页面(搜索/WHOIS时为空)
}

// Found 是否找到邮箱
func (c Candidate) Found() bool {
	return c.Email != ""
}

// Session 单次尝试中各策略共享的状态
type Session struct {
	Browser crawlers.BrowserContext
	Target  models.BusinessTarget
	Options models.FindOptions

	// 落地页扫描的结果,供站内爬取复用链接
	LandingURL  string
	LandingHTML string
}

// Strategy 邮箱提取策略
type Strategy interface {
	// Name 策略对应的来源
	Name() models.EmailSource

	// Enabled 在给定参数下是否启用
	Enabled(opts models.FindOptions) bool

	// Run 执行策略,返回零或一个已校验的邮箱
	// 未找到返回零值Candidate和nil;错误会被调用方分类
	Run(ctx context.Context, sess *Session) (Candidate, error)
}

// HasBudget 剩余时间是否足够启动一个策略
func HasBudget(ctx context.Context) bool {
	return Remaining(ctx) >= MinStrategySlice
}

// Remaining ctx的剩余时间,没有截止时间时返回一个很大的值
func Remaining(ctx context.Context) time.Duration {
	if ctx.Err() != nil {
		return 0
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return time.Hour
	}
	return time.Until(deadline)
}

// subBudget 为子步骤切出不超过limit的时间片
func subBudget(ctx context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	if r := Remaining(ctx); r < limit {
		limit = r
	}
	return context.WithTimeout(ctx, limit)
}

// Ordered 按优先级组装策略: 落地页扫描 → 站内爬取 → 搜索引擎 → WHOIS
// search或whois为nil时跳过对应策略
func Ordered(fetcher Fetcher, search *SearchEngine, whois WhoisClient) []Strategy {
	out := []Strategy{NewPageScan(), NewSiteCrawl(fetcher)}
	if search != nil {
		out = append(out, search)
	}
	if whois != nil {
		out = append(out, NewWhois(whois))
	}
	return out
}
