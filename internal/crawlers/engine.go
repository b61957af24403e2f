package crawlers

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

// Engine 浏览器引擎,负责创建相互隔离的浏览器上下文
type Engine interface {
	// NewContext 创建一个新的隔离上下文(独立的cookie/存储 + 一个页面)
	NewContext(ctx context.Context) (BrowserContext, error)

	// Close 关闭引擎及其底层浏览器进程
	Close() error
}

// BrowserContext 一个隔离的浏览器会话,只持有一个页面
// 所有阻塞调用都受ctx约束,超时后立即返回
type BrowserContext interface {
	// Navigate 导航到url并等待加载,返回主文档的HTTP状态码(未知时为0)
	Navigate(ctx context.Context, url string) (int, error)

	// HTML 返回当前页面渲染后的HTML
	HTML(ctx context.Context) (string, error)

	// Eval 在页面中执行JS表达式,返回结果的字符串形式
	Eval(ctx context.Context, js string) (string, error)

	// URL 当前页面地址
	URL() string

	// Close 关闭上下文,释放页面
	Close() error
}

// brokenContext 重建失败的槽位使用的占位上下文
// 所有操作都返回ErrContextCorrupted,等待下一次Replace
type brokenContext struct {
	cause error
}

func (b brokenContext) err() error {
	return fmt.Errorf("%w: %v", models.ErrContextCorrupted, b.cause)
}

func (b brokenContext) Navigate(context.Context, string) (int, error) { return 0, b.err() }
func (b brokenContext) HTML(context.Context) (string, error)          { return "", b.err() }
func (b brokenContext) Eval(context.Context, string) (string, error)  { return "", b.err() }
func (b brokenContext) URL() string                                   { return "" }
func (b brokenContext) Close() error                                  { return nil }
