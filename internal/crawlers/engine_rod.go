package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// 浏览器相关错误
var (
	ErrBrowserCrashed = errors.New("浏览器崩溃")
	ErrEngineClosed   = errors.New("浏览器引擎已关闭")
)

// RodEngineConfig go-rod引擎配置
type RodEngineConfig struct {
	Headless       bool                  // 无头模式
	BrowserPath    string                // 自定义浏览器路径,为空时自动下载/查找
	NoSandbox      bool                  // 容器环境需要
	Stealth        bool                  // 使用stealth页面隐藏自动化特征
	UserAgent      string                // 覆盖默认UA
	HeaderProvider models.HeaderProvider // 自定义HTTP头部(可选)
}

// RodEngine 基于go-rod的浏览器引擎
// 一个浏览器进程,每个上下文对应一个incognito会话
type RodEngine struct {
	cfg      RodEngineConfig
	launcher *launcher.Launcher
	browser  *rod.Browser

	mu     sync.Mutex
	closed bool
}

// NewRodEngine 启动浏览器并建立CDP连接
func NewRodEngine(cfg RodEngineConfig) (*RodEngine, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.BrowserPath != "" {
		l = l.Bin(cfg.BrowserPath)
	}
	if cfg.NoSandbox {
		l = l.Set("no-sandbox").Set("disable-setuid-sandbox").Set("disable-dev-shm-usage")
	}

	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	l = l.Set("ignore-certificate-errors").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("no-first-run").
		Set("mute-audio").
		Set("window-size", "1366,900")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: 启动浏览器失败: %v", models.ErrBrowserUnavailable, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: 连接浏览器失败: %v", models.ErrBrowserUnavailable, err)
	}

	utils.Debugf("浏览器已启动: %s", controlURL)
	return &RodEngine{cfg: cfg, launcher: l, browser: browser}, nil
}

// NewContext 创建incognito会话并打开一个页面
func (e *RodEngine) NewContext(ctx context.Context) (bc BrowserContext, err error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrEngineClosed
	}

	// rod的Must*系列和CDP断连会panic,转换为错误
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("创建浏览器上下文时发生panic: %v", r)
			err = fmt.Errorf("%w: %v", ErrBrowserCrashed, r)
		}
	}()

	incognito, err := e.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("创建incognito会话失败: %w", err)
	}

	var page *rod.Page
	if e.cfg.Stealth {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}

	if e.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: e.cfg.UserAgent}); err != nil {
			utils.Warnf("设置User-Agent失败: %v", err)
		}
	}

	if e.cfg.HeaderProvider != nil {
		if err := applyExtraHeaders(page, e.cfg.HeaderProvider); err != nil {
			utils.Warnf("应用自定义HTTP头部失败: %v", err)
		}
	}

	return &rodContext{incognito: incognito, page: page}, nil
}

// Close 关闭浏览器进程,幂等
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.browser.Close()
	e.launcher.Kill()
	utils.Debugf("浏览器已关闭")
	return err
}

// applyExtraHeaders 把站点范围的头部设置到页面的所有请求上
func applyExtraHeaders(page *rod.Page, provider models.HeaderProvider) error {
	headers, err := provider.HeadersFor(models.ScopeSite)
	if err != nil {
		return err
	}

	extra := utils.BrowserHeaders(headers)
	if len(extra) == 0 {
		return nil
	}
	dict := make([]string, 0, len(extra)*2)
	for name, value := range extra {
		dict = append(dict, name, value)
	}
	_, err = page.SetExtraHeaders(dict)
	return err
}

// rodContext 基于incognito会话的浏览器上下文
type rodContext struct {
	incognito *rod.Browser
	page      *rod.Page
}

// navigationStatusJS 读取主文档响应状态码(Chrome 109+)
const navigationStatusJS = `() => {
	const nav = performance.getEntriesByType('navigation')[0];
	return nav && nav.responseStatus ? nav.responseStatus : 0;
}`

func (c *rodContext) Navigate(ctx context.Context, url string) (status int, err error) {
	defer recoverToError(&err)

	page := c.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return 0, wrapRodError(ctx, err)
	}
	if err := page.WaitLoad(); err != nil {
		return 0, wrapRodError(ctx, err)
	}

	// 尽量等待页面稳定,SPA站点的联系方式往往是异步渲染的
	_ = page.Timeout(2 * time.Second).WaitIdle(time.Second)

	res, err := page.Evaluate(rod.Eval(navigationStatusJS).ByPromise())
	if err == nil && res != nil {
		status = res.Value.Int()
	}
	return status, nil
}

func (c *rodContext) HTML(ctx context.Context) (html string, err error) {
	defer recoverToError(&err)

	html, err = c.page.Context(ctx).HTML()
	if err != nil {
		return "", wrapRodError(ctx, err)
	}
	return html, nil
}

func (c *rodContext) Eval(ctx context.Context, js string) (out string, err error) {
	defer recoverToError(&err)

	res, err := c.page.Context(ctx).Eval(js)
	if err != nil {
		return "", wrapRodError(ctx, err)
	}
	return res.Value.String(), nil
}

func (c *rodContext) URL() string {
	info, err := c.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// Close 关闭incognito会话(会一并释放页面)
func (c *rodContext) Close() error {
	return c.incognito.Close()
}

// wrapRodError 将rod错误映射为可分类的错误
func wrapRodError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %v", models.ErrNavigationTimeout, err)
	}
	if mapped := models.MapChromeError(err); mapped != nil {
		return fmt.Errorf("%w: %v", mapped, err)
	}
	var evalErr *rod.EvalError
	if errors.As(err, &evalErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrNavigationTimeout, err)
	}
	if models.Classify(err) == models.FaultCorruption {
		return fmt.Errorf("%w: %v", models.ErrContextCorrupted, err)
	}
	return err
}

// recoverToError 将页面操作中的panic转换为上下文损坏错误
func recoverToError(err *error) {
	if r := recover(); r != nil {
		utils.Errorf("浏览器页面操作发生panic: %v", r)
		*err = fmt.Errorf("%w: %v", models.ErrContextCorrupted, r)
	}
}
