package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/strategies"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
)

// staticFetchTimeout sitemap等纯HTTP抓取的超时
const staticFetchTimeout = 10 * time.Second

// NewService 按配置启动浏览器、预热上下文池并组装查找服务
// 一个上下文都创建不了时返回ErrBrowserUnavailable
func NewService(ctx context.Context, cfg *Config, headers models.HeaderProvider, store EmailStore) (*EmailFinderService, error) {
	size := cfg.Pool.Size
	if size <= 0 {
		size = models.DefaultConcurrency
	}
	if cfg.Pool.AutoCap {
		monitor := crawlers.NewResourceMonitor(crawlers.DefaultResourceMonitorConfig())
		if ok, reason := monitor.CheckResourceAvailability(); !ok {
			utils.Warnf("⚠️  系统资源紧张: %s", reason)
		}
		size = monitor.CapPoolSize(size)
	}

	userAgent := cfg.Search.UserAgent
	if hm, ok := headers.(*HeaderManager); ok && userAgent == "" {
		userAgent = hm.UserAgent()
	}

	utils.Infof("🚀 启动浏览器 (headless=%v, stealth=%v)", cfg.Pool.Headless, cfg.Pool.Stealth)
	engine, err := crawlers.NewRodEngine(crawlers.RodEngineConfig{
		Headless:       cfg.Pool.Headless,
		BrowserPath:    cfg.Pool.BrowserPath,
		NoSandbox:      cfg.Pool.NoSandbox,
		Stealth:        cfg.Pool.Stealth,
		UserAgent:      userAgent,
		HeaderProvider: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrBrowserUnavailable, err)
	}

	pool := crawlers.NewContextPool(engine)
	if err := pool.Initialize(ctx, size); err != nil {
		_ = engine.Close()
		return nil, err
	}
	recovery := crawlers.NewRecoveryManager(pool, cfg.Pool.StaleAfter)
	utils.Infof("✅ 浏览器上下文池就绪: %d个上下文", pool.Size())

	fetcher := crawlers.NewStaticFetcher(staticFetchTimeout, userAgent, headers)
	search := strategies.NewSearchEngine(strategies.SearchConfig{
		Endpoints:         cfg.Search.Endpoints,
		UserAgent:         userAgent,
		Headers:           headers,
		RequestsPerMinute: cfg.Search.RequestsPerMinute,
	})
	whois := strategies.NewWhoisClient(cfg.Whois.Timeout)

	return NewEmailFinderService(FinderConfig{
		Pool:       pool,
		Recovery:   recovery,
		Strategies: strategies.Ordered(fetcher, search, whois),
		Store:      store,
		Defaults:   cfg.Finder,
	}), nil
}
