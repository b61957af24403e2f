package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/core"
	"github.com/RecoveryAshes/EmailFinder/internal/database"
	"github.com/RecoveryAshes/EmailFinder/internal/store"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/cobra"
)

// finderFlags 查找相关的命令行参数,find和batch共用
type finderFlags struct {
	timeout      time.Duration
	maxRetries   int
	maxDepth     int
	maxPages     int
	concurrency  int
	searchEngine string
	domainFilter string
	useSearch    bool
	useWhois     bool
	noSave       bool
	propagate    bool
	headless     bool
}

func (f *finderFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "单个目标的总超时 (如 30s)")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "失败后的最大重试次数 (0-10)")
	fs.IntVarP(&f.maxDepth, "max-depth", "d", 0, "站内爬取深度,0表示只扫描落地页")
	fs.IntVar(&f.maxPages, "max-pages", 0, "站内爬取最多访问的页面数")
	fs.IntVarP(&f.concurrency, "concurrency", "n", 0, "浏览器上下文数量 (并发数)")
	fs.StringVar(&f.searchEngine, "search-engine", "", "搜索引擎 (google|bing|duckduckgo)")
	fs.StringVar(&f.domainFilter, "domain-filter", "", "只处理包含该域名的目标")
	fs.BoolVar(&f.useSearch, "search", false, "站内未找到时使用搜索引擎")
	fs.BoolVar(&f.useWhois, "whois", false, "最后使用WHOIS查询")
	fs.BoolVar(&f.noSave, "no-save", false, "不把结果写入数据库")
	fs.BoolVar(&f.propagate, "propagate", false, "把邮箱同步到同域名的其他记录")
	fs.BoolVar(&f.headless, "headless", true, "无头模式运行浏览器")
}

// overrides 只收集用户显式指定的参数,未指定的沿用配置文件
func (f *finderFlags) overrides(cmd *cobra.Command) core.CLIOverrides {
	o := core.NoOverrides()
	changed := cmd.Flags().Changed
	boolPtr := func(v bool) *bool { return &v }

	if changed("timeout") {
		o.Timeout = f.timeout
	}
	if changed("max-retries") {
		o.MaxRetries = f.maxRetries
	}
	if changed("max-depth") {
		o.MaxDepth = f.maxDepth
	}
	if changed("max-pages") {
		o.MaxPages = f.maxPages
	}
	if changed("concurrency") {
		o.Concurrency = f.concurrency
	}
	o.SearchEngine = f.searchEngine
	o.DomainFilter = f.domainFilter
	if changed("search") {
		o.UseSearchEngines = boolPtr(f.useSearch)
	}
	if changed("whois") {
		o.UseWhois = boolPtr(f.useWhois)
	}
	if changed("no-save") {
		o.SaveToDatabase = boolPtr(!f.noSave)
	}
	if changed("propagate") {
		o.Propagate = boolPtr(f.propagate)
	}
	if changed("headless") {
		o.Headless = boolPtr(f.headless)
	}
	return o
}

// applyFinderFlags 合并命令行参数并重新校验
func applyFinderFlags(cmd *cobra.Command, f *finderFlags) error {
	if f.concurrency < 0 {
		return fmt.Errorf("并发数必须大于0: %d", f.concurrency)
	}
	appConfig.MergeCLIFlags(f.overrides(cmd))
	appConfig.Finder = appConfig.Finder.WithDefaults()
	if err := appConfig.Finder.Validate(); err != nil {
		return fmt.Errorf("参数无效: %w", err)
	}
	return nil
}

// loadHeaders 加载并校验HTTP头部配置,文件不存在时使用内置默认头部
func loadHeaders() (*core.HeaderManager, error) {
	hm, err := core.NewHeaderManager(appConfig.Output.HeadersFile, headers)
	if err != nil {
		return nil, fmt.Errorf("初始化HTTP头部管理器失败: %w", err)
	}
	if err := hm.LoadConfig(); err != nil {
		return nil, fmt.Errorf("HTTP头部配置无效 [%s]: %w", hm.ConfigPath(), err)
	}
	return hm, nil
}

// openStore 打开数据库并返回业务记录存储,调用方负责关闭db
func openStore(ctx context.Context) (database.DB, *store.BusinessStore, error) {
	db, err := database.Open(ctx, appConfig.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	return db, store.NewBusinessStore(db), nil
}

// signalContext 第一次Ctrl+C调用onInterrupt,第二次取消ctx
func signalContext(onInterrupt func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		if onInterrupt != nil {
			utils.Warn("\n⚠️  收到中断信号,等待进行中的目标完成 (再次按Ctrl+C强制退出)...")
			onInterrupt()
			select {
			case <-sigChan:
			case <-ctx.Done():
				return
			}
		}
		utils.Warn("\n⚠️  强制退出...")
		cancel()
	}()
	return ctx, cancel
}
