package main

import (
	"fmt"
	"sort"

	"github.com/RecoveryAshes/EmailFinder/internal/core"
	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查运行环境: 系统资源、浏览器上下文、数据库",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(nil)
	defer cancel()

	monitor := crawlers.NewResourceMonitor(crawlers.DefaultResourceMonitorConfig())
	mem := monitor.GetMemoryStatus()
	utils.Info("🖥️  系统资源:")
	utils.Infof("  总内存: %d MB", mem.TotalMemory/1024/1024)
	utils.Infof("  可用内存: %d MB", mem.AvailableMemory/1024/1024)
	utils.Infof("  内存压力: %s", mem.MemoryPressure)
	utils.Infof("  建议上下文数: %d", monitor.CalculateMaxContexts())

	db, _, err := openStore(ctx)
	if err != nil {
		utils.Warnf("❌ 数据库: %v", err)
	} else {
		exists, err := db.TableExists(ctx, "businesses")
		db.Close()
		switch {
		case err != nil:
			utils.Warnf("❌ 数据库: %v", err)
		case !exists:
			utils.Warn("⚠️  数据库: businesses表不存在")
		default:
			utils.Infof("✅ 数据库: %s", appConfig.Database.Driver)
		}
	}

	hm, err := loadHeaders()
	if err != nil {
		return err
	}
	svc, err := core.NewService(ctx, appConfig, hm, nil)
	if err != nil {
		return fmt.Errorf("❌ 浏览器不可用: %w", err)
	}
	defer svc.Close()

	healthy := 0
	pool := svc.Pool()
	for i := 0; i < pool.Size(); i++ {
		if svc.Recovery().CheckHealth(ctx, i) {
			healthy++
			utils.Infof("  ✅ 上下文#%d 正常", i)
		} else {
			utils.Warnf("  ❌ 上下文#%d 异常", i)
		}
	}
	stats := pool.Stats()
	utils.Infof("🌐 浏览器上下文: %d/%d 正常 (已替换%d, 错误%d)", healthy, stats.Size, stats.Replaced, stats.Errors)
	if healthy == 0 {
		return fmt.Errorf("没有可用的浏览器上下文")
	}
	return nil
}

// runValidateHeaders 验证HTTP头部配置并打印脱敏后的结果
func runValidateHeaders() error {
	utils.Info("🔍 验证HTTP头部配置...")
	hm, err := core.NewHeaderManager(appConfig.Output.HeadersFile, headers)
	if err != nil {
		return fmt.Errorf("初始化HTTP头部管理器失败: %w", err)
	}
	if err := hm.LoadConfig(); err != nil {
		return fmt.Errorf("配置验证失败 [%s]: %w", hm.ConfigPath(), err)
	}

	// 显示合并后的头部(脱敏)
	utils.Info("✅ 配置验证通过!")
	for _, scope := range []models.HeaderScope{models.ScopeSite, models.ScopeSearch} {
		safe := hm.SafeHeaders(scope)
		names := make([]string, 0, len(safe))
		for name := range safe {
			names = append(names, name)
		}
		sort.Strings(names)

		utils.Infof("%s范围的HTTP头部 (%d个):", scope, len(safe))
		for _, name := range names {
			utils.Infof("  %s: %s", name, safe[name])
		}
	}
	return nil
}
