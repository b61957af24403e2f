package main

import (
	"fmt"
	"sync/atomic"

	"github.com/RecoveryAshes/EmailFinder/internal/core"
	"github.com/RecoveryAshes/EmailFinder/internal/export"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/store"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/cobra"
)

var (
	batchFlags finderFlags
	fromDB     bool
	targetFile string
	xlsxFile   string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "批量查找邮箱",
	Long: `批量查找邮箱,目标来源三选一:
  --from-db   数据库中尚无邮箱的记录
  --file      文本文件,每行 "website" 或 "id,website"
  --xlsx      xlsx文件,需包含website列,可选id列

第一次Ctrl+C停止派发新目标并等待进行中的目标,第二次强制退出。`,
	RunE: runBatch,
}

func init() {
	batchFlags.register(batchCmd)
	batchCmd.Flags().BoolVar(&fromDB, "from-db", false, "处理数据库中尚无邮箱的记录")
	batchCmd.Flags().StringVarP(&targetFile, "file", "f", "", "目标列表文件")
	batchCmd.Flags().StringVar(&xlsxFile, "xlsx", "", "目标xlsx文件")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "最多处理的目标数 (0表示不限制)")
	batchCmd.MarkFlagsMutuallyExclusive("from-db", "file", "xlsx")
	batchCmd.MarkFlagsOneRequired("from-db", "file", "xlsx")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := applyFinderFlags(cmd, &batchFlags); err != nil {
		return err
	}
	if batchLimit < 0 {
		return fmt.Errorf("--limit不能为负数: %d", batchLimit)
	}

	var active atomic.Pointer[core.QueueProcessor]
	ctx, cancel := signalContext(func() {
		if q := active.Load(); q != nil {
			q.Stop()
		}
	})
	defer cancel()

	var (
		bizStore   *store.BusinessStore
		emailStore core.EmailStore
	)
	if fromDB || appConfig.Finder.SaveToDatabase {
		db, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		bizStore, emailStore = st, st
	}

	var (
		targets []models.BusinessTarget
		source  string
		err     error
	)
	switch {
	case fromDB:
		source = "database"
		targets, err = bizStore.PendingTargets(ctx, batchLimit, appConfig.Finder.DomainFilter)
	case targetFile != "":
		source = "file"
		targets, err = utils.ReadTargetsFromFile(targetFile)
	default:
		source = "xlsx"
		targets, err = export.ReadTargets(xlsxFile)
	}
	if err != nil {
		return fmt.Errorf("读取目标失败: %w", err)
	}
	if batchLimit > 0 && len(targets) > batchLimit {
		targets = targets[:batchLimit]
	}
	if len(targets) == 0 {
		utils.Info("📭 没有待处理的目标")
		return nil
	}

	hm, err := loadHeaders()
	if err != nil {
		return err
	}
	svc, err := core.NewService(ctx, appConfig, hm, emailStore)
	if err != nil {
		return err
	}
	defer svc.Close()

	q := core.NewQueueProcessor(svc)
	active.Store(q)
	if r := core.NewRotator(appConfig.Rotation); r != nil {
		q.SetRotator(r, appConfig.Rotation.Every)
	}

	bar := utils.NewProgressBar(len(targets), "🔍 查找邮箱")
	q.SetProgressFunc(func(state models.QueueState, rec models.TaskRecord) {
		_ = bar.Add(1)
		if rec.Result.Found() {
			utils.Debugf("📧 %s → %s (%s)", rec.Target.Domain, utils.EmailForLog(rec.Result.Email), rec.Result.Source)
		}
	})

	report, err := core.RunBatch(ctx, q, targets, appConfig.Finder, source)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	path, err := utils.NewReporter(appConfig.Output.ReportDir).GenerateReport(report)
	if err != nil {
		utils.Warnf("⚠️  生成报告失败: %v", err)
		return nil
	}
	utils.Infof("📄 报告已保存: %s", path)
	return nil
}
