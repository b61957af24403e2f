package core

import (
	"context"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
)

// RunBatch 用队列处理器跑完一批目标并生成报告
// source标记目标来源(database / file / cli),写入报告
func RunBatch(ctx context.Context, q *QueueProcessor, targets []models.BusinessTarget, opts models.FindOptions, source string) (*models.BatchReport, error) {
	utils.Infof("🚀 开始批量查找: %d个目标", len(targets))

	report := models.NewBatchReport(source, opts.WithDefaults())
	sum, err := q.Start(ctx, targets, opts)
	for _, rec := range q.Records() {
		report.Add(rec)
	}
	report.BatchID = sum.BatchID
	report.Finish(sum)

	if err != nil {
		return report, err
	}

	printSummary(report)
	return report, nil
}

// printSummary 打印批量查找摘要
func printSummary(report *models.BatchReport) {
	sum := report.Summary
	utils.Info("\n==================================================")
	utils.Info("📊 批量查找摘要")
	utils.Info("==================================================")
	utils.Infof("总目标数: %d", sum.Total)
	utils.Infof("✅ 完成: %d (找到邮箱 %d)", sum.Completed, sum.Found)
	utils.Infof("❌ 失败: %d", sum.Failed)
	if skipped := sum.Total - sum.Completed - sum.Failed; skipped > 0 {
		utils.Infof("⏹️  未处理: %d", skipped)
	}
	for source, n := range report.BySource {
		utils.Infof("📧 %s: %d", source, n)
	}
	utils.Infof("⏱️  总耗时: %.2f秒", report.Duration)
	utils.Infof("状态: %s", sum.Phase)
	utils.Info("==================================================")

	// 显示失败的目标
	if failed := report.FailedRecords(); len(failed) > 0 {
		utils.Warn("\n失败的目标:")
		for _, rec := range failed {
			utils.Warnf("  - %s: %s", rec.Target.URL, rec.Error)
		}
	}
}
