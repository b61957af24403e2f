package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 批处理报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// GenerateReport 保存批处理报告
// 生成 reports/<batch_id>.json 以及失败目标列表 reports/<batch_id>_failed.txt
// 失败列表可直接作为下一次batch的输入文件
func (r *Reporter) GenerateReport(report *models.BatchReport) (string, error) {
	reportsDir := filepath.Join(r.outputDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	reportPath, err := r.saveJSONReport(reportsDir, report.BatchID+".json", report)
	if err != nil {
		return "", err
	}

	failed := report.FailedRecords()
	if len(failed) > 0 {
		var sb strings.Builder
		sb.WriteString("# 失败目标: " + report.BatchID + "\n")
		for _, rec := range failed {
			if rec.Target.BusinessID != nil {
				fmt.Fprintf(&sb, "%d,%s\n", *rec.Target.BusinessID, rec.Target.URL)
			} else {
				sb.WriteString(rec.Target.URL + "\n")
			}
		}
		failedPath := filepath.Join(reportsDir, report.BatchID+"_failed.txt")
		if err := os.WriteFile(failedPath, []byte(sb.String()), 0644); err != nil {
			return "", fmt.Errorf("写入失败目标列表失败: %w", err)
		}
	}

	Infof("✅ 报告已生成: %s", reportPath)
	return reportPath, nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) (string, error) {
	path := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
