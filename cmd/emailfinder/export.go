package main

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/EmailFinder/internal/export"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exportPath    string
	onlyWithEmail bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出业务记录到xlsx",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appConfig.Export.Path
		if cmd.Flags().Changed("output") {
			path = exportPath
		}
		only := appConfig.Export.OnlyWithEmail
		if cmd.Flags().Changed("only-with-email") {
			only = onlyWithEmail
		}

		ctx, cancel := signalContext(nil)
		defer cancel()

		db, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := st.ExportRows(ctx)
		if err != nil {
			return err
		}
		exporter := &export.XLSXExporter{OnlyWithEmail: only}
		n, err := exporter.Export(rows, path)
		if err != nil {
			return fmt.Errorf("导出失败: %w", err)
		}
		utils.Infof("✅ 已导出%d条记录到 %s", n, path)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "从文本或xlsx文件导入业务记录",
	Long: `导入业务记录到数据库,之后可用 batch --from-db 处理。
以.xlsx结尾的文件按xlsx读取,其余按文本读取 (每行 "website" 或 "id,website",id会被忽略)。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(nil)
		defer cancel()

		targets, err := readTargetFile(args[0])
		if err != nil {
			return err
		}

		db, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		imported := 0
		for _, t := range targets {
			if err := st.Insert(ctx, t.Domain, t.URL); err != nil {
				utils.Warnf("⚠️  导入失败 %s: %v", t.URL, err)
				continue
			}
			imported++
		}
		utils.Infof("✅ 已导入%d/%d条记录", imported, len(targets))
		return nil
	},
}

func readTargetFile(path string) ([]models.BusinessTarget, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return export.ReadTargets(path)
	}
	return utils.ReadTargetsFromFile(path)
}

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "导出文件路径 (默认取配置export.path)")
	exportCmd.Flags().BoolVar(&onlyWithEmail, "only-with-email", false, "只导出已有邮箱的记录")
}
