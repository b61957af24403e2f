package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RecoveryAshes/EmailFinder/internal/core"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/cobra"
)

var (
	findFlags  finderFlags
	businessID int64
	jsonOutput bool
)

var findCmd = &cobra.Command{
	Use:   "find <website>",
	Short: "为单个网站查找联系邮箱",
	Args:  cobra.ExactArgs(1),
	RunE:  runFind,
}

func init() {
	findFlags.register(findCmd)
	findCmd.Flags().Int64Var(&businessID, "id", 0, "业务记录ID,保存结果时使用")
	findCmd.Flags().BoolVar(&jsonOutput, "json", false, "以JSON格式输出结果")
}

func runFind(cmd *cobra.Command, args []string) error {
	if err := applyFinderFlags(cmd, &findFlags); err != nil {
		return err
	}
	// 单个目标只需要一个上下文
	if !cmd.Flags().Changed("concurrency") {
		appConfig.Pool.Size = 1
	}

	var id *int64
	if businessID > 0 {
		id = &businessID
	}
	target, err := models.NewBusinessTarget(id, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(nil)
	defer cancel()

	hm, err := loadHeaders()
	if err != nil {
		return err
	}

	var emailStore core.EmailStore
	if appConfig.Finder.SaveToDatabase {
		if !target.HasBusinessID() {
			utils.Warn("⚠️  未指定--id,结果不会写入数据库")
		} else {
			db, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			emailStore = st
		}
	}

	svc, err := core.NewService(ctx, appConfig, hm, emailStore)
	if err != nil {
		return err
	}
	defer svc.Close()

	utils.Infof("🔍 开始查找: %s", target.URL)
	res, err := svc.FindEmail(ctx, target, appConfig.Finder)
	if err != nil {
		return fmt.Errorf("查找失败 (%s): %w", models.Classify(err), err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.Found() {
		utils.Infof("📭 未找到邮箱 (尝试%d次, 耗时%dms)", res.Attempts, res.DurationMs)
		return nil
	}
	utils.Infof("📧 找到邮箱: %s (来源: %s, 尝试%d次, 耗时%dms)", res.Email, res.Source, res.Attempts, res.DurationMs)
	return nil
}
