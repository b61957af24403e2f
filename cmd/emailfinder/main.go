package main

import (
	"fmt"
	"os"

	"github.com/RecoveryAshes/EmailFinder/internal/core"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 全局参数
var (
	configFile     string
	verbose        bool
	logLevel       string
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证头部配置文件

	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "emailfinder",
	Short: "企业网站联系邮箱发现工具",
	Long: `EmailFinder - 为企业网站查找一个可用的联系邮箱

按优先级依次尝试:
  • 落地页扫描 (mailto链接、Cloudflare混淆地址、可见文本)
  • 站内爬取 (联系页优先,支持sitemap)
  • 搜索引擎 (--search)
  • WHOIS (--whois)

示例:
  # 查找单个网站
  emailfinder find example.com

  # 处理数据库中尚无邮箱的记录
  emailfinder batch --from-db -n 4

  # 从文件批量查找并导出
  emailfinder batch -f targets.txt --no-save
  emailfinder export -o output/businesses.xlsx

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		logConfig := config.LogConfig()
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}
		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateConfig {
			return runValidateHeaders()
		}
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("EmailFinder %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证HTTP头部配置文件")

	rootCmd.AddCommand(versionCmd, findCmd, batchCmd, exportCmd, importCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
