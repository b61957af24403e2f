package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/database"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,例如 EMAILFINDER_FINDER_TIMEOUT=45s
const EnvPrefix = "EMAILFINDER"

// Config 应用程序配置
type Config struct {
	Finder   models.FindOptions `mapstructure:"finder"`
	Pool     PoolConfig         `mapstructure:"pool"`
	Search   SearchConfig       `mapstructure:"search"`
	Whois    WhoisConfig        `mapstructure:"whois"`
	Database database.Config    `mapstructure:"database"`
	Logging  LoggingConfig      `mapstructure:"logging"`
	Export   ExportConfig       `mapstructure:"export"`
	Rotation RotatorConfig      `mapstructure:"rotation"`
	Output   OutputConfig       `mapstructure:"output"`
}

// PoolConfig 浏览器上下文池配置
type PoolConfig struct {
	Size        int           `mapstructure:"size"`
	Headless    bool          `mapstructure:"headless"`
	BrowserPath string        `mapstructure:"browser_path"`
	NoSandbox   bool          `mapstructure:"no_sandbox"`
	Stealth     bool          `mapstructure:"stealth"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
	// AutoCap 按系统可用内存和CPU下调池大小
	AutoCap bool `mapstructure:"auto_cap"`
}

// SearchConfig 搜索引擎配置
type SearchConfig struct {
	Endpoints         map[string]string `mapstructure:"endpoints"`
	RequestsPerMinute int               `mapstructure:"requests_per_minute"`
	UserAgent         string            `mapstructure:"user_agent"`
}

// WhoisConfig WHOIS查询配置
type WhoisConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string            `mapstructure:"level"`
	LogDir   string            `mapstructure:"log_dir"`
	Rotation LogRotationConfig `mapstructure:"rotation"`
	// MaskEmails 日志中隐藏找到的邮箱
	MaskEmails bool `mapstructure:"mask_emails"`
}

// LogRotationConfig 日志轮转配置
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ExportConfig xlsx导出配置
type ExportConfig struct {
	Path          string `mapstructure:"path"`
	OnlyWithEmail bool   `mapstructure:"only_with_email"`
}

// RotatorConfig 出口IP切换配置
type RotatorConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Every 每派发多少个目标切换一次,0表示只在批次开始前切换
	Every int `mapstructure:"every"`
}

// Enabled 是否配置了切换命令
func (c RotatorConfig) Enabled() bool {
	return strings.TrimSpace(c.Command) != ""
}

// OutputConfig 输出配置
type OutputConfig struct {
	ReportDir   string `mapstructure:"report_dir"`
	HeadersFile string `mapstructure:"headers_file"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".emailfinder"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.Finder = config.Finder.WithDefaults()
	if err := config.Finder.Validate(); err != nil {
		return nil, fmt.Errorf("配置文件中的查找参数无效: %w", err)
	}
	for engine, endpoint := range config.Search.Endpoints {
		if err := models.ValidateURL(endpoint); err != nil {
			return nil, fmt.Errorf("搜索引擎%s的地址无效: %w", engine, err)
		}
	}
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	def := models.DefaultFindOptions()

	// 查找参数
	v.SetDefault("finder.use_search_engines", def.UseSearchEngines)
	v.SetDefault("finder.search_engine", def.SearchEngine)
	v.SetDefault("finder.timeout", def.Timeout)
	v.SetDefault("finder.max_retries", def.MaxRetries)
	v.SetDefault("finder.max_depth", def.MaxDepth)
	v.SetDefault("finder.max_pages", def.MaxPages)
	v.SetDefault("finder.save_to_database", def.SaveToDatabase)
	v.SetDefault("finder.use_whois", false)
	v.SetDefault("finder.propagate_to_domain", false)
	v.SetDefault("finder.domain_filter", "")

	// 浏览器池
	v.SetDefault("pool.size", models.DefaultConcurrency)
	v.SetDefault("pool.headless", true)
	v.SetDefault("pool.browser_path", "")
	v.SetDefault("pool.no_sandbox", false)
	v.SetDefault("pool.stealth", true)
	v.SetDefault("pool.stale_after", 5*time.Minute)
	v.SetDefault("pool.auto_cap", true)

	// 搜索引擎
	v.SetDefault("search.requests_per_minute", 20)
	v.SetDefault("search.user_agent", "")
	v.SetDefault("search.endpoints", map[string]string{})

	v.SetDefault("whois.timeout", 10*time.Second)

	// 数据库
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "emailfinder.db")
	v.SetDefault("database.max_conns", 4)

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.mask_emails", true)
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 导出
	v.SetDefault("export.path", "output/businesses.xlsx")
	v.SetDefault("export.only_with_email", false)

	// 出口切换
	v.SetDefault("rotation.command", "")
	v.SetDefault("rotation.args", []string{})
	v.SetDefault("rotation.timeout", 30*time.Second)
	v.SetDefault("rotation.every", 0)

	// 输出
	v.SetDefault("output.report_dir", "output")
	v.SetDefault("output.headers_file", "configs/headers.yaml")
}

// LogConfig 转换为日志初始化参数
func (c *Config) LogConfig() utils.LogConfig {
	lc := utils.DefaultLogConfig()
	if c.Logging.Level != "" {
		lc.Level = c.Logging.Level
	}
	if c.Logging.LogDir != "" {
		lc.LogDir = c.Logging.LogDir
	}
	if c.Logging.Rotation.MaxSize > 0 {
		lc.MaxSize = c.Logging.Rotation.MaxSize
	}
	if c.Logging.Rotation.MaxBackups > 0 {
		lc.MaxBackups = c.Logging.Rotation.MaxBackups
	}
	if c.Logging.Rotation.MaxAge > 0 {
		lc.MaxAge = c.Logging.Rotation.MaxAge
	}
	lc.Compress = c.Logging.Rotation.Compress
	lc.MaskEmails = c.Logging.MaskEmails
	return lc
}

// CLIOverrides 命令行参数
// 数值字段为负数、字符串为空、指针为nil时表示未指定
type CLIOverrides struct {
	Timeout          time.Duration
	MaxRetries       int
	MaxDepth         int
	MaxPages         int
	Concurrency      int
	SearchEngine     string
	DomainFilter     string
	UseSearchEngines *bool
	UseWhois         *bool
	SaveToDatabase   *bool
	Propagate        *bool
	Headless         *bool
}

// NoOverrides 返回全部未指定的命令行参数
func NoOverrides() CLIOverrides {
	return CLIOverrides{MaxRetries: -1, MaxDepth: -1, MaxPages: -1, Concurrency: -1}
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.Timeout > 0 {
		c.Finder.Timeout = o.Timeout
	}
	if o.MaxRetries >= 0 {
		c.Finder.MaxRetries = o.MaxRetries
	}
	if o.MaxDepth >= 0 {
		c.Finder.MaxDepth = o.MaxDepth
	}
	if o.MaxPages > 0 {
		c.Finder.MaxPages = o.MaxPages
	}
	if o.Concurrency > 0 {
		c.Pool.Size = o.Concurrency
	}
	if o.SearchEngine != "" {
		c.Finder.SearchEngine = strings.ToLower(o.SearchEngine)
	}
	if o.DomainFilter != "" {
		c.Finder.DomainFilter = o.DomainFilter
	}
	if o.UseSearchEngines != nil {
		c.Finder.UseSearchEngines = *o.UseSearchEngines
	}
	if o.UseWhois != nil {
		c.Finder.UseWhois = *o.UseWhois
	}
	if o.SaveToDatabase != nil {
		c.Finder.SaveToDatabase = *o.SaveToDatabase
	}
	if o.Propagate != nil {
		c.Finder.PropagateToDomain = *o.Propagate
	}
	if o.Headless != nil {
		c.Pool.Headless = *o.Headless
	}
}
