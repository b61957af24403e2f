package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/EmailFinder/internal/config"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/124.0.0.0 Safari/537.36"

// headerLayer 一层头部及其校验范围
type headerLayer struct {
	source  string
	scope   models.HeaderScope
	headers http.Header
}

// HeaderManager 按范围合并自定义头部,实现models.HeaderProvider
//
// 站点范围: 默认 < 配置headers < 命令行
// 搜索范围: 默认 < 配置headers < 配置search < 命令行 < 命令行search:
type HeaderManager struct {
	defaults     http.Header
	cliAll       http.Header
	cliSearch    http.Header
	configAll    http.Header
	configSearch http.Header

	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor
	loader    *config.HeaderConfigLoader

	// 浏览器上下文、sitemap抓取和搜索请求会并发读取
	mu     sync.Mutex
	loaded bool
	merged map[models.HeaderScope]http.Header
}

// NewHeaderManager 创建头部管理器,cliHeaders为 -H 参数原文
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	all, search, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	return &HeaderManager{
		defaults: http.Header{
			"User-Agent":      {DefaultUserAgent},
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"en-US,en;q=0.9,de;q=0.8"},
		},
		cliAll:       all,
		cliSearch:    search,
		configAll:    make(http.Header),
		configSearch: make(http.Header),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		loader:       config.NewHeaderConfigLoader(configFile),
	}, nil
}

// LoadConfig 读取配置文件并校验,已加载则跳过
func (hm *HeaderManager) LoadConfig() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.loadLocked()
}

func (hm *HeaderManager) loadLocked() error {
	if hm.loaded {
		return nil
	}

	cfg, err := hm.loader.LoadConfig()
	if err != nil {
		return err
	}
	hm.configAll = models.ToHeader(cfg.Headers)
	hm.configSearch = models.ToHeader(cfg.Search)

	if err := hm.validateLocked(); err != nil {
		return err
	}

	hm.merged = map[models.HeaderScope]http.Header{
		models.ScopeSite:   hm.mergeLocked(models.ScopeSite),
		models.ScopeSearch: hm.mergeLocked(models.ScopeSearch),
	}
	hm.loaded = true

	if n := len(cfg.Headers) + len(cfg.Search); n > 0 {
		utils.Debugf("加载%d个自定义头部: %s | search: %s", n,
			hm.redactor.String(hm.configAll), hm.redactor.String(hm.configSearch))
	}
	return nil
}

// layers 按优先级从低到高排列
func (hm *HeaderManager) layers() []headerLayer {
	return []headerLayer{
		{"默认", models.ScopeSite, hm.defaults},
		{"配置文件", models.ScopeSite, hm.configAll},
		{"配置文件search节", models.ScopeSearch, hm.configSearch},
		{"命令行", models.ScopeSite, hm.cliAll},
		{"命令行search:", models.ScopeSearch, hm.cliSearch},
	}
}

// Validate 校验所有层,一次报告全部非法头部
func (hm *HeaderManager) Validate() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.validateLocked()
}

func (hm *HeaderManager) validateLocked() error {
	for _, l := range hm.layers() {
		if err := hm.validator.ValidateAll(l.scope, l.headers); err != nil {
			utils.Errorf("%s头部验证失败: %v", l.source, err)
			return err
		}
	}
	return nil
}

func (hm *HeaderManager) mergeLocked(scope models.HeaderScope) http.Header {
	out := make(http.Header)
	for _, l := range hm.layers() {
		if scope == models.ScopeSite && l.scope == models.ScopeSearch {
			continue
		}
		for name, values := range l.headers {
			out[name] = values
		}
	}
	return out
}

// Merged 返回合并后的头部,不触发加载
func (hm *HeaderManager) Merged(scope models.HeaderScope) http.Header {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.mergeLocked(scope)
}

// SafeHeaders 脱敏后的头部,用于日志和--validate-config
func (hm *HeaderManager) SafeHeaders(scope models.HeaderScope) map[string]string {
	return hm.redactor.Redact(hm.Merged(scope))
}

// UserAgent 当前生效的User-Agent
func (hm *HeaderManager) UserAgent() string {
	return hm.Merged(models.ScopeSite).Get("User-Agent")
}

// ConfigPath 头部配置文件路径
func (hm *HeaderManager) ConfigPath() string {
	return hm.loader.Path()
}

// HeadersFor 首次调用时加载并校验,之后返回缓存的副本
func (hm *HeaderManager) HeadersFor(scope models.HeaderScope) (http.Header, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if err := hm.loadLocked(); err != nil {
		return nil, err
	}
	if h, ok := hm.merged[scope]; ok {
		return h.Clone(), nil
	}
	return hm.merged[models.ScopeSite].Clone(), nil
}
