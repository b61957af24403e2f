// Package crawlerstest 提供内存中的浏览器引擎,用于测试上下文池和提取策略
package crawlerstest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

// Page 模拟站点上的一个页面
type Page struct {
	Status int
	HTML   string
	Err    error         // 导航时直接返回的错误
	Delay  time.Duration // 导航耗时,超过ctx截止时间时返回超时
}

// Site 按URL索引的页面集合,未登记的URL返回404
type Site struct {
	mu     sync.Mutex
	pages  map[string]Page
	visits []string
}

// NewSite 创建模拟站点
func NewSite(pages map[string]Page) *Site {
	s := &Site{pages: make(map[string]Page)}
	for u, p := range pages {
		s.pages[normalize(u)] = p
	}
	return s
}

// Set 登记或替换页面
func (s *Site) Set(url string, p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[normalize(url)] = p
}

// Visits 按顺序返回导航过的URL
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

func (s *Site) lookup(url string) Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, url)
	p, ok := s.pages[normalize(url)]
	if !ok {
		return Page{Status: 404, HTML: "<html><body>not found</body></html>"}
	}
	if p.Status == 0 {
		p.Status = 200
	}
	return p
}

func normalize(u string) string {
	return strings.TrimSuffix(u, "/")
}

// Engine 内存浏览器引擎
type Engine struct {
	Site *Site

	// FailCreate 接下来这么多次NewContext会失败
	FailCreate atomic.Int32

	created atomic.Int32
	closed  atomic.Bool

	mu       sync.Mutex
	contexts []*Context
}

// NewEngine 创建引擎,site为nil时使用空站点
func NewEngine(site *Site) *Engine {
	if site == nil {
		site = NewSite(nil)
	}
	return &Engine{Site: site}
}

var errCreate = errors.New("模拟的上下文创建失败")

func (e *Engine) NewContext(ctx context.Context) (crawlers.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, crawlers.ErrEngineClosed
	}
	if e.FailCreate.Load() > 0 {
		e.FailCreate.Add(-1)
		return nil, errCreate
	}

	c := &Context{ID: int(e.created.Add(1)), site: e.Site}
	e.mu.Lock()
	e.contexts = append(e.contexts, c)
	e.mu.Unlock()
	return c, nil
}

func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// Created 已创建的上下文数量
func (e *Engine) Created() int {
	return int(e.created.Load())
}

// Closed 引擎是否已关闭
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// Contexts 已创建的所有上下文
func (e *Engine) Contexts() []*Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Context(nil), e.contexts...)
}

// Context 内存浏览器上下文
type Context struct {
	ID   int
	site *Site

	mu        sync.Mutex
	current   string
	html      string
	closed    bool
	corrupted bool
}

// Corrupt 模拟浏览器进程崩溃或页面卡死
func (c *Context) Corrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.corrupted = true
}

// IsClosed 上下文是否已关闭
func (c *Context) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Context) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: 上下文已关闭", models.ErrContextCorrupted)
	}
	if c.corrupted {
		return fmt.Errorf("%w: 模拟的页面崩溃", models.ErrContextCorrupted)
	}
	return nil
}

func (c *Context) Navigate(ctx context.Context, url string) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}

	p := c.site.lookup(url)
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: %s", models.ErrNavigationTimeout, url)
		}
	}
	if ctx.Err() != nil {
		return 0, fmt.Errorf("%w: %s", models.ErrNavigationTimeout, url)
	}
	if p.Err != nil {
		return 0, p.Err
	}

	c.mu.Lock()
	c.current = url
	c.html = p.HTML
	c.mu.Unlock()
	return p.Status, nil
}

func (c *Context) HTML(ctx context.Context) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.html, nil
}

// Eval 只支持健康检查用的算术表达式
func (c *Context) Eval(ctx context.Context, js string) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	if strings.Contains(js, "1 + 1") {
		return "2", nil
	}
	return "", nil
}

func (c *Context) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
