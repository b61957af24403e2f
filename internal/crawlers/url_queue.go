package crawlers

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

// URLQueue 单次爬取的URL队列
// 职责: 管理待爬取和已访问的URL,按联系页得分优先、同分按深度广度优先出队
type URLQueue struct {
	// 待处理URL,保持有序
	pending []models.URLItem

	// 已访问或已入队的URL(规范化后)
	seen map[string]bool

	// 已出队的URL数
	popped int

	mu sync.Mutex

	// 目标站点(可注册域名)
	site string

	maxDepth int
	maxPages int
}

// NewURLQueue 创建URL队列实例
func NewURLQueue(site string, maxDepth, maxPages int) *URLQueue {
	return &URLQueue{
		seen:     make(map[string]bool),
		site:     site,
		maxDepth: maxDepth,
		maxPages: maxPages,
	}
}

// Push 添加URL到待爬队列
// 检查URL有效性、深度限制、跨站过滤、已访问检查
func (q *URLQueue) Push(item models.URLItem) error {
	parsedURL, err := url.Parse(item.URL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("不支持的协议: %s", parsedURL.Scheme)
	}

	if item.Depth > q.maxDepth {
		return fmt.Errorf("深度超过限制: %d > %d", item.Depth, q.maxDepth)
	}

	if !SameSite(parsedURL.Hostname(), q.site) {
		return fmt.Errorf("跨站链接已过滤: %s (目标站点: %s)", parsedURL.Host, q.site)
	}

	key := CanonicalURL(parsedURL)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[key] {
		return fmt.Errorf("URL已访问: %s", item.URL)
	}
	q.seen[key] = true

	item.URL = parsedURL.String()
	idx := sort.Search(len(q.pending), func(i int) bool {
		return less(item, q.pending[i])
	})
	q.pending = append(q.pending, models.URLItem{})
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = item
	return nil
}

// less 得分高的优先,同分时深度浅的优先,再按入队顺序
func less(a, b models.URLItem) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Depth < b.Depth
}

// Pop 取出下一个待爬URL
// 队列为空或已达到页面上限时返回ok=false
func (q *URLQueue) Pop() (models.URLItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 || q.popped >= q.maxPages {
		return models.URLItem{}, false
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	q.popped++
	return item, true
}

// MarkVisited 标记URL为已访问(用于重定向后的最终地址)
func (q *URLQueue) MarkVisited(urlStr string) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[CanonicalURL(parsed)] = true
}

// IsVisited 检查URL是否已访问或已入队
func (q *URLQueue) IsVisited(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen[CanonicalURL(parsed)]
}

// PendingCount 返回当前待处理URL数量
func (q *URLQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// VisitedPages 已出队的页面数
func (q *URLQueue) VisitedPages() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popped
}

// Reset 清空队列,为下一次尝试准备全新状态
func (q *URLQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.seen = make(map[string]bool)
	q.popped = 0
}

// CanonicalURL 去重用的URL形式: 小写主机、去掉www.、锚点和末尾斜杠,忽略协议
func CanonicalURL(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		return host + path + "?" + u.RawQuery
	}
	return host + path
}
