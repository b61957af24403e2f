package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Slot 池中的一个浏览器上下文槽位
// 同一时刻最多只有一个借用者
type Slot struct {
	Index int

	mu         sync.RWMutex
	bctx       BrowserContext
	healthy    bool
	lastUsedAt time.Time

	// 由ContextPool.mu保护
	leased bool
}

// Context 当前槽位持有的浏览器上下文
func (s *Slot) Context() BrowserContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bctx
}

// Healthy 槽位是否健康
func (s *Slot) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// LastUsedAt 最近一次归还时间
func (s *Slot) LastUsedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsedAt
}

func (s *Slot) setHealthy(v bool) {
	s.mu.Lock()
	s.healthy = v
	s.mu.Unlock()
}

// LeaseHook 借出槽位前调用的钩子(用于主动健康检查)
type LeaseHook func(ctx context.Context, slot *Slot)

// PoolStats 池使用统计快照
type PoolStats struct {
	Size      int   `json:"size"`
	Available int   `json:"available"`
	Acquired  int64 `json:"acquired"`
	Released  int64 `json:"released"`
	Replaced  int64 `json:"replaced"`
	Errors    int64 `json:"errors"`
}

// ContextPool 固定大小的浏览器上下文池
// 职责: 预热上下文,按LRU借出空闲槽位,替换损坏的上下文
type ContextPool struct {
	engine Engine

	// 保护slots和每个槽位的leased标记
	mu    sync.Mutex
	slots []*Slot

	// 空闲令牌,数量始终等于空闲槽位数
	tokens chan struct{}

	closed    atomic.Bool
	closedCh  chan struct{}
	closeOnce sync.Once

	leaseHook LeaseHook

	acquired atomic.Int64
	released atomic.Int64
	replaced atomic.Int64
	errCount atomic.Int64
}

// NewContextPool 创建上下文池,需调用Initialize预热
func NewContextPool(engine Engine) *ContextPool {
	return &ContextPool{
		engine:   engine,
		closedCh: make(chan struct{}),
	}
}

// SetLeaseHook 设置借出前钩子,需在Initialize之后、并发使用之前调用
func (p *ContextPool) SetLeaseHook(hook LeaseHook) {
	p.mu.Lock()
	p.leaseHook = hook
	p.mu.Unlock()
}

// Initialize 预先创建size个上下文
// 全部失败返回ErrBrowserUnavailable;部分失败时记录日志并以成功的数量运行
func (p *ContextPool) Initialize(ctx context.Context, size int) error {
	if size < 1 {
		return fmt.Errorf("池大小必须大于0: %d", size)
	}
	if p.closed.Load() {
		return models.ErrPoolClosed
	}

	log.Info().Int("size", size).Msg("初始化浏览器上下文池")

	slots := make([]*Slot, 0, size)
	var firstErr error
	for i := 0; i < size; i++ {
		bctx, err := p.engine.NewContext(ctx)
		if err != nil {
			p.errCount.Add(1)
			if firstErr == nil {
				firstErr = err
			}
			log.Warn().Err(err).Int("slot", i).Msg("创建浏览器上下文失败")
			continue
		}
		slots = append(slots, &Slot{
			Index:      len(slots),
			bctx:       bctx,
			healthy:    true,
			lastUsedAt: time.Now(),
		})
	}

	if len(slots) == 0 {
		return fmt.Errorf("%w: %v", models.ErrBrowserUnavailable, firstErr)
	}
	if len(slots) < size {
		log.Warn().Int("requested", size).Int("created", len(slots)).Msg("部分浏览器上下文创建失败,以较小的池继续运行")
	}

	p.mu.Lock()
	p.slots = slots
	p.tokens = make(chan struct{}, len(slots))
	for range slots {
		p.tokens <- struct{}{}
	}
	p.mu.Unlock()

	log.Info().Int("size", len(slots)).Msg("浏览器上下文池已就绪")
	return nil
}

// Acquire 借出最久未使用的空闲槽位,无空闲时阻塞
// ctx结束返回ErrPoolExhausted,池关闭返回ErrPoolClosed
func (p *ContextPool) Acquire(ctx context.Context) (*Slot, error) {
	if p.closed.Load() {
		return nil, models.ErrPoolClosed
	}

	p.mu.Lock()
	tokens := p.tokens
	p.mu.Unlock()
	if tokens == nil {
		return nil, fmt.Errorf("%w: 池尚未初始化", models.ErrBrowserUnavailable)
	}

	select {
	case <-p.closedCh:
		return nil, models.ErrPoolClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", models.ErrPoolExhausted, ctx.Err())
	case <-tokens:
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return nil, models.ErrPoolClosed
	}
	slot := p.pickLRU()
	slot.leased = true
	hook := p.leaseHook
	p.mu.Unlock()

	p.acquired.Add(1)

	if hook != nil {
		hook(ctx, slot)
	}
	return slot, nil
}

// pickLRU 选择最久未使用的空闲槽位,健康的优先,调用方持有p.mu
func (p *ContextPool) pickLRU() *Slot {
	var best *Slot
	for _, s := range p.slots {
		if s.leased {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		sh, bh := s.Healthy(), best.Healthy()
		if sh != bh {
			if sh {
				best = s
			}
			continue
		}
		if s.LastUsedAt().Before(best.LastUsedAt()) {
			best = s
		}
	}
	return best
}

// Release 归还槽位并更新最近使用时间
func (p *ContextPool) Release(slot *Slot) {
	if slot == nil {
		return
	}

	slot.mu.Lock()
	slot.lastUsedAt = time.Now()
	slot.mu.Unlock()

	p.mu.Lock()
	if !slot.leased {
		p.mu.Unlock()
		log.Warn().Int("slot", slot.Index).Msg("重复归还浏览器上下文,已忽略")
		return
	}
	slot.leased = false
	tokens := p.tokens
	p.mu.Unlock()

	p.released.Add(1)

	if p.closed.Load() {
		return
	}
	tokens <- struct{}{}
}

// MarkUnhealthy 标记槽位不健康,下次借出前会被修复
func (p *ContextPool) MarkUnhealthy(slot *Slot) {
	if slot != nil {
		slot.setHealthy(false)
	}
}

// Replace 关闭并原地重建index处的上下文,池大小不变
// 关闭错误只记录;重建失败时槽位保留但标记为不健康,后续Replace会重试
func (p *ContextPool) Replace(ctx context.Context, index int) error {
	if p.closed.Load() {
		return models.ErrPoolClosed
	}

	slot := p.slotAt(index)
	if slot == nil {
		return fmt.Errorf("槽位索引越界: %d", index)
	}

	slot.mu.Lock()
	old := slot.bctx
	slot.healthy = false
	slot.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			log.Debug().Err(err).Int("slot", index).Msg("关闭旧浏览器上下文失败,忽略")
		}
	}

	fresh, err := p.engine.NewContext(ctx)
	if err != nil {
		p.errCount.Add(1)
		slot.mu.Lock()
		slot.bctx = brokenContext{cause: err}
		slot.mu.Unlock()
		log.Warn().Err(err).Int("slot", index).Msg("重建浏览器上下文失败,槽位保持不健康")
		return fmt.Errorf("重建槽位%d失败: %w", index, err)
	}

	slot.mu.Lock()
	slot.bctx = fresh
	slot.healthy = true
	slot.mu.Unlock()

	p.replaced.Add(1)
	log.Debug().Int("slot", index).Msg("浏览器上下文已替换")
	return nil
}

func (p *ContextPool) slotAt(index int) *Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.slots) {
		return nil
	}
	return p.slots[index]
}

// Shutdown 关闭所有上下文和引擎,幂等
func (p *ContextPool) Shutdown() error {
	var shutdownErr error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.closedCh)

		p.mu.Lock()
		slots := make([]*Slot, len(p.slots))
		copy(slots, p.slots)
		p.mu.Unlock()

		eg := new(errgroup.Group)
		eg.SetLimit(4)
		for _, s := range slots {
			bctx := s.Context()
			if bctx == nil {
				continue
			}
			eg.Go(func() error {
				if err := bctx.Close(); err != nil {
					log.Debug().Err(err).Msg("关闭浏览器上下文失败")
				}
				return nil
			})
		}
		_ = eg.Wait()

		if p.engine != nil {
			if err := p.engine.Close(); err != nil && !errors.Is(err, ErrEngineClosed) {
				shutdownErr = err
			}
		}

		log.Info().
			Int64("total_acquired", p.acquired.Load()).
			Int64("total_released", p.released.Load()).
			Int64("total_replaced", p.replaced.Load()).
			Int64("total_errors", p.errCount.Load()).
			Msg("浏览器上下文池已关闭")
	})
	return shutdownErr
}

// Size 池中的槽位数
func (p *ContextPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Available 当前空闲槽位数
func (p *ContextPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		if !s.leased {
			n++
		}
	}
	return n
}

// Stats 统计快照
func (p *ContextPool) Stats() PoolStats {
	return PoolStats{
		Size:      p.Size(),
		Available: p.Available(),
		Acquired:  p.acquired.Load(),
		Released:  p.released.Load(),
		Replaced:  p.replaced.Load(),
		Errors:    p.errCount.Load(),
	}
}

// Closed 池是否已关闭
func (p *ContextPool) Closed() bool {
	return p.closed.Load()
}
