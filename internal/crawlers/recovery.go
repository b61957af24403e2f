package crawlers

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// HealthCheckTimeout 单次健康检查的时间上限
	HealthCheckTimeout = 5 * time.Second

	// DefaultStaleAfter 空闲超过该时长的槽位在借出前先做健康检查
	DefaultStaleAfter = 5 * time.Minute
)

// RecoveryManager 浏览器上下文的健康检查与修复
type RecoveryManager struct {
	pool       *ContextPool
	staleAfter time.Duration
}

// NewRecoveryManager 创建恢复管理器,并挂到池的借出钩子上
func NewRecoveryManager(pool *ContextPool, staleAfter time.Duration) *RecoveryManager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	rm := &RecoveryManager{pool: pool, staleAfter: staleAfter}
	pool.SetLeaseHook(rm.beforeLease)
	return rm
}

// CheckHealth 在5秒内导航到about:blank并执行1+1
func (rm *RecoveryManager) CheckHealth(ctx context.Context, index int) bool {
	slot := rm.pool.slotAt(index)
	if slot == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	bctx := slot.Context()
	if bctx == nil {
		return false
	}

	if _, err := bctx.Navigate(ctx, "about:blank"); err != nil {
		log.Debug().Err(err).Int("slot", index).Msg("健康检查失败: 无法导航")
		return false
	}

	out, err := bctx.Eval(ctx, "() => 1 + 1")
	if err != nil {
		log.Debug().Err(err).Int("slot", index).Msg("健康检查失败: 无法执行脚本")
		return false
	}
	if strings.TrimSpace(out) != "2" {
		log.Debug().Str("result", out).Int("slot", index).Msg("健康检查失败: 结果异常")
		return false
	}

	slot.setHealthy(true)
	return true
}

// Recover 替换index处的上下文并验证新上下文可用
func (rm *RecoveryManager) Recover(ctx context.Context, index int) bool {
	log.Info().Int("slot", index).Msg("开始恢复浏览器上下文")

	if err := rm.pool.Replace(ctx, index); err != nil {
		log.Warn().Err(err).Int("slot", index).Msg("恢复浏览器上下文失败")
		return false
	}

	if !rm.CheckHealth(ctx, index) {
		if slot := rm.pool.slotAt(index); slot != nil {
			slot.setHealthy(false)
		}
		log.Warn().Int("slot", index).Msg("新建的浏览器上下文未通过健康检查")
		return false
	}

	log.Info().Int("slot", index).Msg("浏览器上下文已恢复")
	return true
}

// beforeLease 借出前的主动检查: 不健康或空闲过久的槽位先检查,失败则修复
func (rm *RecoveryManager) beforeLease(ctx context.Context, slot *Slot) {
	if slot.Healthy() && time.Since(slot.LastUsedAt()) < rm.staleAfter {
		return
	}

	// 检查和修复都消耗调用方的时间预算
	if slot.Healthy() && rm.CheckHealth(ctx, slot.Index) {
		return
	}
	rm.Recover(ctx, slot.Index)
}
