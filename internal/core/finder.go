package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/strategies"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/rs/zerolog/log"
)

const (
	// persistTimeout 写库的时间上限,不占用查找预算
	persistTimeout = 10 * time.Second

	// abandonRecoverTimeout 放弃超时尝试后修复槽位的时间上限
	abandonRecoverTimeout = 15 * time.Second
)

// EmailStore 查找结果的持久化
type EmailStore interface {
	SaveEmail(ctx context.Context, businessID int64, email string, source models.EmailSource) (bool, error)
	PropagateEmail(ctx context.Context, domain, email string, source models.EmailSource, excludeID int64) (int64, error)
}

// FinderConfig 查找服务的依赖
type FinderConfig struct {
	Pool       *crawlers.ContextPool
	Recovery   *crawlers.RecoveryManager
	Strategies []strategies.Strategy // 按优先级排列
	Store      EmailStore            // 为nil时不写库
	Retry      RetryPolicy
	Defaults   models.FindOptions // 调用方未指定的参数
}

// EmailFinderService 单个目标的邮箱查找
// 持有浏览器池、恢复管理器和来源索引,在cmd中创建一次后按指针传递
type EmailFinderService struct {
	pool       *crawlers.ContextPool
	recovery   *crawlers.RecoveryManager
	strategies []strategies.Strategy
	store      EmailStore
	retry      RetryPolicy
	defaults   models.FindOptions
	index      *SourceIndex

	// 被放弃的尝试在后台修复槽位
	background sync.WaitGroup
	closeOnce  sync.Once
}

// NewEmailFinderService 创建查找服务
func NewEmailFinderService(cfg FinderConfig) *EmailFinderService {
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	defaults := cfg.Defaults
	if defaults == (models.FindOptions{}) {
		defaults = models.DefaultFindOptions()
	}
	return &EmailFinderService{
		pool:       cfg.Pool,
		recovery:   cfg.Recovery,
		strategies: cfg.Strategies,
		store:      cfg.Store,
		retry:      cfg.Retry,
		defaults:   defaults.WithDefaults(),
		index:      NewSourceIndex(),
	}
}

// Pool 浏览器上下文池
func (f *EmailFinderService) Pool() *crawlers.ContextPool {
	return f.pool
}

// Recovery 恢复管理器
func (f *EmailFinderService) Recovery() *crawlers.RecoveryManager {
	return f.recovery
}

// SourceIndex 本进程内的邮箱来源索引
func (f *EmailFinderService) SourceIndex() *SourceIndex {
	return f.index
}

// Defaults 默认查找参数
func (f *EmailFinderService) Defaults() models.FindOptions {
	return f.defaults
}

// FindEmail 在opts.Timeout内为目标查找一个邮箱
//
// 未找到邮箱不是错误: 返回Source为none的结果和nil。
// 终止性故障(无效域名、DNS不存在、被拦截)不重试;瞬时故障换上下文重试,最多MaxRetries次,
// 用尽后按未找到邮箱返回,最后的故障记在LastFault。
// 找到邮箱但写库失败时,同时返回结果和包装了ErrPersistence的错误。
func (f *EmailFinderService) FindEmail(ctx context.Context, target models.BusinessTarget, opts models.FindOptions) (models.ExtractionResult, error) {
	opts = opts.WithDefaults()
	result := models.ExtractionResult{Source: models.SourceNone}
	if err := opts.Validate(); err != nil {
		return result, err
	}
	if opts.BusinessID != nil {
		target.BusinessID = opts.BusinessID
	}
	if target.URL == "" {
		return result, fmt.Errorf("%w: 目标缺少URL", models.ErrInvalidTarget)
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	logger := utils.Component("finder").With().Str("target", target.String()).Logger()

	var (
		cand    strategies.Candidate
		lastErr error
	)
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := f.retry.Backoff(attempt - 1)
			if strategies.Remaining(runCtx)-wait < strategies.MinStrategySlice {
				logger.Debug().Msg("剩余时间不足,不再重试")
				break
			}
			if !sleepCtx(runCtx, wait) {
				break
			}
		}

		result.Attempts = attempt + 1
		cand, lastErr = f.attempt(runCtx, target, opts)
		if lastErr == nil {
			break
		}

		kind := models.Classify(lastErr)
		logger.Debug().Err(lastErr).Int("attempt", attempt+1).Str("fault", kind.String()).Msg("查找尝试失败")
		if !kind.Retryable() || runCtx.Err() != nil || errors.Is(lastErr, models.ErrPoolClosed) {
			break
		}
	}
	result.DurationMs = time.Since(start).Milliseconds()

	if lastErr != nil {
		if !notFoundFault(ctx, lastErr) {
			logger.Info().Err(lastErr).Int("attempts", result.Attempts).Msg("邮箱查找失败")
			return result, lastErr
		}
		result.LastFault = lastErr.Error()
		logger.Info().Err(lastErr).Int("attempts", result.Attempts).Msg("瞬时故障重试用尽,按未找到邮箱处理")
		return result, nil
	}
	if !cand.Found() {
		logger.Info().Int("attempts", result.Attempts).Int64("ms", result.DurationMs).Msg("未找到邮箱")
		return result, nil
	}

	result.Email = strategies.Normalize(cand.Email)
	result.Source = cand.Source
	f.index.Record(result.Email, result.Source)
	logger.Info().Str("email", utils.EmailForLog(result.Email)).Str("source", string(result.Source)).Str("page", cand.PageURL).
		Int64("ms", result.DurationMs).Msg("找到邮箱")

	if err := f.persist(ctx, target, opts, result); err != nil {
		return result, err
	}
	return result, nil
}

// notFoundFault 重试用尽后可按"未找到邮箱"结束的故障
// 池错误、终止故障和调用方取消仍交给调用方处理
func notFoundFault(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, models.ErrPoolExhausted) || errors.Is(err, models.ErrPoolClosed) ||
		errors.Is(err, models.ErrBrowserUnavailable) {
		return false
	}
	return models.Classify(err) != models.FaultTerminal
}

type attemptOutcome struct {
	cand strategies.Candidate
	err  error
}

// attempt 借出一个槽位执行一轮策略
// 截止时间到达时立即返回,仍在运行的策略被放弃,槽位修复后才归还
func (f *EmailFinderService) attempt(ctx context.Context, target models.BusinessTarget, opts models.FindOptions) (strategies.Candidate, error) {
	slot, err := f.pool.Acquire(ctx)
	if err != nil {
		return strategies.Candidate{}, err
	}

	sess := &strategies.Session{
		Browser: slot.Context(),
		Target:  target,
		Options: opts,
	}

	done := make(chan attemptOutcome, 1)
	go func() {
		cand, err := f.runStrategies(ctx, sess)
		done <- attemptOutcome{cand: cand, err: err}
	}()

	select {
	case out := <-done:
		f.finishAttempt(slot, out.err)
		return out.cand, out.err
	case <-ctx.Done():
	}

	// 截止时间与策略结束同时发生时以策略结果为准
	select {
	case out := <-done:
		f.finishAttempt(slot, out.err)
		return out.cand, out.err
	default:
	}

	f.abandon(slot)
	return strategies.Candidate{}, fmt.Errorf("%w: %s 超过时间预算: %w", models.ErrNavigationTimeout, target.Domain, ctx.Err())
}

// finishAttempt 归还槽位,上下文损坏时先标记,下次借出前由恢复管理器修复
func (f *EmailFinderService) finishAttempt(slot *crawlers.Slot, err error) {
	if models.Classify(err) == models.FaultCorruption {
		log.Warn().Err(err).Int("slot", slot.Index).Msg("浏览器上下文损坏,标记待修复")
		f.pool.MarkUnhealthy(slot)
	}
	f.pool.Release(slot)
}

// abandon 放弃仍在运行的尝试: 槽位保持借出,后台替换上下文后再归还
func (f *EmailFinderService) abandon(slot *crawlers.Slot) {
	log.Warn().Int("slot", slot.Index).Msg("策略超时未返回,替换浏览器上下文")
	f.pool.MarkUnhealthy(slot)

	f.background.Add(1)
	go func() {
		defer f.background.Done()
		defer f.pool.Release(slot)

		if f.recovery == nil || f.pool.Closed() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), abandonRecoverTimeout)
		defer cancel()
		f.recovery.Recover(ctx, slot.Index)
	}()
}

// runStrategies 按优先级执行策略,找到第一个邮箱即返回
//
// 落地页的瞬时故障和上下文损坏直接返回给重试循环;
// 落地页的终止故障跳过依赖站点的策略,站外策略(搜索引擎、WHOIS)仍会执行。
func (f *EmailFinderService) runStrategies(ctx context.Context, sess *strategies.Session) (strategies.Candidate, error) {
	var siteErr error
	for _, s := range f.strategies {
		if !s.Enabled(sess.Options) {
			continue
		}
		if siteErr != nil && needsSite(s) {
			continue
		}
		if !strategies.HasBudget(ctx) {
			log.Debug().Str("strategy", string(s.Name())).Dur("remaining", strategies.Remaining(ctx)).Msg("剩余时间不足,跳过策略")
			break
		}

		cand, err := runStrategy(ctx, s, sess)
		if err != nil {
			kind := models.Classify(err)
			switch {
			case kind == models.FaultCorruption:
				return strategies.Candidate{}, err
			case s.Name() == models.SourcePageScan && kind.Retryable():
				return strategies.Candidate{}, err
			case s.Name() == models.SourcePageScan:
				siteErr = err
			default:
				log.Debug().Err(err).Str("strategy", string(s.Name())).Msg("策略失败,继续下一个")
			}
			continue
		}
		if cand.Found() {
			if cand.Source == "" {
				cand.Source = s.Name()
			}
			return cand, nil
		}
	}

	if siteErr != nil {
		return strategies.Candidate{}, siteErr
	}
	if err := ctx.Err(); err != nil {
		return strategies.Candidate{}, fmt.Errorf("%w: %w", models.ErrNavigationTimeout, err)
	}
	return strategies.Candidate{}, nil
}

// runStrategy 执行单个策略,panic转为上下文损坏错误
func runStrategy(ctx context.Context, s strategies.Strategy, sess *strategies.Session) (cand strategies.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("strategy", string(s.Name())).Msg("策略发生panic")
			err = fmt.Errorf("%w: 策略%s panic: %v", models.ErrContextCorrupted, s.Name(), r)
		}
	}()
	return s.Run(ctx, sess)
}

// needsSite 策略是否依赖目标站点可访问
func needsSite(s strategies.Strategy) bool {
	switch s.Name() {
	case models.SourcePageScan, models.SourceCrawl:
		return true
	}
	return false
}

// persist 写入业务记录,可选地传播到同域名的其他记录
func (f *EmailFinderService) persist(ctx context.Context, target models.BusinessTarget, opts models.FindOptions, result models.ExtractionResult) error {
	if !opts.SaveToDatabase || f.store == nil || target.BusinessID == nil || !result.Found() {
		return nil
	}
	id := *target.BusinessID

	// 查找预算可能已用完,写库使用独立的超时
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if _, err := f.store.SaveEmail(ctx, id, result.Email, result.Source); err != nil {
		log.Error().Err(err).Int64("business_id", id).Msg("保存邮箱失败")
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}

	if opts.PropagateToDomain {
		n, err := f.store.PropagateEmail(ctx, target.Domain, result.Email, result.Source, id)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		if n > 0 {
			log.Info().Int64("rows", n).Str("domain", target.Domain).Msg("邮箱已传播到同域名记录")
		}
	}
	return nil
}

// Close 等待后台修复结束并关闭浏览器池
func (f *EmailFinderService) Close() error {
	var err error
	f.closeOnce.Do(func() {
		waited := make(chan struct{})
		go func() {
			f.background.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(abandonRecoverTimeout):
			log.Warn().Msg("等待浏览器上下文修复超时,直接关闭")
		}
		if f.pool != nil {
			err = f.pool.Shutdown()
		}
	})
	if errors.Is(err, models.ErrPoolClosed) {
		return nil
	}
	return err
}
