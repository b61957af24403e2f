package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc 每处理完一个目标调用一次,state为处理后的快照
type ProgressFunc func(state models.QueueState, rec models.TaskRecord)

// QueueProcessor 批量处理目标
//
// 状态机: idle → running → completed / stopped / failed。
// 并发数等于浏览器池大小;单个目标失败只计入Failed,不会中断批次。
type QueueProcessor struct {
	finder *EmailFinderService

	rotator     Rotator
	rotateEvery int

	mu       sync.Mutex
	state    models.QueueState
	records  []models.TaskRecord
	progress ProgressFunc

	stopping atomic.Bool
}

// NewQueueProcessor 创建队列处理器
func NewQueueProcessor(finder *EmailFinderService) *QueueProcessor {
	return &QueueProcessor{
		finder: finder,
		state:  models.QueueState{Phase: models.PhaseIdle},
	}
}

// SetProgressFunc 设置进度回调,需在Start之前调用
func (q *QueueProcessor) SetProgressFunc(fn ProgressFunc) {
	q.mu.Lock()
	q.progress = fn
	q.mu.Unlock()
}

// SetRotator 设置出口切换器
// every>0时每派发every个目标切换一次,切换前等待进行中的目标完成
func (q *QueueProcessor) SetRotator(r Rotator, every int) {
	q.mu.Lock()
	q.rotator = r
	q.rotateEvery = every
	q.mu.Unlock()
}

// Start 处理一批目标,阻塞到全部完成或被停止
//
// 已有批次运行时返回ErrQueueRunning;浏览器池不可用时批次进入failed并返回ErrBrowserUnavailable。
// 其余情况下总是返回汇总而不是错误。
func (q *QueueProcessor) Start(ctx context.Context, targets []models.BusinessTarget, opts models.FindOptions) (models.Summary, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return models.Summary{Phase: models.PhaseIdle}, err
	}

	selected := make([]models.BusinessTarget, 0, len(targets))
	for _, t := range targets {
		if opts.MatchesDomain(t.Domain) {
			selected = append(selected, t)
		}
	}

	q.mu.Lock()
	if q.state.IsRunning {
		sum := models.SummaryOf(q.state)
		q.mu.Unlock()
		return sum, models.ErrQueueRunning
	}
	now := time.Now()
	q.state = models.QueueState{
		BatchID:   models.NewBatchID(),
		IsRunning: true,
		Phase:     models.PhaseRunning,
		Total:     len(selected),
		StartedAt: &now,
	}
	q.records = nil
	q.stopping.Store(false)
	rotator, every := q.rotator, q.rotateEvery
	batchID := q.state.BatchID
	q.mu.Unlock()

	log := utils.Component("queue").With().Str("batch", batchID).Logger()

	pool := q.finder.Pool()
	if pool == nil || pool.Closed() || pool.Size() == 0 {
		log.Error().Msg("浏览器上下文池不可用,批次终止")
		return q.finish(models.PhaseFailed), models.ErrBrowserUnavailable
	}

	if skipped := len(targets) - len(selected); skipped > 0 {
		log.Info().Int("skipped", skipped).Str("filter", opts.DomainFilter).Msg("按域名过滤跳过目标")
	}
	log.Info().Int("total", len(selected)).Int("concurrency", pool.Size()).Msg("开始批量查找")

	q.rotate(ctx, rotator, log)

	g := new(errgroup.Group)
	g.SetLimit(pool.Size())
	for i, t := range selected {
		if q.stopping.Load() || ctx.Err() != nil {
			break
		}
		if every > 0 && i > 0 && i%every == 0 {
			_ = g.Wait()
			if q.stopping.Load() || ctx.Err() != nil {
				break
			}
			q.rotate(ctx, rotator, log)
		}

		t := t
		g.Go(func() error {
			// 等待并发名额期间可能已收到停止请求
			if q.stopping.Load() || ctx.Err() != nil {
				return nil
			}
			q.process(ctx, t, opts)
			return nil
		})
	}
	_ = g.Wait()

	phase := models.PhaseCompleted
	if q.stopping.Load() || ctx.Err() != nil {
		phase = models.PhaseStopped
	}
	sum := q.finish(phase)
	log.Info().Str("phase", string(sum.Phase)).
		Int("completed", sum.Completed).Int("failed", sum.Failed).Int("found", sum.Found).
		Dur("duration", sum.Duration).Msg("批量查找结束")
	return sum, nil
}

func (q *QueueProcessor) rotate(ctx context.Context, r Rotator, log zerolog.Logger) {
	if r == nil {
		return
	}
	if err := r.Rotate(ctx); err != nil {
		log.Warn().Err(err).Msg("出口切换失败,继续使用当前出口")
	}
}

// process 处理单个目标并更新计数
func (q *QueueProcessor) process(ctx context.Context, t models.BusinessTarget, opts models.FindOptions) {
	res, err := q.finder.FindEmail(ctx, t, opts)

	rec := models.TaskRecord{
		Target:      t,
		Status:      models.TaskStatusCompleted,
		Result:      res,
		ProcessedAt: time.Now(),
	}
	if err != nil {
		rec.Status = models.TaskStatusFailed
		rec.Error = err.Error()
	}

	q.mu.Lock()
	if err != nil {
		q.state.Failed++
	} else {
		q.state.Completed++
		if res.Found() {
			q.state.Found++
		}
	}
	q.records = append(q.records, rec)
	state := q.state
	fn := q.progress
	q.mu.Unlock()

	if fn != nil {
		fn(state, rec)
	}
}

func (q *QueueProcessor) finish(phase models.QueuePhase) models.Summary {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	q.state.IsRunning = false
	q.state.Phase = phase
	q.state.StoppedAt = &now
	return models.SummaryOf(q.state)
}

// Stop 停止派发新目标,进行中的目标照常完成或超时
// 返回调用时的计数,批次结束后阶段为stopped
func (q *QueueProcessor) Stop() models.Summary {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state.IsRunning {
		q.stopping.Store(true)
		q.state.Phase = models.PhaseStopped
		logger := utils.Component("queue")
		logger.Info().Str("batch", q.state.BatchID).Int("in_flight", q.state.Remaining()).Msg("收到停止请求,不再派发新目标")
	}
	return models.SummaryOf(q.state)
}

// Status 当前状态快照,任何时候都可调用
func (q *QueueProcessor) Status() models.QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Records 当前批次的处理记录
func (q *QueueProcessor) Records() []models.TaskRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.TaskRecord(nil), q.records...)
}

// Handle 单个目标查找的句柄
type Handle struct {
	ID     string
	Target models.BusinessTarget

	done   chan struct{}
	result models.ExtractionResult
	err    error
}

// Done 查找结束时关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait 等待查找结果,ctx先结束时返回ctx的错误
func (h *Handle) Wait(ctx context.Context) (models.ExtractionResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return models.ExtractionResult{Source: models.SourceNone}, ctx.Err()
	}
}

// Submit 异步查找单个目标,与批次共享浏览器池
func (q *QueueProcessor) Submit(ctx context.Context, target models.BusinessTarget, opts models.FindOptions) *Handle {
	h := &Handle{
		ID:     uuid.NewString(),
		Target: target,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		h.result, h.err = q.finder.FindEmail(ctx, target, opts)
	}()
	return h
}
