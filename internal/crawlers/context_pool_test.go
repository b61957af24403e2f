package crawlers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/crawlers/crawlerstest"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

func newPool(t *testing.T, size int) (*crawlers.ContextPool, *crawlerstest.Engine) {
	t.Helper()
	engine := crawlerstest.NewEngine(nil)
	pool := crawlers.NewContextPool(engine)
	if err := pool.Initialize(context.Background(), size); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	t.Cleanup(func() { _ = pool.Shutdown() })
	return pool, engine
}

func TestContextPoolInitialize(t *testing.T) {
	t.Run("创建指定数量的上下文", func(t *testing.T) {
		pool, engine := newPool(t, 3)
		if pool.Size() != 3 || pool.Available() != 3 {
			t.Errorf("期望大小3可用3, 实际 %d/%d", pool.Size(), pool.Available())
		}
		if engine.Created() != 3 {
			t.Errorf("期望创建3个上下文, 实际 %d", engine.Created())
		}
	})

	t.Run("部分失败时缩小池", func(t *testing.T) {
		engine := crawlerstest.NewEngine(nil)
		engine.FailCreate.Store(1)
		pool := crawlers.NewContextPool(engine)
		defer pool.Shutdown()

		if err := pool.Initialize(context.Background(), 3); err != nil {
			t.Fatalf("部分失败不应返回错误: %v", err)
		}
		if pool.Size() != 2 {
			t.Errorf("期望池大小2, 实际 %d", pool.Size())
		}
	})

	t.Run("全部失败返回ErrBrowserUnavailable", func(t *testing.T) {
		engine := crawlerstest.NewEngine(nil)
		engine.FailCreate.Store(5)
		pool := crawlers.NewContextPool(engine)

		err := pool.Initialize(context.Background(), 2)
		if !errors.Is(err, models.ErrBrowserUnavailable) {
			t.Errorf("期望ErrBrowserUnavailable, 实际 %v", err)
		}
	})

	t.Run("大小必须为正", func(t *testing.T) {
		pool := crawlers.NewContextPool(crawlerstest.NewEngine(nil))
		if err := pool.Initialize(context.Background(), 0); err == nil {
			t.Error("大小为0应返回错误")
		}
	})
}

func TestContextPoolAcquireBlocks(t *testing.T) {
	pool, _ := newPool(t, 2)

	a, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.Index == b.Index {
		t.Fatal("两次借出了同一个槽位")
	}

	// 第N+1次借出阻塞直到超时
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx); !errors.Is(err, models.ErrPoolExhausted) {
		t.Errorf("期望ErrPoolExhausted, 实际 %v", err)
	}

	// 归还后阻塞的借出方被唤醒
	got := make(chan *crawlers.Slot, 1)
	go func() {
		s, err := pool.Acquire(context.Background())
		if err == nil {
			got <- s
		}
	}()

	time.Sleep(20 * time.Millisecond)
	pool.Release(a)

	select {
	case s := <-got:
		if s.Index != a.Index {
			t.Errorf("期望借出槽位%d, 实际 %d", a.Index, s.Index)
		}
		pool.Release(s)
	case <-time.After(time.Second):
		t.Fatal("归还后借出方未被唤醒")
	}
	pool.Release(b)
}

func TestContextPoolLRU(t *testing.T) {
	pool, _ := newPool(t, 3)

	// 依次借出并归还: 0最早归还,因此下一次应借出0
	var slots []*crawlers.Slot
	for i := 0; i < 3; i++ {
		s, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		slots = append(slots, s)
	}
	for _, s := range slots {
		pool.Release(s)
		time.Sleep(2 * time.Millisecond)
	}

	s, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Index != slots[0].Index {
		t.Errorf("期望借出最久未使用的槽位%d, 实际 %d", slots[0].Index, s.Index)
	}
	pool.Release(s)
}

func TestContextPoolDoubleRelease(t *testing.T) {
	pool, _ := newPool(t, 1)

	s, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	pool.Release(s)
	pool.Release(s)

	if pool.Available() != 1 {
		t.Errorf("重复归还后可用数应为1, 实际 %d", pool.Available())
	}

	// 令牌数不能超过槽位数: 借出一次后再借应阻塞
	s, _ = pool.Acquire(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx); !errors.Is(err, models.ErrPoolExhausted) {
		t.Errorf("期望ErrPoolExhausted, 实际 %v", err)
	}
	pool.Release(s)
}

func TestContextPoolReplace(t *testing.T) {
	pool, engine := newPool(t, 2)

	s, _ := pool.Acquire(context.Background())
	old := s.Context()

	if err := pool.Replace(context.Background(), s.Index); err != nil {
		t.Fatalf("替换失败: %v", err)
	}
	if pool.Size() != 2 {
		t.Errorf("替换后池大小应保持2, 实际 %d", pool.Size())
	}
	if s.Context() == old {
		t.Error("替换后上下文未改变")
	}
	if !old.(*crawlerstest.Context).IsClosed() {
		t.Error("旧上下文未关闭")
	}
	if !s.Healthy() {
		t.Error("替换后槽位应为健康")
	}
	if engine.Created() != 3 {
		t.Errorf("期望共创建3个上下文, 实际 %d", engine.Created())
	}

	t.Run("重建失败保持不健康", func(t *testing.T) {
		engine.FailCreate.Store(1)
		if err := pool.Replace(context.Background(), s.Index); err == nil {
			t.Fatal("期望重建失败")
		}
		if s.Healthy() {
			t.Error("重建失败后槽位应不健康")
		}
		if _, err := s.Context().Navigate(context.Background(), "https://acme.com"); !errors.Is(err, models.ErrContextCorrupted) {
			t.Errorf("占位上下文应返回ErrContextCorrupted, 实际 %v", err)
		}
		if pool.Size() != 2 {
			t.Errorf("池大小应保持2, 实际 %d", pool.Size())
		}
	})

	if err := pool.Replace(context.Background(), 99); err == nil {
		t.Error("越界索引应返回错误")
	}
	pool.Release(s)
	if got := pool.Stats().Replaced; got != 1 {
		t.Errorf("期望替换计数1, 实际 %d", got)
	}
}

func TestContextPoolShutdown(t *testing.T) {
	pool, engine := newPool(t, 2)

	s, _ := pool.Acquire(context.Background())

	// 阻塞中的借出方在关闭时返回ErrPoolClosed
	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 一个借到剩余的槽位,另一个阻塞
			if _, err := pool.Acquire(context.Background()); err != nil {
				errCh <- err
			}
		}()
	}

	time.Sleep(30 * time.Millisecond)
	if err := pool.Shutdown(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	if err := pool.Shutdown(); err != nil {
		t.Fatalf("重复关闭应幂等: %v", err)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], models.ErrPoolClosed) {
		t.Errorf("期望一个借出方收到ErrPoolClosed, 实际 %v", errs)
	}

	if !engine.Closed() {
		t.Error("引擎未关闭")
	}
	for _, c := range engine.Contexts() {
		if !c.IsClosed() {
			t.Errorf("上下文%d未关闭", c.ID)
		}
	}

	// 关闭后归还不阻塞
	pool.Release(s)

	if _, err := pool.Acquire(context.Background()); !errors.Is(err, models.ErrPoolClosed) {
		t.Errorf("关闭后借出应返回ErrPoolClosed, 实际 %v", err)
	}
	if !pool.Closed() {
		t.Error("Closed()应为true")
	}
}
