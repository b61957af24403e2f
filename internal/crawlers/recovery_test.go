package crawlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/crawlers"
	"github.com/RecoveryAshes/EmailFinder/internal/crawlers/crawlerstest"
)

func TestRecoveryCheckHealth(t *testing.T) {
	pool, _ := newPool(t, 1)
	rm := crawlers.NewRecoveryManager(pool, time.Hour)

	if !rm.CheckHealth(context.Background(), 0) {
		t.Error("新建的上下文应通过健康检查")
	}
	if rm.CheckHealth(context.Background(), 5) {
		t.Error("不存在的槽位不应通过健康检查")
	}

	s, _ := pool.Acquire(context.Background())
	s.Context().(*crawlerstest.Context).Corrupt()
	if rm.CheckHealth(context.Background(), s.Index) {
		t.Error("损坏的上下文不应通过健康检查")
	}
	pool.Release(s)
}

func TestRecoveryRecover(t *testing.T) {
	pool, engine := newPool(t, 2)
	rm := crawlers.NewRecoveryManager(pool, time.Hour)

	s, _ := pool.Acquire(context.Background())
	s.Context().(*crawlerstest.Context).Corrupt()

	if !rm.Recover(context.Background(), s.Index) {
		t.Fatal("恢复失败")
	}
	if !s.Healthy() {
		t.Error("恢复后应为健康")
	}
	if engine.Created() != 3 {
		t.Errorf("期望共创建3个上下文, 实际 %d", engine.Created())
	}
	if pool.Size() != 2 {
		t.Errorf("恢复后池大小应保持2, 实际 %d", pool.Size())
	}

	t.Run("重建失败", func(t *testing.T) {
		engine.FailCreate.Store(1)
		if rm.Recover(context.Background(), s.Index) {
			t.Error("重建失败时应返回false")
		}
		if s.Healthy() {
			t.Error("重建失败后应为不健康")
		}
	})
	pool.Release(s)
}

func TestRecoveryBeforeLease(t *testing.T) {
	t.Run("不健康的槽位借出前被修复", func(t *testing.T) {
		pool, engine := newPool(t, 1)
		crawlers.NewRecoveryManager(pool, time.Hour)

		s, _ := pool.Acquire(context.Background())
		s.Context().(*crawlerstest.Context).Corrupt()
		pool.MarkUnhealthy(s)
		pool.Release(s)

		s, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer pool.Release(s)

		if !s.Healthy() {
			t.Error("借出的槽位应为健康")
		}
		if engine.Created() != 2 {
			t.Errorf("期望重建一次, 共创建 %d", engine.Created())
		}
		if _, err := s.Context().Navigate(context.Background(), "https://acme.com"); err != nil {
			t.Errorf("修复后的上下文不可用: %v", err)
		}
	})

	t.Run("空闲过久的健康槽位只做检查", func(t *testing.T) {
		pool, engine := newPool(t, 1)
		crawlers.NewRecoveryManager(pool, time.Millisecond)

		time.Sleep(5 * time.Millisecond)
		s, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer pool.Release(s)

		if engine.Created() != 1 {
			t.Errorf("健康的槽位不应被重建, 共创建 %d", engine.Created())
		}
	})

	t.Run("空闲过久且已损坏的槽位被重建", func(t *testing.T) {
		pool, engine := newPool(t, 1)
		crawlers.NewRecoveryManager(pool, time.Millisecond)

		engine.Contexts()[0].Corrupt()
		time.Sleep(5 * time.Millisecond)

		s, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer pool.Release(s)

		if engine.Created() != 2 {
			t.Errorf("期望重建一次, 共创建 %d", engine.Created())
		}
	})
}
