// Package crawlers 提供邮箱查找用到的浏览器和HTTP抓取基础设施
//
// # 核心组件
//
// ## Engine / BrowserContext
//
// 浏览器引擎的抽象。RodEngine基于go-rod实现,每个BrowserContext是一个独立的
// 隐身浏览器上下文(独立的cookie和缓存),可选启用stealth脚本和自定义请求头。
// 测试使用crawlerstest包中的假引擎。
//
// ## ContextPool (浏览器上下文池)
//
// 启动时预热固定数量的上下文,Acquire按最久未使用(LRU)选择空闲槽位,
// 无空闲槽位时阻塞到有槽位归还或ctx结束。池关闭后Acquire返回ErrPoolClosed。
//
//	pool := NewContextPool(engine)
//	if err := pool.Initialize(ctx, 3); err != nil { /* 一个都没创建成功 */ }
//	defer pool.Shutdown()
//
//	slot, err := pool.Acquire(ctx)
//	if err != nil { /* 处理错误 */ }
//	defer pool.Release(slot)
//
// ## RecoveryManager (恢复管理器)
//
// 注册为池的借出钩子:不健康或空闲超过staleAfter的槽位在借出前先做健康检查
// (about:blank + 执行1+1),失败时替换上下文。Recover也可由调用方直接触发。
//
// ## ResourceMonitor (资源监控器)
//
// 按系统可用内存和CPU负载估算可同时运行的上下文数量,用于下调池大小。
//
// ## StaticFetcher / URLQueue / URLExtractor
//
// StaticFetcher用于sitemap等无需渲染的HTTP抓取。URLQueue是站内爬取的优先队列,
// 联系页类链接优先出队;URLExtractor从HTML中提取同站链接并打分入队。
//
// # 并发安全
//
//   - ContextPool: 令牌channel + sync.Mutex,每个槽位同一时间只借给一个调用方
//   - ResourceMonitor: 结果缓存由sync.Mutex保护
//   - URLQueue: sync.Mutex,单次查找内使用
package crawlers
