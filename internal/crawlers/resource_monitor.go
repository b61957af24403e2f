package crawlers

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 根据可用内存和CPU计算浏览器上下文的上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 采样函数,测试时可替换
	availableMemory func() (uint64, error)
	cpuPercent      func() (float64, error)

	// 缓存的CalculateMaxContexts结果
	cachedMax     int
	lastCacheTime time.Time
	cacheMu       sync.Mutex
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	ContextMemoryUsage  int64 // 单个上下文平均内存消耗(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200视为禁用
	MaxContextsLimit    int   // 绝对最大上下文数
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * 1024 * 1024, // 1GB
		ContextMemoryUsage:  150 * 1024 * 1024,  // 150MB
		CPULoadThreshold:    90,
		MaxContextsLimit:    16,
	}
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory uint64 // 可用内存(字节)
	SafetyReserve   int64  // 安全保留内存(字节)
	MemoryPressure  string // 内存压力等级
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	def := DefaultResourceMonitorConfig()
	if config.ContextMemoryUsage <= 0 {
		config.ContextMemoryUsage = def.ContextMemoryUsage
	}
	if config.MaxContextsLimit <= 0 {
		config.MaxContextsLimit = def.MaxContextsLimit
	}
	if config.CPULoadThreshold <= 0 {
		config.CPULoadThreshold = def.CPULoadThreshold
	}

	return &ResourceMonitor{
		config:          config,
		availableMemory: systemAvailableMemory,
		cpuPercent:      systemCPUPercent,
	}
}

// systemAvailableMemory 使用gopsutil获取系统可用内存
func systemAvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// systemCPUPercent 获取所有核心的平均CPU使用率
// 100毫秒采样间隔,避免阻塞过久
func systemCPUPercent() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("CPU使用率数据为空")
	}
	return percentages[0], nil
}

// CalculateMaxContexts 计算当前主机能承载的浏览器上下文上限
// 结果缓存1秒
func (rm *ResourceMonitor) CalculateMaxContexts() int {
	rm.cacheMu.Lock()
	defer rm.cacheMu.Unlock()

	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedMax > 0 {
		return rm.cachedMax
	}

	maxByMemory := rm.config.MaxContextsLimit
	available, err := rm.availableMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,仅按CPU核数限制")
	} else {
		surplus := int64(available) - rm.config.SafetyReserveMemory
		maxByMemory = int(surplus / rm.config.ContextMemoryUsage)
	}

	// 每个上下文至少需要半个核心
	maxByCPU := runtime.NumCPU() * 2

	result := maxByMemory
	if maxByCPU < result {
		result = maxByCPU
	}
	if rm.config.MaxContextsLimit < result {
		result = rm.config.MaxContextsLimit
	}
	if result < 1 {
		result = 1
	}

	rm.cachedMax = result
	rm.lastCacheTime = time.Now()
	return result
}

// CapPoolSize 将请求的并发数限制在主机可承载的范围内
func (rm *ResourceMonitor) CapPoolSize(requested int) int {
	limit := rm.CalculateMaxContexts()
	if requested > limit {
		log.Warn().Int("requested", requested).Int("limit", limit).Msg("并发数超过主机可承载的上限,已自动下调")
		return limit
	}
	return requested
}

// CheckResourceAvailability 检查当前资源是否允许启动新的批次
// 返回ok(是否允许)和reason(不允许时的原因)
func (rm *ResourceMonitor) CheckResourceAvailability() (ok bool, reason string) {
	available, err := rm.availableMemory()
	if err == nil && int64(available) < rm.config.SafetyReserveMemory {
		return false, fmt.Sprintf("内存不足(当前%dMB)", available/(1024*1024))
	}

	if rm.config.CPULoadThreshold < 200 {
		usage, err := rm.cpuPercent()
		if err == nil && usage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
		}
	}

	return true, ""
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	status := MemoryStatus{SafetyReserve: rm.config.SafetyReserveMemory, MemoryPressure: "unknown"}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败")
		return status
	}
	status.TotalMemory = vm.Total
	status.AvailableMemory = vm.Available

	availableMB := vm.Available / (1024 * 1024)
	switch {
	case availableMB < 200:
		status.MemoryPressure = "emergency"
	case availableMB < 300:
		status.MemoryPressure = "critical"
	case availableMB < 500:
		status.MemoryPressure = "warning"
	default:
		status.MemoryPressure = "normal"
	}
	return status
}
