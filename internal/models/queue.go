package models

import "time"

// URLItem 表示爬取队列中的一个URL项
type URLItem struct {
	// URL 完整的URL字符串
	URL string

	// Depth URL的深度层级
	//   - 0: 入口URL
	//   - 1: 从入口页面发现的链接
	//   - 以此类推...
	Depth int

	// Priority 联系页关键词得分,越高越先访问
	Priority int

	// SourceURL 发现此URL的源页面(可选,用于调试)
	SourceURL string
}

// QueuePhase 批处理队列所处阶段
type QueuePhase string

const (
	PhaseIdle      QueuePhase = "idle"
	PhaseRunning   QueuePhase = "running"
	PhaseCompleted QueuePhase = "completed"
	PhaseStopped   QueuePhase = "stopped"
	PhaseFailed    QueuePhase = "failed"
)

// QueueState 批处理队列状态快照
// 每个EmailFinderService同一时刻只有一个活动批次
type QueueState struct {
	BatchID   string     `json:"batch_id,omitempty"`
	IsRunning bool       `json:"is_running"`
	Phase     QueuePhase `json:"phase"`
	Total     int        `json:"total"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Found     int        `json:"found"` // Completed中找到邮箱的数量
	StartedAt *time.Time `json:"started_at,omitempty"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// Processed 已处理的目标数
func (s QueueState) Processed() int {
	return s.Completed + s.Failed
}

// Remaining 剩余未处理的目标数
func (s QueueState) Remaining() int {
	if r := s.Total - s.Processed(); r > 0 {
		return r
	}
	return 0
}

// Summary 批次结束时的汇总
type Summary struct {
	BatchID   string        `json:"batch_id"`
	Phase     QueuePhase    `json:"phase"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Found     int           `json:"found"`
	Duration  time.Duration `json:"duration"`
}

// SummaryOf 由队列状态生成汇总
func SummaryOf(s QueueState) Summary {
	sum := Summary{
		BatchID:   s.BatchID,
		Phase:     s.Phase,
		Total:     s.Total,
		Completed: s.Completed,
		Failed:    s.Failed,
		Found:     s.Found,
	}
	if s.StartedAt != nil {
		end := time.Now()
		if s.StoppedAt != nil {
			end = *s.StoppedAt
		}
		sum.Duration = end.Sub(*s.StartedAt)
	}
	return sum
}
