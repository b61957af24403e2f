package models

import (
	"encoding/json"
	"time"
)

// BatchReport 批处理报告
type BatchReport struct {
	// 批次信息
	BatchID string `json:"batch_id"`
	Source  string `json:"source"` // database / file / cli

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Summary Summary `json:"summary"`

	// 按来源统计找到的邮箱
	BySource map[EmailSource]int `json:"by_source"`

	// 每个目标的处理记录
	Records []TaskRecord `json:"records"`

	// 配置快照
	Options FindOptions `json:"options"`
}

// NewBatchReport 创建空报告
func NewBatchReport(source string, opts FindOptions) *BatchReport {
	return &BatchReport{
		BatchID:   NewBatchID(),
		Source:    source,
		StartTime: time.Now(),
		BySource:  make(map[EmailSource]int),
		Options:   opts,
	}
}

// Add 追加一条处理记录
func (r *BatchReport) Add(rec TaskRecord) {
	r.Records = append(r.Records, rec)
	if rec.Result.Found() {
		r.BySource[rec.Result.Source]++
	}
}

// Finish 填写结束时间与汇总
func (r *BatchReport) Finish(sum Summary) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime).Seconds()
	r.Summary = sum
}

// FailedRecords 返回失败的记录
func (r *BatchReport) FailedRecords() []TaskRecord {
	var failed []TaskRecord
	for _, rec := range r.Records {
		if rec.Status == TaskStatusFailed {
			failed = append(failed, rec)
		}
	}
	return failed
}

// ToJSON 序列化为JSON
func (r *BatchReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *BatchReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
