// Package store 封装业务记录表上的查询
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/EmailFinder/internal/database"
	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/rs/zerolog/log"
)

// Business 一条业务记录
type Business struct {
	ID             int64
	Name           string
	Website        string
	Domain         string
	Email          string
	EmailSource    string
	EmailUpdatedAt string
}

// BusinessStore 业务记录的读写
type BusinessStore struct {
	db database.DB
}

// NewBusinessStore 创建业务记录存储
func NewBusinessStore(db database.DB) *BusinessStore {
	return &BusinessStore{db: db}
}

// CurrentEmail 返回记录当前的邮箱,记录不存在时返回空字符串
func (s *BusinessStore) CurrentEmail(ctx context.Context, businessID int64) (string, error) {
	row, err := s.db.GetOne(ctx, "SELECT email FROM businesses WHERE id = ?", businessID)
	if err != nil {
		return "", fmt.Errorf("查询业务记录%d失败: %w", businessID, err)
	}
	if row == nil {
		return "", nil
	}
	return row.String("email"), nil
}

// SaveEmail 写入发现的邮箱,返回是否实际写入
// 新邮箱为空时不写;已有邮箱与新邮箱相同时不写,已有的非空邮箱不会被空值覆盖
func (s *BusinessStore) SaveEmail(ctx context.Context, businessID int64, email string, source models.EmailSource) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}

	n, err := s.db.Query(ctx,
		`UPDATE businesses SET email = ?, email_source = ?, email_updated_at = ?
		 WHERE id = ? AND (email IS NULL OR email = '' OR LOWER(email) <> LOWER(?))`,
		email, string(source), time.Now().UTC(), businessID, email)
	if err != nil {
		return false, fmt.Errorf("保存业务记录%d的邮箱失败: %w", businessID, err)
	}
	if n > 0 {
		log.Debug().Int64("business_id", businessID).Str("source", string(source)).Msg("邮箱已写入业务记录")
	}
	return n > 0, nil
}

// PropagateEmail 把邮箱填到同域名下邮箱为空的其他记录,返回更新数量
func (s *BusinessStore) PropagateEmail(ctx context.Context, domain, email string, source models.EmailSource, excludeID int64) (int64, error) {
	if domain == "" || email == "" {
		return 0, nil
	}
	n, err := s.db.Query(ctx,
		`UPDATE businesses SET email = ?, email_source = ?, email_updated_at = ?
		 WHERE domain = ? AND id <> ? AND (email IS NULL OR email = '')`,
		email, string(source), time.Now().UTC(), strings.ToLower(domain), excludeID)
	if err != nil {
		return 0, fmt.Errorf("同域名邮箱传播失败(%s): %w", domain, err)
	}
	return n, nil
}

// PendingTargets 返回尚无邮箱的记录,domainFilter为空时不过滤
// limit<=0时不限制数量
func (s *BusinessStore) PendingTargets(ctx context.Context, limit int, domainFilter string) ([]models.BusinessTarget, error) {
	query := `SELECT id, website FROM businesses
		WHERE (email IS NULL OR email = '') AND website <> ''`
	var args []any
	if domainFilter != "" {
		query += " AND domain LIKE ?"
		args = append(args, "%"+strings.ToLower(domainFilter)+"%")
	}
	query += " ORDER BY id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.GetMany(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询待处理记录失败: %w", err)
	}

	targets := make([]models.BusinessTarget, 0, len(rows))
	for _, row := range rows {
		id, _ := row.Int64("id")
		target, err := models.NewBusinessTarget(&id, row.String("website"))
		if err != nil {
			log.Warn().Err(err).Int64("business_id", id).Msg("业务记录的网站地址无效,已跳过")
			continue
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// ExportRows 返回所有记录,按ID排序
func (s *BusinessStore) ExportRows(ctx context.Context) ([]Business, error) {
	rows, err := s.db.GetMany(ctx,
		`SELECT id, name, website, domain, email, email_source, email_updated_at FROM businesses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("导出业务记录失败: %w", err)
	}

	out := make([]Business, 0, len(rows))
	for _, row := range rows {
		id, _ := row.Int64("id")
		out = append(out, Business{
			ID:             id,
			Name:           row.String("name"),
			Website:        row.String("website"),
			Domain:         row.String("domain"),
			Email:          row.String("email"),
			EmailSource:    row.String("email_source"),
			EmailUpdatedAt: row.String("email_updated_at"),
		})
	}
	return out, nil
}

// Insert 新增一条记录(CLI导入和测试使用)
func (s *BusinessStore) Insert(ctx context.Context, name, website string) error {
	target, err := models.NewBusinessTarget(nil, website)
	if err != nil {
		return err
	}
	_, err = s.db.Query(ctx, "INSERT INTO businesses (name, website, domain) VALUES (?, ?, ?)",
		name, target.URL, target.Domain)
	if err != nil {
		return fmt.Errorf("新增业务记录失败: %w", err)
	}
	return nil
}
