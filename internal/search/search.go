package search

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"EventGate/internal/model"
)

// Searcher 人工兜底查找：扫码失败时工作人员按姓名/邮箱/注册码检索参会者
type Searcher struct {
	db         *gorm.DB
	maxResults int
}

func NewSearcher(db *gorm.DB, maxResults int) *Searcher {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &Searcher{db: db, maxResults: maxResults}
}

// Search 在活动范围内对姓名、邮箱、公司和注册码做大小写不敏感的子串匹配。
// 空查询直接返回空集，不会把整张名单拉出来
func (s *Searcher) Search(ctx context.Context, eventID int64, query string, statusFilter model.AttendeeStatus, limit int) ([]model.Attendee, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Attendee{}, nil
	}

	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	tx := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Where(
			`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(company) LIKE ? ESCAPE '\' OR LOWER(registration_code) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern, pattern,
		)
	if statusFilter != "" {
		tx = tx.Where("status = ?", statusFilter)
	}

	var attendees []model.Attendee
	err := tx.
		Order("name ASC, id ASC").
		Limit(limit).
		Find(&attendees).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search attendees: %w", err)
	}

	return attendees, nil
}

// escapeLike 转义 LIKE 通配符，用户输入的 % 和 _ 按字面匹配
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
