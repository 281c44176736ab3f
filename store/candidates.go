package store

import (
	"github.com/peek4c/peek4c/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Thread number a row belongs to: its own no for an OP, resto for a reply.
const ownerExpr = "(CASE WHEN t.resto = 0 THEN t.no ELSE t.resto END)"

// unreadPosts selects posts t whose OP row is stored and not blocked and which
// the viewer has never opened.
func (s *Store) unreadPosts() *gorm.DB {
	return s.db.Table("threads AS t").
		Select("t.*").
		Joins("JOIN threads op ON op.board = t.board AND op.no = "+ownerExpr+" AND op.blocked = ?", false).
		Joins("LEFT JOIN history h ON h.board = t.board AND h.no = t.no").
		Where("h.no IS NULL")
}

func excludeNos(q *gorm.DB, nos []int64) *gorm.DB {
	if len(nos) == 0 {
		return q
	}
	return q.Where("t.no NOT IN ?", nos)
}

func (s *Store) findCandidates(q *gorm.DB, limit int) ([]*model.Post, error) {
	var rows []model.ThreadRow
	if err := q.Order("t.time DESC, t.no DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeRows(rows), nil
}

// ListFollowedCandidates returns up to limit posts of board belonging to
// followed threads.
//
// Pre: limit > 0.
// Post: every post belongs to a followed, unblocked OP, is absent from
// history and from excludeNos. Newest first.
func (s *Store) ListFollowedCandidates(board string, limit int, exclude []int64) ([]*model.Post, error) {
	q := s.unreadPosts().
		Joins("JOIN following f ON f.board = t.board AND f.no = "+ownerExpr).
		Where("t.board = ?", board)
	posts, err := s.findCandidates(excludeNos(q, exclude), limit)
	return posts, errors.Wrapf(err, "list followed candidates of /%s/", board)
}

// ListOtherCandidates returns up to limit posts of board belonging to threads
// that are not followed.
//
// Pre: limit > 0.
// Post: every post belongs to an unfollowed, unblocked OP, is absent from
// history and from excludeNos. Newest first.
func (s *Store) ListOtherCandidates(board string, limit int, exclude []int64) ([]*model.Post, error) {
	q := s.unreadPosts().
		Joins("LEFT JOIN following f ON f.board = t.board AND f.no = "+ownerExpr).
		Where("t.board = ? AND f.no IS NULL", board)
	posts, err := s.findCandidates(excludeNos(q, exclude), limit)
	return posts, errors.Wrapf(err, "list other candidates of /%s/", board)
}

// ListFollowedUnread is ListFollowedCandidates across every board. With
// safeOnly, only work-safe boards and boards missing from the boards cache
// qualify.
//
// Pre: limit > 0.
// Post: newest first, OpThread hydrated on replies.
func (s *Store) ListFollowedUnread(safeOnly bool, limit int, exclude []int64) ([]*model.Post, error) {
	q := s.unreadPosts().
		Joins("JOIN following f ON f.board = t.board AND f.no = " + ownerExpr)
	if safeOnly {
		q = q.Joins("LEFT JOIN boards b ON b.board = t.board").
			Where("(b.board IS NULL OR b.ws_board = ?)", 1)
	}
	posts, err := s.findCandidates(excludeNos(q, exclude), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list followed unread")
	}
	return posts, s.HydrateOPs(posts)
}

// ListFollowedNeedingUpdate returns followed OPs whose last_fetched is older
// than staleBefore (unix millis), most recently followed first. LastFetched is
// filled on every result.
func (s *Store) ListFollowedNeedingUpdate(staleBefore int64) ([]*model.Post, error) {
	var rows []model.ThreadRow
	err := s.db.Table("following AS f").
		Select("t.*").
		Joins("JOIN threads t ON t.board = f.board AND t.no = f.no").
		Where("t.last_fetched < ?", staleBefore).
		Order("f.timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list followed needing update")
	}
	return decodeRows(rows), nil
}
