package store

import (
	"github.com/peek4c/peek4c/model"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

func (s *Store) exists(table interface{}, board string, no int64) (bool, error) {
	var n int64
	err := s.db.Model(table).Where("board = ? AND no = ?", board, no).Count(&n).Error
	return n > 0, err
}

func (s *Store) IsStarred(board string, no int64) (bool, error) {
	ok, err := s.exists(&model.Star{}, board, no)
	return ok, errors.Wrap(err, "is starred")
}

func (s *Store) AddStar(board string, no int64) error {
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Star{No: no, Board: board, Timestamp: s.nowMillis()}).Error
	return errors.Wrap(err, "add star")
}

func (s *Store) RemoveStar(board string, no int64) error {
	err := s.db.Where("board = ? AND no = ?", board, no).Delete(&model.Star{}).Error
	return errors.Wrap(err, "remove star")
}

// ListStars returns starred posts, most recent star first, OpThread hydrated.
func (s *Store) ListStars() ([]*model.Post, error) {
	var rows []model.ThreadRow
	err := s.db.Table("stars AS s").
		Select("t.*").
		Joins("JOIN threads t ON t.board = s.board AND t.no = s.no").
		Order("s.timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list stars")
	}
	posts := decodeRows(rows)
	return posts, s.HydrateOPs(posts)
}

func (s *Store) IsFollowing(board string, no int64) (bool, error) {
	ok, err := s.exists(&model.Following{}, board, no)
	return ok, errors.Wrap(err, "is following")
}

func (s *Store) AddFollowing(board string, no int64) error {
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Following{No: no, Board: board, Timestamp: s.nowMillis()}).Error
	return errors.Wrap(err, "add following")
}

// RemoveFollowing deletes the subscription and reports whether one existed.
func (s *Store) RemoveFollowing(board string, no int64) (bool, error) {
	res := s.db.Where("board = ? AND no = ?", board, no).Delete(&model.Following{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "remove following")
	}
	return res.RowsAffected > 0, nil
}

// HasFollowing reports whether any thread is followed.
func (s *Store) HasFollowing() (bool, error) {
	var n int64
	err := s.db.Model(&model.Following{}).Limit(1).Count(&n).Error
	return n > 0, errors.Wrap(err, "has following")
}

// ListFollowing returns followed OPs, most recent follow first, with
// LastFetched filled.
func (s *Store) ListFollowing() ([]*model.Post, error) {
	var rows []model.ThreadRow
	err := s.db.Table("following AS f").
		Select("t.*").
		Joins("JOIN threads t ON t.board = f.board AND t.no = f.no").
		Order("f.timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list following")
	}
	return decodeRows(rows), nil
}

// IsBlocked reads the blocked flag of an OP row. A thread never stored is not
// blocked.
func (s *Store) IsBlocked(board string, no int64) (bool, error) {
	var flags []bool
	err := s.db.Model(&model.ThreadRow{}).
		Where("board = ? AND no = ?", board, no).
		Limit(1).
		Pluck("blocked", &flags).Error
	if err != nil {
		return false, errors.Wrap(err, "is blocked")
	}
	return len(flags) > 0 && flags[0], nil
}

// SetBlocked sets the blocked flag of a stored row, ErrNotFound when the row
// does not exist.
func (s *Store) SetBlocked(board string, no int64, blocked bool) error {
	res := s.db.Model(&model.ThreadRow{}).
		Where("board = ? AND no = ?", board, no).
		Update("blocked", blocked)
	if res.Error != nil {
		return errors.Wrap(res.Error, "set blocked")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBlocked returns blocked OPs, newest thread first.
func (s *Store) ListBlocked() ([]*model.Post, error) {
	var rows []model.ThreadRow
	err := s.db.Where("blocked = ?", true).Order("time DESC").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list blocked")
	}
	return decodeRows(rows), nil
}

// FilterBlockedNos returns the subset of nos on board whose stored row is
// blocked.
func (s *Store) FilterBlockedNos(board string, nos []int64) ([]int64, error) {
	if len(nos) == 0 {
		return nil, nil
	}
	var blocked []int64
	err := s.db.Model(&model.ThreadRow{}).
		Where("board = ? AND no IN ? AND blocked = ?", board, nos, true).
		Pluck("no", &blocked).Error
	return blocked, errors.Wrap(err, "filter blocked nos")
}
