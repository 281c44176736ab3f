package store

import (
	"github.com/peek4c/peek4c/model"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

// AddToHistory persists post (when it has media) and records it as viewed
// now. Viewing again only moves the timestamp.
func (s *Store) AddToHistory(post *model.Post) error {
	s.SaveThreads([]*model.Post{post})
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "no"}, {Name: "board"}},
		DoUpdates: clause.AssignmentColumns([]string{"resto", "timestamp"}),
	}).Create(&model.HistoryEntry{
		No:        post.No,
		Board:     post.Board,
		Resto:     post.Resto,
		Timestamp: s.nowMillis(),
	}).Error
	return errors.Wrapf(err, "add %s to history", post)
}

// GetViewedPosts returns the viewed post numbers of thread threadNo, the OP
// included.
func (s *Store) GetViewedPosts(board string, threadNo int64) (map[int64]bool, error) {
	var nos []int64
	err := s.db.Model(&model.HistoryEntry{}).
		Where("board = ? AND (no = ? OR resto = ?)", board, threadNo, threadNo).
		Pluck("no", &nos).Error
	if err != nil {
		return nil, errors.Wrapf(err, "viewed posts of /%s/%d", board, threadNo)
	}
	viewed := make(map[int64]bool, len(nos))
	for _, no := range nos {
		viewed[no] = true
	}
	return viewed, nil
}

// GetHistory pages viewed posts, most recent view first. opOnly keeps thread
// starters only and a non-empty board restricts to that board.
func (s *Store) GetHistory(limit, offset int, opOnly bool, board string) ([]*model.Post, error) {
	q := s.db.Table("history AS h").
		Select("t.*").
		Joins("JOIN threads t ON t.board = h.board AND t.no = h.no")
	if opOnly {
		q = q.Where("t.resto = ?", 0)
	}
	if board != "" {
		q = q.Where("h.board = ?", board)
	}
	var rows []model.ThreadRow
	if err := q.Order("h.timestamp DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "get history")
	}
	posts := decodeRows(rows)
	return posts, s.HydrateOPs(posts)
}

type BoardCount struct {
	Board string `json:"board"`
	Count int64  `json:"count"`
}

// GetHistoryBoards ranks boards by how many threads the viewer has opened.
func (s *Store) GetHistoryBoards(limit int) ([]BoardCount, error) {
	var res []BoardCount
	err := s.db.Table("history AS h").
		Select("h.board AS board, COUNT(*) AS count").
		Joins("JOIN threads t ON t.board = h.board AND t.no = h.no").
		Where("t.resto = ?", 0).
		Group("h.board").
		Order("count DESC, board ASC").
		Limit(limit).
		Scan(&res).Error
	return res, errors.Wrap(err, "get history boards")
}

// FilterHistoryNos returns the subset of nos on board that is in history.
func (s *Store) FilterHistoryNos(board string, nos []int64) ([]int64, error) {
	if len(nos) == 0 {
		return nil, nil
	}
	var seen []int64
	err := s.db.Model(&model.HistoryEntry{}).
		Where("board = ? AND no IN ?", board, nos).
		Pluck("no", &seen).Error
	return seen, errors.Wrap(err, "filter history nos")
}

func (s *Store) ClearHistory() error {
	return errors.Wrap(s.db.Exec("DELETE FROM history").Error, "clear history")
}
