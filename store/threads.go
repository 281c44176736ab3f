package store

import (
	"github.com/peek4c/peek4c/model"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

// Columns a refresh may overwrite. blocked and last_fetched are local state.
var threadUpsertColumns = []string{"resto", "time", "is_op", "data"}

// SaveThreads upserts posts keyed by (board, no) and returns how many rows
// were written.
//
// Posts without media are never persisted. A post without a primary key, or a
// row the database rejects, is logged and skipped so one bad post never fails
// the batch. Existing rows keep their blocked flag and last_fetched stamp.
func (s *Store) SaveThreads(posts []*model.Post) int {
	saved := 0
	for _, p := range posts {
		if p == nil || !p.HasMedia() {
			continue
		}
		row, err := model.NewThreadRow(p)
		if err != nil {
			Logger.Log.WithError(err).Warn("skipping post without primary key")
			continue
		}
		if err := s.upsertThreadRow(row); err != nil {
			Logger.Log.WithError(err).WithField("post", p.String()).Error("cannot save post")
			continue
		}
		saved++
	}
	return saved
}

func (s *Store) upsertThreadRow(row *model.ThreadRow) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "no"}, {Name: "board"}},
		DoUpdates: clause.AssignmentColumns(threadUpsertColumns),
	}).Create(row).Error
}

// GetPost returns the stored post, or ErrNotFound.
func (s *Store) GetPost(board string, no int64) (*model.Post, error) {
	var row model.ThreadRow
	if err := s.db.Where("board = ? AND no = ?", board, no).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.Post()
}

// GetThreadItems returns the OP and every stored reply of thread no, oldest
// first.
func (s *Store) GetThreadItems(board string, no int64) ([]*model.Post, error) {
	var rows []model.ThreadRow
	err := s.db.
		Where("board = ? AND (no = ? OR resto = ?)", board, no, no).
		Order("time ASC, no ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "get thread /%s/%d", board, no)
	}
	return decodeRows(rows), nil
}

// GetThreadItemsWithHistory is GetThreadItems plus the set of post numbers in
// the thread the viewer has already seen.
func (s *Store) GetThreadItemsWithHistory(board string, no int64) ([]*model.Post, map[int64]bool, error) {
	posts, err := s.GetThreadItems(board, no)
	if err != nil {
		return nil, nil, err
	}
	viewed, err := s.GetViewedPosts(board, no)
	if err != nil {
		return nil, nil, err
	}
	return posts, viewed, nil
}

// UpdateThreadLastFetched stamps the OP row of thread no with the current
// time. Reply rows are never stamped.
func (s *Store) UpdateThreadLastFetched(board string, no int64) error {
	err := s.db.Model(&model.ThreadRow{}).
		Where("board = ? AND no = ? AND resto = ?", board, no, 0).
		Update("last_fetched", s.nowMillis()).Error
	return errors.Wrapf(err, "update last_fetched /%s/%d", board, no)
}

// CountThreadRows counts the OP plus replies stored for thread no.
func (s *Store) CountThreadRows(board string, no int64) (int64, error) {
	var n int64
	err := s.db.Model(&model.ThreadRow{}).
		Where("board = ? AND (no = ? OR resto = ?)", board, no, no).
		Count(&n).Error
	return n, errors.Wrapf(err, "count thread /%s/%d", board, no)
}

// IsThreadFullyLoaded reports whether any reply of thread no is stored. A lone
// OP row comes from a catalog listing and means the replies were never
// fetched.
func (s *Store) IsThreadFullyLoaded(board string, no int64) (bool, error) {
	n, err := s.CountThreadRows(board, no)
	if err != nil {
		return false, err
	}
	return n > 1, nil
}

// HydrateOPs attaches OpThread to every reply in posts whose OP is stored,
// with one query per board.
func (s *Store) HydrateOPs(posts []*model.Post) error {
	want := map[string][]int64{}
	for _, p := range posts {
		if p.IsOP() || p.OpThread != nil {
			continue
		}
		want[p.Board] = append(want[p.Board], p.Resto)
	}
	if len(want) == 0 {
		return nil
	}

	ops := map[string]map[int64]*model.Post{}
	for board, nos := range want {
		var rows []model.ThreadRow
		if err := s.db.Where("board = ? AND no IN ?", board, nos).Find(&rows).Error; err != nil {
			return errors.Wrapf(err, "hydrate ops of /%s/", board)
		}
		byNo := make(map[int64]*model.Post, len(rows))
		for _, op := range decodeRows(rows) {
			byNo[op.No] = op
		}
		ops[board] = byNo
	}

	for _, p := range posts {
		if p.IsOP() || p.OpThread != nil {
			continue
		}
		if op, ok := ops[p.Board][p.Resto]; ok {
			p.OpThread = op
		}
	}
	return nil
}
