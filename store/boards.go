package store

import (
	"encoding/json"

	"github.com/peek4c/peek4c/model"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// SaveBoards upserts the remote board listing. A board that cannot be stored
// is logged and skipped.
func (s *Store) SaveBoards(boards []model.BoardInfo) int {
	saved := 0
	for _, b := range boards {
		data, err := json.Marshal(b)
		if err != nil {
			Logger.Log.WithError(err).WithField("board", b.Board).Warn("cannot marshal board")
			continue
		}
		row := model.Board{
			Board:   b.Board,
			Title:   b.Title,
			WsBoard: b.WsBoard,
			Data:    datatypes.JSON(data),
		}
		err = s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "board"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "ws_board", "data"}),
		}).Create(&row).Error
		if err != nil {
			Logger.Log.WithError(err).WithField("board", b.Board).Error("cannot save board")
			continue
		}
		saved++
	}
	return saved
}

func (s *Store) ListBoards() ([]model.BoardInfo, error) {
	var rows []model.Board
	if err := s.db.Order("board ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list boards")
	}
	res := make([]model.BoardInfo, 0, len(rows))
	for _, row := range rows {
		info, err := boardInfo(row)
		if err != nil {
			Logger.Log.WithError(err).WithField("board", row.Board).Warn("skipping undecodable board")
			continue
		}
		res = append(res, info)
	}
	return res, nil
}

// GetBoardInfo returns the cached listing entry for board, or ErrNotFound.
func (s *Store) GetBoardInfo(board string) (*model.BoardInfo, error) {
	var row model.Board
	if err := s.db.Where("board = ?", board).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	info, err := boardInfo(row)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func boardInfo(row model.Board) (model.BoardInfo, error) {
	info := model.BoardInfo{Board: row.Board, Title: row.Title, WsBoard: row.WsBoard}
	if len(row.Data) == 0 {
		return info, nil
	}
	if err := json.Unmarshal(row.Data, &info); err != nil {
		return info, errors.Wrapf(err, "decode board %s", row.Board)
	}
	return info, nil
}
