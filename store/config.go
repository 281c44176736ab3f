package store

import (
	"time"

	"github.com/peek4c/peek4c/model"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

// GetConfig returns the value stored under key and whether it exists.
func (s *Store) GetConfig(key string) (string, bool, error) {
	var entries []model.ConfigEntry
	if err := s.db.Where(map[string]interface{}{"key": key}).Limit(1).Find(&entries).Error; err != nil {
		return "", false, errors.Wrapf(err, "get config %s", key)
	}
	if len(entries) == 0 {
		return "", false, nil
	}
	return entries[0].Value, true, nil
}

func (s *Store) SetConfig(key, value string) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.ConfigEntry{Key: key, Value: value}).Error
	return errors.Wrapf(err, "set config %s", key)
}

// WorkSafeKey holds "true" or "false". Unset means work-safe.
const WorkSafeKey = "worksafe_enabled"

// WorkSafeEnabled reports whether feeds should keep to work-safe boards.
func (s *Store) WorkSafeEnabled() (bool, error) {
	v, ok, err := s.GetConfig(WorkSafeKey)
	if err != nil {
		return false, err
	}
	return !ok || v != "false", nil
}

// GetCachedRequest returns the cached row for url, or ErrNotFound.
func (s *Store) GetCachedRequest(url string) (*model.CachedRequest, error) {
	var req model.CachedRequest
	if err := s.db.Where("url = ?", url).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

// SaveCachedRequest upserts data for url stamped with at.
func (s *Store) SaveCachedRequest(url, data string, at time.Time) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "timestamp"}),
	}).Create(&model.CachedRequest{URL: url, Data: data, Timestamp: at.UnixMilli()}).Error
	return errors.Wrapf(err, "save cached request %s", url)
}

// ClearCache drops every cached request, json bodies and media mappings alike.
func (s *Store) ClearCache() error {
	return s.db.Exec("DELETE FROM requests").Error
}
