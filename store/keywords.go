package store

import (
	"strings"

	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/moderation"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

const keywordsInitializedKey = "blocked_keywords_initialized"

func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// InitDefaultBlockedKeywords inserts the default keyword list. Without force
// it runs once per store, guarded by a config flag; user removals of defaults
// stick across restarts. Existing keywords are never duplicated.
func (s *Store) InitDefaultBlockedKeywords(force bool) error {
	if !force {
		done, ok, err := s.GetConfig(keywordsInitializedKey)
		if err != nil {
			return err
		}
		if ok && done == "true" {
			return nil
		}
	}

	now := s.nowMillis()
	rows := make([]model.BlockedKeyword, 0, len(moderation.DefaultKeywords))
	for _, kw := range moderation.DefaultKeywords {
		if kw = normalizeKeyword(kw); kw != "" {
			rows = append(rows, model.BlockedKeyword{Keyword: kw, CreatedAt: now})
		}
	}
	for i := range rows {
		if err := s.insertKeyword(&rows[i]); err != nil {
			return errors.Wrapf(err, "seed keyword %q", rows[i].Keyword)
		}
	}
	return s.SetConfig(keywordsInitializedKey, "true")
}

func (s *Store) insertKeyword(row *model.BlockedKeyword) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "keyword"}},
		DoNothing: true,
	}).Create(row).Error
}

// AddBlockedKeyword stores keyword trimmed and lower cased. Adding an existing
// keyword is a no-op.
func (s *Store) AddBlockedKeyword(keyword string) error {
	kw := normalizeKeyword(keyword)
	if kw == "" {
		return ErrEmptyKeyword
	}
	return errors.Wrap(s.insertKeyword(&model.BlockedKeyword{Keyword: kw, CreatedAt: s.nowMillis()}), "add keyword")
}

func (s *Store) RemoveBlockedKeyword(keyword string) error {
	err := s.db.Where("keyword = ?", normalizeKeyword(keyword)).Delete(&model.BlockedKeyword{}).Error
	return errors.Wrap(err, "remove keyword")
}

func (s *Store) ClearBlockedKeywords() error {
	return errors.Wrap(s.db.Exec("DELETE FROM blocked_keywords").Error, "clear keywords")
}

// ResetBlockedKeywords replaces every keyword with the default list.
func (s *Store) ResetBlockedKeywords() error {
	return s.Transaction(func(tx *Store) error {
		if err := tx.ClearBlockedKeywords(); err != nil {
			return err
		}
		return tx.InitDefaultBlockedKeywords(true)
	})
}

// ListBlockedKeywords returns keywords in insertion order.
func (s *Store) ListBlockedKeywords() ([]string, error) {
	var kws []string
	err := s.db.Model(&model.BlockedKeyword{}).
		Order("created_at ASC, id ASC").
		Pluck("keyword", &kws).Error
	return kws, errors.Wrap(err, "list keywords")
}
