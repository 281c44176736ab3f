package store

import (
	"github.com/pkg/errors"
)

// Every table ResetAllData empties. Moderation keywords are kept.
var resettableTables = []string{
	"config",
	"requests",
	"history",
	"stars",
	"following",
	"threads",
	"boards",
	"legal_consent",
}

// ResetAllData wipes all local data except moderation keywords, then seeds the
// default keywords again since the seed flag lived in config. Keywords the
// user added survive; defaults the user removed come back.
func (s *Store) ResetAllData() error {
	return s.Transaction(func(tx *Store) error {
		for _, table := range resettableTables {
			if err := tx.db.Exec("DELETE FROM " + table).Error; err != nil {
				return errors.Wrapf(err, "clear %s", table)
			}
		}
		return tx.InitDefaultBlockedKeywords(false)
	})
}
