// Package store is the local persistence layer: one gorm backed repository
// over every table the feed engine reads or writes. Methods are safe to call
// from multiple goroutines; read-modify-write sequences go through
// Transaction.
package store

import (
	"strings"
	"time"

	"github.com/peek4c/peek4c/model"
	Logger "github.com/peek4c/peek4c/utils/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrEmptyKeyword is returned when a moderation keyword is blank after
	// normalization.
	ErrEmptyKeyword = errors.New("keyword cannot be empty")
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New wraps db and runs InitSchema. A schema error is fatal for the caller:
// the store must not be used half initialized.
func New(db *gorm.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.InitSchema(); err != nil {
		return nil, errors.Wrap(err, "init schema")
	}
	return s, nil
}

// Transaction runs fn against a Store bound to a single transaction. fn must
// only use tx; with the single connection sqlite pool, touching the outer
// store inside fn blocks forever.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(db *gorm.DB) error {
		return fn(&Store{db: db, now: s.now})
	})
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Tables in creation order.
var tables = []interface{}{
	&model.ConfigEntry{},
	&model.CachedRequest{},
	&model.ThreadRow{},
	&model.Board{},
	&model.HistoryEntry{},
	&model.Star{},
	&model.Following{},
	&model.LegalConsent{},
	&model.BlockedKeyword{},
}

type columnMigration struct {
	model interface{}
	field string
}

// Columns added after the first release. Stores created before that are
// upgraded in place on startup.
var columnMigrations = []columnMigration{
	{&model.ThreadRow{}, "Blocked"},
	{&model.ThreadRow{}, "LastFetched"},
}

type indexSpec struct {
	model interface{}
	name  string
}

var indexes = []indexSpec{
	{&model.ThreadRow{}, "idx_threads_board_time"},
	{&model.ThreadRow{}, "idx_threads_resto"},
	{&model.HistoryEntry{}, "idx_history_timestamp"},
	{&model.HistoryEntry{}, "idx_history_resto"},
	{&model.Star{}, "idx_stars_timestamp"},
	{&model.Following{}, "idx_following_timestamp"},
	{&model.BlockedKeyword{}, "idx_blocked_keywords_keyword"},
}

// InitSchema creates missing tables, applies additive column migrations,
// ensures indexes and seeds the default moderation keywords once. It is safe
// to run on every start.
func (s *Store) InitSchema() error {
	m := s.db.Migrator()

	for _, t := range tables {
		if m.HasTable(t) {
			continue
		}
		if err := m.CreateTable(t); err != nil {
			return errors.Wrapf(err, "create table %T", t)
		}
	}

	for _, c := range columnMigrations {
		if err := m.AddColumn(c.model, c.field); err != nil && !isDuplicateColumn(err) {
			return errors.Wrapf(err, "add column %s", c.field)
		}
	}

	for _, idx := range indexes {
		if m.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := m.CreateIndex(idx.model, idx.name); err != nil {
			return errors.Wrapf(err, "create index %s", idx.name)
		}
	}

	return s.InitDefaultBlockedKeywords(false)
}

// sqlite reports "duplicate column name", postgres "column ... already exists".
func isDuplicateColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

// decodeRows turns thread rows into posts. Rows whose blob does not decode are
// logged and skipped, one bad row never fails a read.
func decodeRows(rows []model.ThreadRow) []*model.Post {
	posts := make([]*model.Post, 0, len(rows))
	for i := range rows {
		p, err := rows[i].Post()
		if err != nil {
			Logger.Log.WithError(err).WithFields(map[string]interface{}{
				"board": rows[i].Board,
				"no":    rows[i].No,
			}).Warn("skipping undecodable thread row")
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
