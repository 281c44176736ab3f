package store

import (
	"github.com/peek4c/peek4c/model"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"
)

// HasAcceptedTerms reports whether any version of the terms of service was
// accepted.
func (s *Store) HasAcceptedTerms() (bool, error) {
	var n int64
	err := s.db.Model(&model.LegalConsent{}).
		Where("consent_type = ? AND accepted = ?", model.ConsentTermsOfService, true).
		Count(&n).Error
	return n > 0, errors.Wrap(err, "has accepted terms")
}

// AcceptTerms records acceptance of version, DefaultTermsVersion when empty.
func (s *Store) AcceptTerms(version string) error {
	if version == "" {
		version = model.DefaultTermsVersion
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "consent_type"}, {Name: "version"}},
		DoUpdates: clause.AssignmentColumns([]string{"timestamp", "accepted"}),
	}).Create(&model.LegalConsent{
		ConsentType: model.ConsentTermsOfService,
		Version:     version,
		Timestamp:   s.nowMillis(),
		Accepted:    true,
	}).Error
	return errors.Wrap(err, "accept terms")
}
