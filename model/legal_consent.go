package model

const (
	ConsentTermsOfService = "terms_of_service"
	DefaultTermsVersion   = "1.0.0"
)

// LegalConsent is an accepted (or declined) version of a legal document.
type LegalConsent struct {
	ConsentType string `gorm:"primaryKey"`
	Version     string `gorm:"primaryKey"`
	Timestamp   int64  `gorm:"not null"`
	Accepted    bool   `gorm:"not null;default:false"`
}

func (LegalConsent) TableName() string {
	return "legal_consent"
}
