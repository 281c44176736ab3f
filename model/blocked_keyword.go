package model

// BlockedKeyword is a moderation keyword, stored lower case and unique.
type BlockedKeyword struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Keyword   string `gorm:"not null;uniqueIndex:idx_blocked_keywords_keyword"`
	CreatedAt int64  `gorm:"not null;autoCreateTime:milli"`
}

func (BlockedKeyword) TableName() string {
	return "blocked_keywords"
}
