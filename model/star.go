package model

/*

Star is a user bookmark of any post, OP or reply. Independent of following and
blocking: blocking a thread keeps its stars.

Timestamp: unix millis the star was added

*/

type Star struct {
	No        int64  `gorm:"primaryKey;autoIncrement:false"`
	Board     string `gorm:"primaryKey"`
	Timestamp int64  `gorm:"not null;index:idx_stars_timestamp,sort:desc"`
}

func (Star) TableName() string {
	return "stars"
}
