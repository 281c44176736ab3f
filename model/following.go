package model

/*

Following is a subscription to a thread. No is always an OP's No, and a blocked
OP never has a Following row.

Timestamp: unix millis the follow started, refresh order is newest follow first

*/

type Following struct {
	No        int64  `gorm:"primaryKey;autoIncrement:false"`
	Board     string `gorm:"primaryKey"`
	Timestamp int64  `gorm:"not null;index:idx_following_timestamp,sort:desc"`
}

func (Following) TableName() string {
	return "following"
}
