package model

/*

HistoryEntry records that the viewer has seen a post. One row per post ever
viewed, Timestamp is the last view in unix millis (upsert, not append).

Resto is kept so "viewed posts of thread N" needs no join with threads.

*/

type HistoryEntry struct {
	No        int64  `gorm:"primaryKey;autoIncrement:false"`
	Board     string `gorm:"primaryKey;index:idx_history_resto,priority:1"`
	Resto     int64  `gorm:"not null;default:0;index:idx_history_resto,priority:2"`
	Timestamp int64  `gorm:"not null;index:idx_history_timestamp,sort:desc"`
}

func (HistoryEntry) TableName() string {
	return "history"
}
