package model

/*

ThreadRow is the persisted form of a Post in table "threads".

No, Board: composite primary key
Resto, Time, IsOp: copied out of the post so joins and ordering never decode Data
Data: the post encoded by EncodePost, the only serialized form of a post
Blocked: only meaningful on OP rows. Local state, an upsert from a refresh never
touches it
LastFetched: unix millis of the last successful thread refresh, OP rows only

*/

type ThreadRow struct {
	No          int64  `gorm:"primaryKey;autoIncrement:false"`
	Board       string `gorm:"primaryKey;index:idx_threads_board_time,priority:1;index:idx_threads_resto,priority:1"`
	Resto       int64  `gorm:"not null;default:0;index:idx_threads_resto,priority:2"`
	Time        int64  `gorm:"not null;default:0;index:idx_threads_board_time,priority:2,sort:desc"`
	IsOp        bool   `gorm:"not null;default:false"`
	Data        []byte
	Blocked     bool  `gorm:"not null;default:false"`
	LastFetched int64 `gorm:"not null;default:0"`
}

func (ThreadRow) TableName() string {
	return "threads"
}

// NewThreadRow encodes p into a row ready for upsert. Local only columns are
// left at their zero value.
func NewThreadRow(p *Post) (*ThreadRow, error) {
	data, err := EncodePost(p)
	if err != nil {
		return nil, err
	}
	return &ThreadRow{
		No:    p.No,
		Board: p.Board,
		Resto: p.Resto,
		Time:  p.Time,
		IsOp:  p.IsOP(),
		Data:  data,
	}, nil
}

// Post decodes the row back into a Post and copies LastFetched over.
func (r *ThreadRow) Post() (*Post, error) {
	p, err := DecodePost(r.Data)
	if err != nil {
		return nil, err
	}
	p.LastFetched = r.LastFetched
	return p, nil
}
