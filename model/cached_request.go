package model

/*

CachedRequest is a generic url keyed cache row.

For remote json, Data is the raw response body. For media, Data is the local
file path the url was downloaded to.
Timestamp: unix millis Data was written, compared against a ttl on read

*/

type CachedRequest struct {
	URL       string `gorm:"primaryKey;column:url"`
	Data      string
	Timestamp int64 `gorm:"not null"`
}

func (CachedRequest) TableName() string {
	return "requests"
}
