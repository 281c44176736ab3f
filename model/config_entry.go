package model

// ConfigEntry is a plain key/value setting.
type ConfigEntry struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (ConfigEntry) TableName() string {
	return "config"
}
