package model

import (
	"gorm.io/datatypes"
)

/*

Board is a static reference entity refreshed wholesale from boards.json.

Board: board id, e.g. "g"
Title: display name
WsBoard: 1 for work-safe boards, 0 otherwise. Follow feeds restricted to safe
content keep only boards with WsBoard = 1 (or boards not cached yet)
Data: the full BoardInfo as json

*/

type Board struct {
	Board   string `gorm:"primaryKey"`
	Title   string
	WsBoard int `gorm:"not null;default:0"`
	Data    datatypes.JSON
}

func (Board) TableName() string {
	return "boards"
}

// BoardInfo is one entry of the remote boards.json listing.
type BoardInfo struct {
	Board           string         `json:"board"`
	Title           string         `json:"title"`
	WsBoard         int            `json:"ws_board"`
	PerPage         int            `json:"per_page"`
	Pages           int            `json:"pages"`
	MaxFilesize     int64          `json:"max_filesize"`
	MaxWebmFilesize int64          `json:"max_webm_filesize"`
	MaxCommentChars int            `json:"max_comment_chars"`
	MaxWebmDuration int            `json:"max_webm_duration"`
	BumpLimit       int            `json:"bump_limit"`
	ImageLimit      int            `json:"image_limit"`
	Cooldowns       map[string]int `json:"cooldowns,omitempty"`
	MetaDescription string         `json:"meta_description"`
	IsArchived      int            `json:"is_archived,omitempty"`
	Spoilers        int            `json:"spoilers,omitempty"`
	CustomSpoilers  int            `json:"custom_spoilers,omitempty"`
}
