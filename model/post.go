package model

import (
	"fmt"
	"path"
	"strings"
)

/*

Post is a single board post, either the original post (OP) of a thread or a
reply to it. Identity is (Board, No).

No: post number, unique per board
Board: board id the post belongs to, stamped locally since the remote payload omits it
Resto: 0 for an OP, otherwise the No of the thread's OP
Time: unix seconds of authorship

Tim / Ext: renamed media file stem and extension. A post without both has no
media and is never persisted.

Sub / Com / Name: display text, may contain markup (see PlainSubject, PlainComment)

LastFetched: local unix millis of the last successful refresh of the thread,
only filled on OP reads from the following ledger. Never part of the encoded blob.
OpThread: the thread's OP, hydrated on reads so replies can render thread
context. Never part of the encoded blob.

*/

type Post struct {
	No          int64  `json:"no"`
	Board       string `json:"board"`
	Resto       int64  `json:"resto"`
	Time        int64  `json:"time"`
	Now         string `json:"now,omitempty"`
	Name        string `json:"name,omitempty"`
	Sub         string `json:"sub,omitempty"`
	Com         string `json:"com,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Ext         string `json:"ext,omitempty"`
	W           int    `json:"w,omitempty"`
	H           int    `json:"h,omitempty"`
	TnW         int    `json:"tn_w,omitempty"`
	TnH         int    `json:"tn_h,omitempty"`
	Tim         int64  `json:"tim,omitempty"`
	Md5         string `json:"md5,omitempty"`
	Fsize       int64  `json:"fsize,omitempty"`
	Capcode     string `json:"capcode,omitempty"`
	SemanticURL string `json:"semantic_url,omitempty"`
	Replies     int    `json:"replies,omitempty"`
	Images      int    `json:"images,omitempty"`
	UniqueIPs   int    `json:"unique_ips,omitempty"`

	LastFetched int64 `json:"last_fetched,omitempty"`
	OpThread    *Post `json:"opThread,omitempty"`
}

func (p *Post) IsOP() bool {
	return p.Resto == 0
}

// OwnerNo is the No of the thread this post belongs to.
func (p *Post) OwnerNo() int64 {
	if p.Resto == 0 {
		return p.No
	}
	return p.Resto
}

func (p *Post) HasMedia() bool {
	return p.Tim != 0 && p.Ext != ""
}

func (p *Post) String() string {
	return fmt.Sprintf("/%s/%d", p.Board, p.No)
}

// MediaURL is the full size media location under the media host base, e.g.
// https://i.4cdn.org/g/1700000000000.jpg
func (p *Post) MediaURL(base string) string {
	if !p.HasMedia() {
		return ""
	}
	return fmt.Sprintf("%s/%s/%d%s", strings.TrimRight(base, "/"), p.Board, p.Tim, p.Ext)
}

// ThumbnailURL is the jpg thumbnail the media host renders for every upload.
func (p *Post) ThumbnailURL(base string) string {
	if !p.HasMedia() {
		return ""
	}
	return fmt.Sprintf("%s/%s/%ds.jpg", strings.TrimRight(base, "/"), p.Board, p.Tim)
}

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
}

// IsImageURL reports whether url points at a still image rather than a video.
func IsImageURL(url string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(url)), ".")
	return imageExts[ext]
}
