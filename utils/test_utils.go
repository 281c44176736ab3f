package utils

import (
	"fmt"

	"github.com/peek4c/peek4c/model"
)

// Test fixtures. Times are unix seconds, tim values are derived from them the
// way the media host names uploads.

// TestOP returns a thread starter with media.
func TestOP(board string, no, time int64) *model.Post {
	return &model.Post{
		No:       no,
		Board:    board,
		Time:     time,
		Sub:      fmt.Sprintf("thread %d", no),
		Com:      fmt.Sprintf("op of %d", no),
		Filename: fmt.Sprintf("file%d", no),
		Ext:      ".jpg",
		Tim:      time*1000 + 1,
		W:        800,
		H:        600,
	}
}

// TestReply returns a reply with media in thread op.
func TestReply(board string, op, no, time int64) *model.Post {
	return &model.Post{
		No:       no,
		Board:    board,
		Resto:    op,
		Time:     time,
		Com:      fmt.Sprintf("reply %d", no),
		Filename: fmt.Sprintf("file%d", no),
		Ext:      ".png",
		Tim:      time*1000 + 2,
	}
}

// TestTextReply returns a reply without media, which is never persisted.
func TestTextReply(board string, op, no, time int64) *model.Post {
	return &model.Post{
		No:    no,
		Board: board,
		Resto: op,
		Time:  time,
		Com:   fmt.Sprintf("text only %d", no),
	}
}

// PostNos lists the post numbers of posts in order.
func PostNos(posts []*model.Post) []int64 {
	nos := make([]int64, 0, len(posts))
	for _, p := range posts {
		nos = append(nos, p.No)
	}
	return nos
}
