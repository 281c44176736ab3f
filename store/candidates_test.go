package store

import (
	"testing"
	"time"

	"github.com/peek4c/peek4c/model"
	"github.com/peek4c/peek4c/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Board g: thread 1 followed (replies 2, 3), thread 10 not followed (reply
// 11), thread 20 blocked (reply 21).
func seedCandidates(t *testing.T, s *Store) {
	s.SaveThreads([]*model.Post{
		utils.TestOP("g", 1, 100),
		utils.TestReply("g", 1, 2, 101),
		utils.TestReply("g", 1, 3, 102),
		utils.TestOP("g", 10, 110),
		utils.TestReply("g", 10, 11, 111),
		utils.TestOP("g", 20, 120),
		utils.TestReply("g", 20, 21, 121),
		utils.TestOP("v", 30, 130),
	})
	require.Nil(t, s.AddFollowing("g", 1))
	require.Nil(t, s.SetBlocked("g", 20, true))
}

func TestListFollowedCandidates(t *testing.T) {
	s := newTestStore(t)
	seedCandidates(t, s)
	require.Nil(t, s.AddToHistory(utils.TestReply("g", 1, 2, 101)))

	posts, err := s.ListFollowedCandidates("g", 10, nil)
	require.Nil(t, err)
	assert.Equal(t, []int64{3, 1}, utils.PostNos(posts))

	posts, err = s.ListFollowedCandidates("g", 10, []int64{3})
	require.Nil(t, err)
	assert.Equal(t, []int64{1}, utils.PostNos(posts))

	posts, err = s.ListFollowedCandidates("g", 1, nil)
	require.Nil(t, err)
	assert.Equal(t, []int64{3}, utils.PostNos(posts))
}

func TestListOtherCandidates(t *testing.T) {
	s := newTestStore(t)
	seedCandidates(t, s)

	posts, err := s.ListOtherCandidates("g", 10, nil)
	require.Nil(t, err)
	assert.Equal(t, []int64{11, 10}, utils.PostNos(posts))

	require.Nil(t, s.AddToHistory(utils.TestOP("g", 10, 110)))
	posts, err = s.ListOtherCandidates("g", 10, nil)
	require.Nil(t, err)
	assert.Equal(t, []int64{11}, utils.PostNos(posts))
}

func TestListFollowedUnreadSafeOnly(t *testing.T) {
	s := newTestStore(t)
	seedCandidates(t, s)
	require.Nil(t, s.AddFollowing("v", 30))
	s.SaveBoards([]model.BoardInfo{{Board: "g", WsBoard: 1}, {Board: "v", WsBoard: 0}})

	all, err := s.ListFollowedUnread(false, 10, nil)
	require.Nil(t, err)
	assert.Equal(t, []int64{30, 3, 2, 1}, utils.PostNos(all))
	require.NotNil(t, all[1].OpThread)
	assert.Equal(t, int64(1), all[1].OpThread.No)

	safe, err := s.ListFollowedUnread(true, 10, nil)
	require.Nil(t, err)
	assert.Equal(t, []int64{3, 2, 1}, utils.PostNos(safe))
}

func TestListFollowedUnreadKeepsUnknownBoardsWhenSafeOnly(t *testing.T) {
	s := newTestStore(t)
	seedCandidates(t, s)

	safe, err := s.ListFollowedUnread(true, 10, nil)
	require.Nil(t, err)
	assert.Equal(t, []int64{3, 2, 1}, utils.PostNos(safe))
}

func TestListFollowedNeedingUpdate(t *testing.T) {
	s := newTestStore(t)
	base := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return base }
	seedCandidates(t, s)

	s.now = func() time.Time { return base.Add(time.Second) }
	require.Nil(t, s.AddFollowing("g", 10))

	stale, err := s.ListFollowedNeedingUpdate(base.UnixMilli())
	require.Nil(t, err)
	assert.Equal(t, []int64{10, 1}, utils.PostNos(stale))

	require.Nil(t, s.UpdateThreadLastFetched("g", 10))
	stale, err = s.ListFollowedNeedingUpdate(base.Add(-time.Hour).UnixMilli())
	require.Nil(t, err)
	assert.Equal(t, []int64{1}, utils.PostNos(stale))
}

func TestHistory(t *testing.T) {
	s := newTestStore(t)
	seedCandidates(t, s)
	base := time.UnixMilli(1700000000000)

	for i, p := range []*model.Post{
		utils.TestOP("g", 1, 100),
		utils.TestReply("g", 1, 2, 101),
		utils.TestOP("v", 30, 130),
		utils.TestOP("g", 10, 110),
	} {
		at := base.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return at }
		require.Nil(t, s.AddToHistory(p))
	}

	viewed, err := s.GetViewedPosts("g", 1)
	require.Nil(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: true}, viewed)

	all, err := s.GetHistory(10, 0, false, "")
	require.Nil(t, err)
	assert.Equal(t, []int64{10, 30, 2, 1}, utils.PostNos(all))
	require.NotNil(t, all[2].OpThread)

	ops, err := s.GetHistory(10, 0, true, "g")
	require.Nil(t, err)
	assert.Equal(t, []int64{10, 1}, utils.PostNos(ops))

	page, err := s.GetHistory(2, 2, false, "")
	require.Nil(t, err)
	assert.Equal(t, []int64{2, 1}, utils.PostNos(page))

	boards, err := s.GetHistoryBoards(5)
	require.Nil(t, err)
	assert.Equal(t, []BoardCount{{Board: "g", Count: 2}, {Board: "v", Count: 1}}, boards)

	seen, err := s.FilterHistoryNos("g", []int64{1, 3, 10})
	require.Nil(t, err)
	assert.ElementsMatch(t, []int64{1, 10}, seen)

	require.Nil(t, s.ClearHistory())
	all, err = s.GetHistory(10, 0, false, "")
	require.Nil(t, err)
	assert.Empty(t, all)
}

func TestStarsAndFollowing(t *testing.T) {
	s := newTestStore(t)
	seedCandidates(t, s)

	require.Nil(t, s.AddStar("g", 2))
	require.Nil(t, s.AddStar("g", 2))
	starred, err := s.IsStarred("g", 2)
	require.Nil(t, err)
	assert.True(t, starred)

	stars, err := s.ListStars()
	require.Nil(t, err)
	require.Len(t, stars, 1)
	require.NotNil(t, stars[0].OpThread)

	require.Nil(t, s.RemoveStar("g", 2))
	starred, err = s.IsStarred("g", 2)
	require.Nil(t, err)
	assert.False(t, starred)

	following, err := s.ListFollowing()
	require.Nil(t, err)
	assert.Equal(t, []int64{1}, utils.PostNos(following))

	removed, err := s.RemoveFollowing("g", 1)
	require.Nil(t, err)
	assert.True(t, removed)
	removed, err = s.RemoveFollowing("g", 1)
	require.Nil(t, err)
	assert.False(t, removed)

	hasAny, err := s.HasFollowing()
	require.Nil(t, err)
	assert.False(t, hasAny)

	blocked, err := s.ListBlocked()
	require.Nil(t, err)
	assert.Equal(t, []int64{20}, utils.PostNos(blocked))
}
