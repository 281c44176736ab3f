package feed

import (
	"math/rand"

	"github.com/peek4c/peek4c/model"
)

const (
	// Share of a recommendation page reserved for followed threads.
	followedShare = 0.4
	// Lower bound of the followed candidate pool.
	minFollowedPool = 20
	// Once the page holds this many items no single thread may own more than
	// 1/maxThreadShareDivisor of it.
	capFloor              = 5
	maxThreadShareDivisor = 5
)

// FollowedTarget is how many followed items a page of limit items aims for.
func FollowedTarget(limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(float64(limit) * followedShare)
}

// PoolLimits returns how many followed and other candidates to load for a
// page of limit items.
func PoolLimits(limit int) (followed, other int) {
	followed = FollowedTarget(limit) * 2
	if followed < minFollowedPool {
		followed = minFollowedPool
	}
	return followed, limit * 2
}

type mixer struct {
	result        []*model.Post
	added         map[int64]bool
	perThread     map[int64]int
	lastOp        int64
	followedCount int
}

func (m *mixer) canAdd(p *model.Post) bool {
	if m.added[p.No] {
		return false
	}
	op := p.OwnerNo()
	if len(m.result) > 0 && op == m.lastOp {
		return false
	}
	n := len(m.result)
	if n >= capFloor && float64(m.perThread[op]) >= float64(n)/maxThreadShareDivisor {
		return false
	}
	return true
}

func (m *mixer) add(p *model.Post, followed bool) {
	op := p.OwnerNo()
	m.result = append(m.result, p)
	m.added[p.No] = true
	m.perThread[op]++
	m.lastOp = op
	if followed {
		m.followedCount++
	}
}

// Mix interleaves followed and other candidates into at most limit items.
// Followed candidates are preferred until FollowedTarget(limit) of them are in.
// No two consecutive items share a thread and, from the fifth item on, no
// thread owns a fifth of the page or more. When neither pool yields an
// admissible candidate the next unconsumed one is admitted anyway, so a small
// pool still fills the page. A candidate rejected once is not retried.
//
// Mix is deterministic; shuffling is left to the caller.
func Mix(followed, other []*model.Post, limit int) []*model.Post {
	if limit <= 0 {
		return nil
	}
	target := FollowedTarget(limit)
	m := &mixer{
		result:    make([]*model.Post, 0, limit),
		added:     map[int64]bool{},
		perThread: map[int64]int{},
	}

	fi, oi := 0, 0
	for len(m.result) < limit {
		admitted := false

		if fi < len(followed) && (m.followedCount < target || oi >= len(other)) {
			p := followed[fi]
			fi++
			if m.canAdd(p) {
				m.add(p, true)
				admitted = true
			}
		}

		if !admitted && oi < len(other) {
			p := other[oi]
			oi++
			if m.canAdd(p) {
				m.add(p, false)
				admitted = true
			}
		}

		if admitted {
			continue
		}
		switch {
		case fi < len(followed):
			p := followed[fi]
			fi++
			if !m.added[p.No] {
				m.add(p, true)
			}
		case oi < len(other):
			p := other[oi]
			oi++
			if !m.added[p.No] {
				m.add(p, false)
			}
		default:
			return m.result
		}
	}
	return m.result
}

// Recommend shuffles both pools, mixes them and shuffles the mixed page.
func Recommend(rng *rand.Rand, followed, other []*model.Post, limit int) []*model.Post {
	shuffle(rng, followed)
	shuffle(rng, other)
	page := Mix(followed, other, limit)
	shuffle(rng, page)
	return page
}

func shuffle(rng *rand.Rand, posts []*model.Post) {
	rng.Shuffle(len(posts), func(i, j int) {
		posts[i], posts[j] = posts[j], posts[i]
	})
}
