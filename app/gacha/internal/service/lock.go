package service

import (
	"context"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

const userLockStripes = 256

// userLocks 按用户 id 哈希分段的互斥锁
type userLocks struct {
	stripes [userLockStripes]sync.Mutex
}

func stripeOf(userID string) int {
	return int(xxhash.Sum64String(userID) % userLockStripes)
}

// lockUsers 先按段号升序获取本地锁，再按 id 升序获取跨进程锁
func (e *Engine) lockUsers(ctx context.Context, userIDs ...string) (func(), error) {
	ids := uniqueSorted(userIDs)

	stripeSet := make(map[int]struct{}, len(ids))
	stripes := make([]int, 0, len(ids))
	for _, id := range ids {
		s := stripeOf(id)
		if _, ok := stripeSet[s]; ok {
			continue
		}
		stripeSet[s] = struct{}{}
		stripes = append(stripes, s)
	}
	sort.Ints(stripes)

	for _, s := range stripes {
		e.users.stripes[s].Lock()
	}
	releaseLocal := func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			e.users.stripes[stripes[i]].Unlock()
		}
	}

	unlocks := make([]func(), 0, len(ids))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
		releaseLocal()
	}
	for _, id := range ids {
		unlock, err := e.locker.Lock(ctx, "user:"+id)
		if err != nil {
			release()
			return nil, model.NewError(model.KindConflict, "user is busy, try again", "user_id", id)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
