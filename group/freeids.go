package group

import (
	"slices"
	"sort"
)

// freeIDs is the compact free-identifier pool: every id in exceptions is
// free, every id at or above ceiling is free, everything else is in use.
// Keeping the exception list short makes smallest-first allocation cheap no
// matter how many groups a document accumulates.
type freeIDs struct {
	ceiling    int
	exceptions []int // sorted ascending, all < ceiling
}

// next removes and returns the smallest free identifier.
func (f *freeIDs) next() int {
	if len(f.exceptions) > 0 {
		id := f.exceptions[0]
		f.exceptions = f.exceptions[1:]
		return id
	}
	id := f.ceiling
	f.ceiling++
	return id
}

// free returns an identifier to the pool. Ids at or above the ceiling are
// implicitly free already and need no bookkeeping.
func (f *freeIDs) free(id int) {
	if id < 0 || id >= f.ceiling {
		return
	}
	i := sort.SearchInts(f.exceptions, id)
	if i < len(f.exceptions) && f.exceptions[i] == id {
		return
	}
	f.exceptions = slices.Insert(f.exceptions, i, id)
}

// markUsed forces an identifier out of the pool, extending the ceiling when
// needed: everything between the old ceiling and id becomes free.
func (f *freeIDs) markUsed(id int) {
	if id < 0 {
		return
	}
	if id >= f.ceiling {
		for v := f.ceiling; v < id; v++ {
			f.exceptions = append(f.exceptions, v)
		}
		f.ceiling = id + 1
		return
	}
	i := sort.SearchInts(f.exceptions, id)
	if i < len(f.exceptions) && f.exceptions[i] == id {
		f.exceptions = slices.Delete(f.exceptions, i, i+1)
	}
}

// recompute resets the pool to the exact complement of the ids in use.
func (f *freeIDs) recompute(used []int) {
	f.ceiling = 0
	f.exceptions = f.exceptions[:0]
	if len(used) == 0 {
		return
	}
	inUse := make(map[int]struct{}, len(used))
	top := -1
	for _, id := range used {
		inUse[id] = struct{}{}
		if id > top {
			top = id
		}
	}
	f.ceiling = top + 1
	for id := 0; id < f.ceiling; id++ {
		if _, ok := inUse[id]; !ok {
			f.exceptions = append(f.exceptions, id)
		}
	}
}
