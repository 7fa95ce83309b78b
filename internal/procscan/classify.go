package procscan

import "sort"

// initPID is the conventional pid of the init process. A matched process
// reparented to init is treated as a top-level unit even though its
// original parent may itself have matched before exiting.
const initPID = 1

// Classify splits the matched records into monitored units and their
// descendants. A record is a unit when its parent pid is not itself a
// matched pid, or when it has been reparented to init. All other records
// belong to the tree of some unit.
//
// The returned map is keyed by pid and holds every matched record; the
// slice holds the unit pids in ascending order.
func Classify(records []Record) (map[int32]Record, []int32) {
	byPID := make(map[int32]Record, len(records))
	for _, r := range records {
		byPID[r.PID] = r
	}

	var roots []int32
	for _, r := range records {
		_, parentMatched := byPID[r.PPID]
		if !parentMatched || r.PPID == initPID {
			roots = append(roots, r.PID)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return byPID, roots
}
