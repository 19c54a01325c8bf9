package router

import "golang.org/x/exp/slices"

// arbitrateLRG performs least-recently-granted round-robin arbitration over
// a set of integer candidates, deterministically ordered by sorting them
// first. counter is the arbiter's rotating pointer from the previous grant;
// the returned next value replaces it. Grounded on the reference router's
// _arbitrate_lrg: its defensive rescan loop only ever matches on its first
// iteration (the candidate set it scans is never mutated mid-loop), so this
// port collapses it to the equivalent direct index.
func arbitrateLRG(candidates []int, counter int) (winner int, ok bool, next int) {
	if len(candidates) == 0 {
		return 0, false, counter
	}
	sorted := append([]int(nil), candidates...)
	slices.Sort(sorted)
	pick := counter % len(sorted)
	return sorted[pick], true, (pick + 1) % len(sorted)
}
