package core

// EffectiveTeamRate selects the rate in force for a team on asOf.
//
// Candidates are the history rows with FromDate <= asOf, ordered by
// Locked descending, then FromDate descending; the first wins. A locked
// rate pins the pay scale even when a newer unlocked rate exists, so
// bills stay stable once finalized. Returns nil when no row qualifies;
// callers compute zero labour in that case, never an error.
func EffectiveTeamRate(history []TeamRate, asOf Date) *TeamRate {
	var best *TeamRate
	for i := range history {
		r := &history[i]
		if r.FromDate.After(asOf.Time) {
			continue
		}
		if best == nil || rateBefore(*r, *best) {
			best = r
		}
	}
	return best
}

// rateBefore reports whether a sorts ahead of b in resolution order.
func rateBefore(a, b TeamRate) bool {
	if a.Locked != b.Locked {
		return a.Locked
	}
	return a.FromDate.After(b.FromDate.Time)
}
