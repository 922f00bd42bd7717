package core

import (
	"math/rand/v2"
)

// DiversityPolicy post-processes a deduplicated candidate pool according
// to the listener's similarity preference. Output is never longer than the
// input pool.
type DiversityPolicy struct{}

func NewDiversityPolicy() *DiversityPolicy {
	return &DiversityPolicy{}
}

// Apply reorders or filters the pool. Strict keeps only candidates whose
// artist matches a seed artist; balanced spreads same-artist tracks apart
// best-effort; diverse applies a uniform shuffle.
func (p *DiversityPolicy) Apply(pool []Track, seeds []Track, pref SimilarityPreference) []Track {
	switch pref {
	case SimilarityStrict:
		return p.filterBySeedArtists(pool, seeds)
	case SimilarityDiverse:
		shuffled := append([]Track(nil), pool...)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		return shuffled
	default:
		return p.spreadByArtist(pool)
	}
}

func (p *DiversityPolicy) filterBySeedArtists(pool []Track, seeds []Track) []Track {
	seedArtists := make(map[int64]struct{}, len(seeds))
	for _, s := range seeds {
		seedArtists[s.Artist.ID] = struct{}{}
	}

	kept := make([]Track, 0, len(pool))
	for _, t := range pool {
		if _, ok := seedArtists[t.Artist.ID]; ok {
			kept = append(kept, t)
		}
	}
	return kept
}

// spreadByArtist avoids placing two tracks from the same artist next to
// each other where an alternative exists. Greedy and best-effort, not
// optimal: at each position the first remaining track from a different
// artist than the previous pick is taken, falling back to the head of the
// remainder when every remaining track shares that artist.
func (p *DiversityPolicy) spreadByArtist(pool []Track) []Track {
	if len(pool) < 3 {
		return append([]Track(nil), pool...)
	}

	remaining := append([]Track(nil), pool...)
	spread := make([]Track, 0, len(pool))
	lastArtist := int64(0)

	for len(remaining) > 0 {
		pick := 0
		if len(spread) > 0 {
			for i, t := range remaining {
				if t.Artist.ID != lastArtist {
					pick = i
					break
				}
			}
		}
		track := remaining[pick]
		remaining = append(remaining[:pick], remaining[pick+1:]...)
		spread = append(spread, track)
		lastArtist = track.Artist.ID
	}
	return spread
}
