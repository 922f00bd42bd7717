// Package store provides the session seen-track store backed by a Bloom
// filter and an LRU cache.
package store

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenStore is a thread-safe record of track ids the listener has already
// heard this session. The Bloom filter answers the common negative case
// without touching the map; the LRU bounds memory by evicting the oldest
// ids once capacity is exceeded.
type SeenStore struct {
	trackIDs          map[int64]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[int64, struct{}]
	mutex             sync.RWMutex
	maxTracks         int
	falsePositiveRate float64
}

// NewSeenStore creates a seen store with the given capacity and Bloom
// false positive rate.
func NewSeenStore(maxTracks int, falsePositiveRate float64) *SeenStore {
	lruCache, _ := lru.New[int64, struct{}](maxTracks)

	return &SeenStore{
		trackIDs:          make(map[int64]struct{}),
		bloom:             bloom.NewWithEstimates(uint(maxTracks), falsePositiveRate),
		lru:               lruCache,
		maxTracks:         maxTracks,
		falsePositiveRate: falsePositiveRate,
	}
}

// Has checks whether a track id is in the store.
func (s *SeenStore) Has(trackID int64) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.bloom.Test(idKey(trackID)) {
		return false
	}

	_, exists := s.trackIDs[trackID]
	return exists
}

// Add records a track id, evicting the oldest entry when over capacity.
func (s *SeenStore) Add(trackID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.trackIDs[trackID]; exists {
		return
	}

	s.trackIDs[trackID] = struct{}{}
	s.bloom.Add(idKey(trackID))
	s.lru.Add(trackID, struct{}{})

	if len(s.trackIDs) > s.maxTracks {
		s.evictOldest()
	}
}

// Size returns the number of track ids currently stored.
func (s *SeenStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.trackIDs)
}

// Clear removes all track ids and resets the Bloom filter.
func (s *SeenStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.trackIDs = make(map[int64]struct{})
	s.bloom = bloom.NewWithEstimates(uint(s.maxTracks), s.falsePositiveRate)
	s.lru.Purge()
}

func (s *SeenStore) evictOldest() {
	oldestKey, _, ok := s.lru.GetOldest()
	if !ok {
		return
	}

	delete(s.trackIDs, oldestKey)
	s.lru.Remove(oldestKey)
}

func idKey(id int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}
