package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Catalog is the most recently loaded song collection. Lookups are pure and
// never touch the network; unknown ids return nil, not an error.
type Catalog struct {
	mu    sync.RWMutex
	songs []Song
	byID  map[string]int
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		byID: make(map[string]int),
	}
}

// ReplaceAll swaps the collection for a freshly loaded one.
func (c *Catalog) ReplaceAll(songs []Song) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.songs = make([]Song, len(songs))
	copy(c.songs, songs)

	c.byID = make(map[string]int, len(songs))
	for i, s := range c.songs {
		c.byID[s.ID] = i
	}
}

// Add appends a song to the collection.
func (c *Catalog) Add(song Song) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.songs = append(c.songs, song)
	c.byID[song.ID] = len(c.songs) - 1
}

// Update replaces the stored song with the same id. Returns false when the
// id is not loaded.
func (c *Catalog) Update(song Song) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byID[song.ID]
	if !ok {
		return false
	}
	c.songs[i] = song
	return true
}

// Remove drops the song with the given id, preserving order.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byID[id]
	if !ok {
		return false
	}
	c.songs = append(c.songs[:i], c.songs[i+1:]...)
	delete(c.byID, id)
	for j := i; j < len(c.songs); j++ {
		c.byID[c.songs[j].ID] = j
	}
	return true
}

// IncrementPlayCount bumps the play count of a loaded song.
func (c *Catalog) IncrementPlayCount(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.byID[id]; ok {
		c.songs[i].PlayCount++
	}
}

// Get returns the song with the given id, or nil if it is not loaded.
func (c *Catalog) Get(id string) *Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return nil
	}
	song := c.songs[i]
	return &song
}

// All returns a copy of the loaded collection in its original order.
func (c *Catalog) All() []Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Song, len(c.songs))
	copy(out, c.songs)
	return out
}

// Len returns the number of loaded songs.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.songs)
}

// Search returns songs whose title, artist or album contains the query,
// case-insensitively. Order is preserved and the result is a new slice.
func (c *Catalog) Search(query string) []Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]Song, len(c.songs))
		copy(out, c.songs)
		return out
	}

	return lo.Filter(c.songs, func(s Song, _ int) bool {
		return strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Artist), q) ||
			strings.Contains(strings.ToLower(s.Album), q)
	})
}

// Trending returns up to limit songs ranked by play count, most played
// first. Ties keep the catalog order.
func (c *Catalog) Trending(limit int) []Song {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ranked := make([]Song, len(c.songs))
	copy(ranked, c.songs)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PlayCount > ranked[j].PlayCount
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
