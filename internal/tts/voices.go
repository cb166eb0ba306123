package tts

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultVoiceCount is how many voices are offered for selection.
const DefaultVoiceCount = 5

// Top returns at most limit voices from the front of voices.
func Top(voices []Voice, limit int) []Voice {
	if limit <= 0 || limit >= len(voices) {
		return voices
	}
	return voices[:limit]
}

// SelectVoice picks a voice among the first limit voices. preferred matches a
// voice ID exactly or a voice name case-insensitively; when it is empty or
// matches nothing, the first voice is chosen.
func SelectVoice(voices []Voice, limit int, preferred string) (Voice, error) {
	candidates := Top(voices, limit)
	if len(candidates) == 0 {
		return Voice{}, ErrNoVoices
	}

	if preferred != "" {
		for _, v := range candidates {
			if v.ID == preferred {
				return v, nil
			}
		}
		for _, v := range candidates {
			if strings.EqualFold(v.Name, preferred) {
				return v, nil
			}
		}
	}

	return candidates[0], nil
}

// CachedVoices wraps a VoiceLister and remembers its answer for ttl.
type CachedVoices struct {
	lister  VoiceLister
	ttl     time.Duration
	mu      sync.Mutex
	voices  []Voice
	fetched time.Time
	now     func() time.Time
}

// NewCachedVoices creates a cache in front of lister.
func NewCachedVoices(lister VoiceLister, ttl time.Duration) *CachedVoices {
	return &CachedVoices{
		lister: lister,
		ttl:    ttl,
		now:    time.Now,
	}
}

// ListVoices returns cached voices, refreshing them once ttl has passed.
// A failed refresh keeps serving the previous answer if there is one.
func (c *CachedVoices) ListVoices(ctx context.Context) ([]Voice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.voices != nil && c.now().Sub(c.fetched) < c.ttl {
		return c.voices, nil
	}

	voices, err := c.lister.ListVoices(ctx)
	if err != nil {
		if c.voices != nil {
			return c.voices, nil
		}
		return nil, err
	}

	if voices == nil {
		voices = []Voice{}
	}
	c.voices = voices
	c.fetched = c.now()
	return voices, nil
}
