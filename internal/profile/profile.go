// Package profile implements the per-user impression journal and its
// aggregate emotion tendency. A Profile owns its Impressions exclusively
// (no shared ownership, no cycles), mirroring the plain-value-type style
// the upstream agent uses for its conversation Messages.
package profile

import (
	"sort"
	"time"

	"github.com/joebot/nekobot/internal/emotion"
)

// mergeAge is the age past which impressions are collapsed into a
// single synthetic entry, bounding journal size.
const mergeAge = 5 * time.Hour

// Impression is one observation's contribution to a user's emotion
// tendency, timestamped for decay.
type Impression struct {
	At    time.Time      `json:"at"`
	Delta emotion.Vector `json:"delta"`
}

// Profile is a per-user impression journal plus its derived aggregate
// emotion tendency.
type Profile struct {
	UserID      string       `json:"user_id"`
	Emotion     emotion.Vector `json:"emotion"`
	Interactions []Impression `json:"interactions"` // newest first
}

// New creates an empty profile for a user.
func New(userID string) *Profile {
	return &Profile{UserID: userID}
}

// Push records a new impression and recomputes the aggregate emotion,
// then merges impressions older than mergeAge. now is passed in rather
// than read from time.Now so callers can test decay deterministically.
func (p *Profile) Push(now time.Time, delta emotion.Vector) {
	p.Interactions = append([]Impression{{At: now, Delta: delta}}, p.Interactions...)
	p.Recompute(now)
	p.mergeOld(now)
}

// Recompute recomputes Emotion from the current Interactions using the
// max-positive/min-negative aggregation rule (see internal/emotion).
func (p *Profile) Recompute(now time.Time) {
	decayed := make([]emotion.Vector, len(p.Interactions))
	for i, imp := range p.Interactions {
		h := now.Sub(imp.At).Hours()
		if h < 0 {
			h = 0
		}
		decayed[i] = emotion.Decay(imp.Delta, h)
	}
	p.Emotion = emotion.Aggregate(decayed)
}

// mergeOld collapses impressions older than mergeAge into one synthetic
// entry dated at the oldest merged impression, bounding journal size.
func (p *Profile) mergeOld(now time.Time) {
	var fresh, old []Impression
	for _, imp := range p.Interactions {
		if now.Sub(imp.At) > mergeAge {
			old = append(old, imp)
		} else {
			fresh = append(fresh, imp)
		}
	}
	if len(old) == 0 {
		return
	}
	decayed := make([]emotion.Vector, len(old))
	oldest := old[0].At
	for i, imp := range old {
		h := now.Sub(imp.At).Hours()
		decayed[i] = emotion.Decay(imp.Delta, h)
		if imp.At.Before(oldest) {
			oldest = imp.At
		}
	}
	merged := Impression{At: oldest, Delta: emotion.Aggregate(decayed)}
	fresh = append(fresh, merged)
	// Keep newest-first ordering.
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].At.After(fresh[j].At) })
	p.Interactions = fresh
}

// Journal manages one Profile per user_name for a Session, created on
// first observation and kept for the Session's lifetime.
type Journal struct {
	profiles map[string]*Profile
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{profiles: make(map[string]*Profile)}
}

// Ensure returns the profile for userName, creating it if absent.
func (j *Journal) Ensure(userName string) *Profile {
	p, ok := j.profiles[userName]
	if !ok {
		p = New(userName)
		j.profiles[userName] = p
	}
	return p
}

// Get returns the profile for userName, or nil if never observed.
func (j *Journal) Get(userName string) *Profile {
	return j.profiles[userName]
}

// All returns every known profile, keyed by user_name.
func (j *Journal) All() map[string]*Profile {
	return j.profiles
}

// Clear empties the journal (used by calm_down and reset).
func (j *Journal) Clear() {
	j.profiles = make(map[string]*Profile)
}

// Len reports how many users have a profile.
func (j *Journal) Len() int {
	return len(j.profiles)
}
