package domain

import (
	"strings"
	"time"
)

// Event groups activities and scopes global entry admission
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required,min=2,max=200"`
	Location  string    `json:"location"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Tier is a priced standing level of an activity. A nil Capacity is unlimited.
type Tier struct {
	Name     string `json:"name" validate:"required,max=100"`
	Price    int64  `json:"price" validate:"gte=0"`
	Capacity *int   `json:"capacity,omitempty" validate:"omitempty,gte=0"`
	Reserved int    `json:"reserved"`
}

// Remaining returns the free slots of the tier, or -1 when unlimited
func (t Tier) Remaining() int {
	if t.Capacity == nil {
		return -1
	}
	return *t.Capacity - t.Reserved
}

// Activity is a session of an event that participants enroll into
type Activity struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id" validate:"required"`
	Name      string    `json:"name" validate:"required,min=2,max=200"`
	Location  string    `json:"location"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Capacity  *int      `json:"capacity,omitempty" validate:"omitempty,gte=0"`
	Tiers     []Tier    `json:"tiers" validate:"required,min=1,dive"`
	CreatedAt time.Time `json:"created_at"`
}

// Tier looks up a tier by name (case-insensitive)
func (a *Activity) Tier(name string) (*Tier, bool) {
	key := TierKey(name)
	for i := range a.Tiers {
		if TierKey(a.Tiers[i].Name) == key {
			return &a.Tiers[i], true
		}
	}
	return nil, false
}

// Reserved returns the reserved slots across every tier
func (a *Activity) Reserved() int {
	total := 0
	for _, t := range a.Tiers {
		total += t.Reserved
	}
	return total
}

// Remaining returns the free slots at activity level, or -1 when unlimited
func (a *Activity) Remaining() int {
	if a.Capacity == nil {
		return -1
	}
	return *a.Capacity - a.Reserved()
}

// TierKey normalises a tier name for comparisons
func TierKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Clone returns a deep copy so stored activities never alias caller memory
func (a Activity) Clone() Activity {
	out := a
	if a.Capacity != nil {
		c := *a.Capacity
		out.Capacity = &c
	}
	out.Tiers = make([]Tier, len(a.Tiers))
	for i, t := range a.Tiers {
		if t.Capacity != nil {
			c := *t.Capacity
			t.Capacity = &c
		}
		out.Tiers[i] = t
	}
	return out
}

// IntPtr is a helper for optional capacities
func IntPtr(v int) *int {
	return &v
}
