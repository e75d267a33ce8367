package store

import (
	"fmt"
	"strings"
)

// Tier classifies a backend by latency and durability. The pipeline uses it
// to rank backends; drivers never consult it.
type Tier int

const (
	TierLocal Tier = iota
	TierRemote
	TierCold
)

var tierNames = map[Tier]string{
	TierLocal:  "LOCAL",
	TierRemote: "REMOTE",
	TierCold:   "COLD",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// Rank orders tiers from fastest to slowest.
func (t Tier) Rank() int {
	return int(t)
}

// ParseTier parses a tier name, ignoring case.
func ParseTier(s string) (Tier, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown storage tier: %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid storage tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
