package ingest

import (
	"maps"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

type rule struct {
	variant   string
	canonical string
}

var defaultRules = []rule{
	{"GD", "Golden Dome"},
	{"GD initiative", "Golden Dome"},
	{"GD program", "Golden Dome"},
	{"the GD program", "Golden Dome"},

	{"Raytheon", "Raytheon Technologies"},
	{"RTX", "Raytheon Technologies"},
	{"Raytheon Tech", "Raytheon Technologies"},
	{"Lockheed", "Lockheed Martin"},
	{"LM", "Lockheed Martin"},
	{"L3Harris", "L3Harris Technologies"},
	{"L3", "L3Harris Technologies"},
	{"Northrop", "Northrop Grumman"},
	{"NG", "Northrop Grumman"},

	{"DDG51", "DDG-51"},
	{"DDG 51", "DDG-51"},
	{"Arleigh Burke", "DDG-51"},

	{"FY24", "FY2024"},
	{"Fiscal Year 2024", "FY2024"},
	{"FY 2024", "FY2024"},
	{"FY25", "FY2025"},
	{"Fiscal Year 2025", "FY2025"},
	{"FY 2025", "FY2025"},
}

// Normalizer maps known name variants to canonical entity names. It is safe
// for concurrent use.
type Normalizer struct {
	mu    sync.RWMutex
	rules map[string]string
	// lower-cased variant to the variant that was registered first
	folded map[string]string
}

// NewNormalizer returns a Normalizer loaded with the default programs,
// contractors, systems and fiscal years.
func NewNormalizer() *Normalizer {
	n := &Normalizer{
		rules:  make(map[string]string, len(defaultRules)),
		folded: make(map[string]string, len(defaultRules)),
	}
	for _, r := range defaultRules {
		n.addRule(r.variant, r.canonical)
	}
	return n
}

func (n *Normalizer) addRule(variant, canonical string) {
	n.rules[variant] = canonical
	lower := strings.ToLower(variant)
	if _, ok := n.folded[lower]; !ok {
		n.folded[lower] = variant
	}
}

// AddRule registers variant as another name of canonical. An existing rule
// for the same variant is replaced.
func (n *Normalizer) AddRule(variant, canonical string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.addRule(variant, canonical)
}

// Rules returns a copy of all rules.
func (n *Normalizer) Rules() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return maps.Clone(n.rules)
}

// Normalize trims name and returns its canonical form. An exact match wins
// over a case-insensitive one. Unknown names are returned trimmed.
func (n *Normalizer) Normalize(name string) string {
	trimmed := strings.TrimSpace(name)

	n.mu.RLock()
	defer n.mu.RUnlock()

	if canonical, ok := n.rules[trimmed]; ok {
		return canonical
	}
	if variant, ok := n.folded[strings.ToLower(trimmed)]; ok {
		return n.rules[variant]
	}
	return trimmed
}

// NormalizeTriple normalizes both entity names of t.
func (n *Normalizer) NormalizeTriple(t common.Triple) common.Triple {
	t.A = n.Normalize(t.A)
	t.B = n.Normalize(t.B)
	return t
}
