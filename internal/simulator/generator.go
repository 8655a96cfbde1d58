// Package simulator produces the synthetic per-patient vitals that stand in
// for a live device feed.
package simulator

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/chronic-risk-monitor/internal/domain"
)

// Generator draws uniform readings within the clinical bounds in domain.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator seeded from the operating system's
// entropy source. A process without entropy cannot run, so a seeding
// failure is returned and treated as fatal by the caller.
func NewGenerator() (*Generator, error) {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seeding vitals generator: %w", err)
	}
	src := rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
	return NewGeneratorWithRand(rand.New(src)), nil
}

// NewGeneratorWithRand creates a generator over a caller-supplied source,
// e.g. a fixed seed in tests.
func NewGeneratorWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate returns a fresh reading for every patient id. Duplicate ids get a
// single reading.
func (g *Generator) Generate(patientIDs []int) map[int]domain.DynamicReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	readings := make(map[int]domain.DynamicReading, len(patientIDs))
	for _, id := range patientIDs {
		if _, ok := readings[id]; ok {
			continue
		}
		readings[id] = domain.DynamicReading{
			PatientID:    id,
			BMI:          g.uniform(domain.MinBMI, domain.MaxBMI),
			HbA1cLevel:   g.uniform(domain.MinHbA1c, domain.MaxHbA1c),
			GlucoseLevel: domain.MinGlucose + g.rng.IntN(domain.MaxGlucose-domain.MinGlucose+1),
		}
	}
	return readings
}

// GenerateFor is Generate over the ids of records.
func (g *Generator) GenerateFor(records []domain.PatientRecord) map[int]domain.DynamicReading {
	ids := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return g.Generate(ids)
}

// uniform draws from [lo, hi] rounded to one decimal.
func (g *Generator) uniform(lo, hi float64) float64 {
	return round1(lo + g.rng.Float64()*(hi-lo))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
