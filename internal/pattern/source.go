package pattern

import (
	"encoding/binary"
	"math/rand/v2"
	"time"
)

const (
	seedMultiplier = 1_000_000
	entropyModulus = 1000

	// unixEpochOrdinal is the ordinal of 1970-01-01 counting 0001-01-01 as day 1.
	unixEpochOrdinal = 719163
)

// SourceFactory hands out the randomness stream used for one calendar day.
type SourceFactory interface {
	ForDate(date time.Time) *rand.Rand
}

// DateSeeded derives each day's stream from the date's ordinal number mixed
// with a small wall-clock term, so the same date clusters similarly across
// runs without repeating exactly.
type DateSeeded struct {
	entropy func() uint64
}

// NewDateSeeded returns the default source with wall-clock entropy.
func NewDateSeeded() *DateSeeded {
	return &DateSeeded{entropy: wallClockEntropy}
}

// FixedEntropy returns a source whose entropy term is constant, making every
// day's stream bit-for-bit reproducible.
func FixedEntropy(v uint64) *DateSeeded {
	return &DateSeeded{entropy: func() uint64 { return v }}
}

func wallClockEntropy() uint64 {
	return uint64(time.Now().Nanosecond() / 1000)
}

// Seed returns the seed for date's stream.
func (s *DateSeeded) Seed(date time.Time) uint64 {
	return uint64(Ordinal(date))*seedMultiplier + s.entropy()%entropyModulus
}

// ForDate implements SourceFactory.
func (s *DateSeeded) ForDate(date time.Time) *rand.Rand {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], s.Seed(date))
	return rand.New(rand.NewChaCha8(key))
}

// Ordinal returns the proleptic Gregorian day number of date's calendar day,
// with 0001-01-01 as day 1.
func Ordinal(date time.Time) int64 {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()/86400 + unixEpochOrdinal
}

// uniform returns a float in [lo, hi].
func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// intBetween returns an int in [lo, hi] inclusive.
func intBetween(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}
