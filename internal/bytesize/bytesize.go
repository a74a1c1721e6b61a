// Package bytesize reads and writes human-readable byte counts such as
// "512Mi", "2GB" or "1024".
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ByteSize is a number of bytes. Binary suffixes (Ki, Mi, Gi, Ti, with an
// optional trailing B) multiply by powers of 1024, decimal ones (K, M, G,
// T, with an optional trailing B) by powers of 1000.
type ByteSize uint64

// Unit multipliers.
const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

type unit struct {
	suffix string
	size   ByteSize
}

// units is ordered from largest to smallest within each family, binary
// first.
var units = []unit{
	{"Ti", TiB}, {"Gi", GiB}, {"Mi", MiB}, {"Ki", KiB},
	{"T", TB}, {"G", GB}, {"M", MB}, {"K", KB},
}

func multiplier(suffix string) (ByteSize, bool) {
	s := strings.ToLower(suffix)
	if s == "" || s == "b" {
		return B, true
	}
	s = strings.TrimSuffix(s, "b")
	for _, u := range units {
		if strings.ToLower(u.suffix) == s {
			return u.size, true
		}
	}
	return 0, false
}

// Parse reads a size such as "1Gi", "1.5GB", "100MiB" or "1024".
func Parse(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, suffix := s, ""
	if split >= 0 {
		number, suffix = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	mult, ok := multiplier(suffix)
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", suffix)
	}

	if !strings.Contains(number, ".") {
		n, err := strconv.ParseUint(number, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", number)
		}
		if n > math.MaxUint64/uint64(mult) {
			return 0, fmt.Errorf("byte size %q overflows", s)
		}
		return ByteSize(n) * mult, nil
	}

	f, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", number)
	}
	total := f * float64(mult)
	if total >= math.MaxUint64 {
		return 0, fmt.Errorf("byte size %q overflows", s)
	}
	return ByteSize(total), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText writes the size exactly, in the unit that divides it into the
// smallest number ("64Mi", "2G", "1500"). Binary units win ties.
func (b ByteSize) MarshalText() ([]byte, error) {
	best, suffix := b, ""
	if b > 0 {
		for _, u := range units {
			if b%u.size == 0 && b/u.size < best {
				best, suffix = b/u.size, u.suffix
			}
		}
	}
	return []byte(strconv.FormatUint(uint64(best), 10) + suffix), nil
}

// String rounds the size to two decimals of a binary unit, for display.
func (b ByteSize) String() string {
	for _, u := range units[:4] {
		if b >= u.size {
			return fmt.Sprintf("%.2f%sB", float64(b)/float64(u.size), u.suffix)
		}
	}
	return fmt.Sprintf("%dB", b)
}

// Int64 returns the size as an int64, saturating at math.MaxInt64.
func (b ByteSize) Int64() int64 {
	if b > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(b)
}
