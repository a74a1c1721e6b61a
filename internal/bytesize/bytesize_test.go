package bytesize

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{" 1024B ", 1024, false},
		{"1024b", 1024, false},
		{"1Ki", KiB, false},
		{"1KiB", KiB, false},
		{"100Mi", 100 * MiB, false},
		{"100mib", 100 * MiB, false},
		{"1Gi", GiB, false},
		{"2TiB", 2 * TiB, false},
		{"1K", KB, false},
		{"100MB", 100 * MB, false},
		{"1 GB", GB, false},
		{"3T", 3 * TB, false},
		{"1.5Gi", GiB + GiB/2, false},
		{"0.5K", 500, false},
		{"", 0, true},
		{"   ", 0, true},
		{"Gi", 0, true},
		{"12XB", 0, true},
		{"1.2.3M", 0, true},
		{"-1", 0, true},
		{"99999999999Ti", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarshalTextIsExact(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{0, "0"},
		{1500, "1500"},
		{KiB, "1Ki"},
		{64 * MiB, "64Mi"},
		{2 * GB, "2G"},
		{GiB + 1, "1073741825"},
		{3 * TiB, "3Ti"},
	}

	for _, tt := range tests {
		text, err := tt.size.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", tt.size, err)
		}
		if string(text) != tt.want {
			t.Errorf("MarshalText(%d) = %q, want %q", tt.size, text, tt.want)
		}

		var back ByteSize
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != tt.size {
			t.Errorf("round trip of %d gave %d", tt.size, back)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{0, "0B"},
		{1023, "1023B"},
		{2048, "2.00KiB"},
		{1536 * KiB, "1.50MiB"},
		{GiB, "1.00GiB"},
		{5 * TiB, "5.00TiB"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestInt64Saturates(t *testing.T) {
	if got := ByteSize(42).Int64(); got != 42 {
		t.Errorf("Int64() = %d, want 42", got)
	}
	if got := ByteSize(math.MaxUint64).Int64(); got != math.MaxInt64 {
		t.Errorf("Int64() = %d, want MaxInt64", got)
	}
}
