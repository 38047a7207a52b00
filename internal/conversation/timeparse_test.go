package conversation

import (
	"errors"
	"testing"
)

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"90", 90},
		{"1:30", 90},
		{"00:01:30", 90},
		{"0", 0},
		{" 2:05 ", 125},
		{"1:00:00", 3600},
		{"75:00", 4500},
		{"１：３０", 90},
		{"١:٣٠", 90},
		{"۰۱:۳۰", 90},
	}
	for _, tt := range tests {
		got, err := ParseSeconds(tt.in)
		if err != nil {
			t.Fatalf("ParseSeconds(%q) returned error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSeconds(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseSecondsRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "1:", ":30", "1:2:3:4", "-5", "1.5", "1:3a", "+10", "99999999999:00:00"} {
		if _, err := ParseSeconds(in); !errors.Is(err, ErrTimeFormat) {
			t.Fatalf("ParseSeconds(%q) expected ErrTimeFormat, got %v", in, err)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := map[int]string{0: "0:00", 90: "1:30", 3600: "1:00:00", 3725: "1:02:05", -3: "0:00"}
	for in, want := range cases {
		if got := FormatSeconds(in); got != want {
			t.Fatalf("FormatSeconds(%d) = %q, want %q", in, got, want)
		}
	}
}
