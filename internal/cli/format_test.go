package cli

import "testing"

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Fatalf("FormatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatShare(t *testing.T) {
	if got := FormatShare(1, 0); got != "-" {
		t.Fatalf("FormatShare(1, 0) = %q, want -", got)
	}
	if got := FormatShare(1, 3); got != "33.3%" {
		t.Fatalf("FormatShare(1, 3) = %q, want 33.3%%", got)
	}
}

func TestFormatUSD(t *testing.T) {
	if got := FormatUSD(0.123456); got != "$0.1235" {
		t.Fatalf("FormatUSD = %q", got)
	}
	if got := FormatUSD2(3); got != "$3.00" {
		t.Fatalf("FormatUSD2 = %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("ses_0123456789abcdef", 12); got != "ses_01234567..." {
		t.Fatalf("ShortID = %q", got)
	}
	if got := ShortID("short", 12); got != "short..." {
		t.Fatalf("ShortID = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "0s"},
		{45, "45s"},
		{125, "2m"},
		{3725, "1h 2m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.secs); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
