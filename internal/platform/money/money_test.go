package money

import (
	"math"
	"testing"
)

func TestParsePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "123.4500", want: 12345},
		{in: "0.01", want: 1},
		{in: "199", want: 19900},
		{in: "10.005", want: 1001},
		{in: "not-a-price", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParsePrice(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParsePrice(%q): %v", tc.in, err)
		}
		if got.Cents() != tc.want {
			t.Fatalf("ParsePrice(%q) = %d cents, want %d", tc.in, got.Cents(), tc.want)
		}
	}
}

func TestStringGroupsThousands(t *testing.T) {
	t.Parallel()

	if got := FromCents(123456).String(); got != "$1,234.56" {
		t.Fatalf("String() = %q, want %q", got, "$1,234.56")
	}
	if got := FromCents(-50).String(); got != "-$0.50" {
		t.Fatalf("String() = %q, want %q", got, "-$0.50")
	}
}

func TestReturnRate(t *testing.T) {
	t.Parallel()

	if got := ReturnRate(FromCents(10000), FromCents(12500)); math.Abs(got-25) > 1e-9 {
		t.Fatalf("ReturnRate = %f, want 25", got)
	}
	if got := ReturnRate(FromCents(0), FromCents(500)); got != 0 {
		t.Fatalf("ReturnRate with zero cost = %f, want 0", got)
	}
	if got := ReturnRate(FromCents(10000), FromCents(7500)); math.Abs(got+25) > 1e-9 {
		t.Fatalf("ReturnRate = %f, want -25", got)
	}
}
