package storage

import "testing"

func TestExpectedHourlySnapshots(t *testing.T) {
	cases := []struct {
		from, to int64
		want     int64
	}{
		{0, 0, 0},
		{0, 3_600_000, 0},
		{0, 24 * 3_600_000, 23},
		{0, 24*3_600_000 + 1_800_000, 23},
		{10, 0, 0},
	}
	for _, tc := range cases {
		if got := ExpectedHourlySnapshots(tc.from, tc.to); got != tc.want {
			t.Fatalf("ExpectedHourlySnapshots(%d, %d) = %d, want %d", tc.from, tc.to, got, tc.want)
		}
	}
}
