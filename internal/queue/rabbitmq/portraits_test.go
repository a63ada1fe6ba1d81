package rabbitmq

import (
	"testing"
	"time"
)

func TestBackoffFor(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 15 * time.Second},
		{1, 15 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
		{4, 120 * time.Second},
		{99, 120 * time.Second},
	}
	for _, tc := range cases {
		if got := BackoffFor(tc.attempt); got != tc.want {
			t.Fatalf("BackoffFor(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
