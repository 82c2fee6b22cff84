package cache

import (
	"testing"
	"time"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	if hashIP(ip) != hashIP(ip) {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if hash := hashIP(tt.ip); len(hash) != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, len(hash))
			}
		})
	}
}

func TestHashIP_Different(t *testing.T) {
	t.Parallel()

	if hashIP("10.0.0.1") == hashIP("10.0.0.2") {
		t.Error("Different IPs should produce different hashes")
	}
}

func TestBucketResult(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		reply   []int64
		rate    float64
		want    RateLimitResult
		wantErr bool
	}{
		{
			name:  "allowed",
			reply: []int64{1, 0, 9},
			rate:  10,
			want:  RateLimitResult{Allowed: true, Remaining: 9, ResetAt: now.Add(100 * time.Millisecond)},
		},
		{
			name:  "denied",
			reply: []int64{0, 2, 0},
			rate:  1,
			want:  RateLimitResult{Allowed: false, Remaining: 0, ResetAt: now.Add(time.Second), RetryAfter: 2 * time.Second},
		},
		{
			name:    "short reply",
			reply:   []int64{1},
			rate:    1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := bucketResult(tt.reply, tt.rate, now)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("bucketResult() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}
