package signature

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "ipv4",
			in:   "Failed password for invalid user admin from 192.168.1.50",
			want: "Failed password for invalid user admin from <IP>",
		},
		{
			name: "ipv6",
			in:   "connection from fe80:0:0:0:1234:5678:9abc:def0 dropped",
			want: "connection from <IP> dropped",
		},
		{
			name: "port",
			in:   "Connection closed by 10.0.0.1 port 51234",
			want: "Connection closed by <IP> port <PORT>",
		},
		{
			name: "large integer",
			in:   "request 48213 completed in 12 ms",
			want: "request <NUM> completed in 12 ms",
		},
		{
			name: "small integers kept",
			in:   "retry 3 of 5 on eth0",
			want: "retry 3 of 5 on eth0",
		},
		{
			name: "hex id",
			in:   "container deadbeefcafe1234 exited",
			want: "container <HEX> exited",
		},
		{
			name: "trimmed",
			in:   "   padded message   ",
			want: "padded message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_SameTemplateSameSignature(t *testing.T) {
	t.Parallel()
	a := Normalize("Failed password for invalid user alice from 10.0.0.1 port 4711")
	b := Normalize("Failed password for invalid user alice from 172.16.9.80 port 59999")
	if a != b {
		t.Errorf("signatures differ: %q vs %q", a, b)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"Failed password from 10.1.2.3 port 22 id deadbeef00112233",
		"plain message with no volatile tokens",
		strings.Repeat("x 12345 ", 100),
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestNormalize_Truncates(t *testing.T) {
	t.Parallel()
	got := Normalize(strings.Repeat("a", 5*MaxLength))
	if len(got) != MaxLength {
		t.Errorf("len = %d, want %d", len(got), MaxLength)
	}
}
