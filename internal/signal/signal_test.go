package signal

import "testing"

func TestActionable(t *testing.T) {
	cases := []struct {
		name string
		sig  Signal
		want bool
	}{
		{"buy", Signal{Action: Buy, Strength: 70}, true},
		{"sell", Signal{Action: Sell, Strength: 70}, true},
		{"wait", Signal{Action: Wait, Strength: 90}, false},
	}
	for _, tc := range cases {
		if got := tc.sig.Actionable(); got != tc.want {
			t.Fatalf("%s: Actionable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
