package floatutils

import "testing"

func TestSign(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{2.5, 1}, {-0.1, -1}, {0, 0},
	}
	for _, test := range tests {
		if got := Sign(test.in); got != test.want {
			t.Errorf("Sign(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestCeil2(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1, 1}, {1.5, 2}, {4, 4}, {5, 8}, {0.3, 0.5},
		{1.0 / (1 << 20), 1.0 / (1 << 20)},
	}
	for _, test := range tests {
		if got := Ceil2(test.in); got != test.want {
			t.Errorf("Ceil2(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}
