package runtime

import (
	"errors"
	"testing"
)

func TestCheckABI(t *testing.T) {
	tests := []struct {
		required string
		ok       bool
	}{
		{ABIVersion, true},
		{"1.0.0", true},  // older minor still served
		{"1.1.3", true},  // patch never gates
		{"1.2.0", false}, // artifact needs a newer runtime
		{"0.9.0", false}, // major below
		{"2.0.0", false}, // major above
		{"garbage", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.required, func(t *testing.T) {
			err := CheckABI(tt.required)
			if tt.ok && err != nil {
				t.Fatalf("CheckABI(%q) = %v, want nil", tt.required, err)
			}
			if !tt.ok {
				if !errors.Is(err, ErrABIMismatch) {
					t.Fatalf("CheckABI(%q) = %v, want ErrABIMismatch", tt.required, err)
				}
			}
		})
	}
}
