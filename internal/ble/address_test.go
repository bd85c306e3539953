package ble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
		{"aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF"},
		{"  AA:BB:CC:DD:EE:FF ", "AA:BB:CC:DD:EE:FF"},
		{"3F2504E0-4F89-11D3-9A0C-0305E82C3301", "3f2504e0-4f89-11d3-9a0c-0305e82c3301"},
		{"something", "SOMETHING"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAddress(tt.in), tt.in)
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF"))
	assert.True(t, SameAddress("3F2504E0-4F89-11D3-9A0C-0305E82C3301", "3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	assert.False(t, SameAddress("AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:00"))
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress("AA:BB:CC:DD:EE:FF"))
	assert.NoError(t, ValidateAddress("aa-bb-cc-dd-ee-ff"))
	assert.NoError(t, ValidateAddress("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
	assert.Error(t, ValidateAddress("AA:BB:CC"))
	assert.Error(t, ValidateAddress("not-an-address"))
}
