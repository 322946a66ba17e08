package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "mixed case", input: "0x598E1CEbB2a4b7f169EecbbdfcAB395438E6Ec27", want: "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27"},
		{name: "upper prefix", input: "0X598E1CEBB2A4B7F169EECBBDFCAB395438E6EC27", want: "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27"},
		{name: "no prefix", input: "598e1cebb2a4b7f169eecbbdfcab395438e6ec27", want: "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27"},
		{name: "surrounding spaces", input: "  0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27 ", want: "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27"},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "0x598e1ceb", wantErr: true},
		{name: "too long", input: "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec2700", wantErr: true},
		{name: "non hex", input: "0x598e1cebb2a4b7f169eecbbdfcab395438e6ecZZ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddress(t *testing.T) {
	addr, normalized, err := ParseAddress("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", normalized)
	assert.Equal(t, normalized, strings.ToLower(addr.Hex()))
	assert.Equal(t, byte(0xab), addr[0])
}
