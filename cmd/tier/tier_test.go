package tier

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disksift/internal/tiers"
)

func executeTier(args ...string) (string, error) {
	cmd := NewTierCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTierCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr error
	}{
		{
			name: "idle premium disk moves to hdd",
			args: []string{"--size", "200", "--sku", "Premium_LRS", "--peak-iops", "100", "--peak-throughput", "10"},
			want: []string{"Current:     P15", "Recommended: S15  Standard_LRS"},
		},
		{
			name: "ssd floor",
			args: []string{"--size", "200", "--sku", "Premium_LRS", "--minimal-tier", "standard_ssd"},
			want: []string{"Recommended: E15  StandardSSD_LRS"},
		},
		{
			name: "busy disk stays",
			args: []string{"--size", "1024", "--sku", "Premium_LRS", "--peak-iops", "4500"},
			want: []string{"Recommended: P30", "No cheaper tier"},
		},
		{
			name: "zrs never goes to hdd",
			args: []string{"--size", "64", "--sku", "Premium_ZRS"},
			want: []string{"Recommended: E6   StandardSSD_ZRS"},
		},
		{
			name:    "unsupported sku",
			args:    []string{"--size", "64", "--sku", "UltraSSD_LRS"},
			wantErr: tiers.ErrUnsupportedSKU,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeTier(tt.args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestTierCommandRequiresSize(t *testing.T) {
	_, err := executeTier("--sku", "Premium_LRS")
	assert.Error(t, err)
}

func TestTierCommandRejectsNegativePeaks(t *testing.T) {
	_, err := executeTier("--size", "64", "--peak-iops", "-1")
	assert.Error(t, err)
}
