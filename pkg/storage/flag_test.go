package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    bool
		wantErr bool
	}{
		{name: "nil", src: nil, want: false},
		{name: "bool true", src: true, want: true},
		{name: "bool false", src: false, want: false},
		{name: "integer one", src: int64(1), want: true},
		{name: "integer zero", src: int64(0), want: false},
		{name: "text true", src: "true", want: true},
		{name: "text one bytes", src: []byte("1"), want: true},
		{name: "text t", src: "t", want: true},
		{name: "text f padded", src: " f ", want: false},
		{name: "garbage text", src: "yes please", wantErr: true},
		{name: "float", src: 1.0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Flag
			err := f.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Bool())
		})
	}
}

func TestFlag_Value(t *testing.T) {
	v, err := Flag(true).Value()
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Flag(false).Value()
	require.NoError(t, err)
	assert.Equal(t, false, v)
}
