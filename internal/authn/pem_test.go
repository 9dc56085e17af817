package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPEM(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "flattened by header transport",
			input: "-----BEGIN CERTIFICATE----- MIIBszCCAV2g AwIBAgIJAK  Zm9vYmFy -----END CERTIFICATE-----",
			want:  "-----BEGIN CERTIFICATE-----\nMIIBszCCAV2g\nAwIBAgIJAK\nZm9vYmFy\n-----END CERTIFICATE-----",
		},
		{
			name:  "already canonical",
			input: "-----BEGIN CERTIFICATE-----\nMIIB\nZm9v\n-----END CERTIFICATE-----\n",
			want:  "-----BEGIN CERTIFICATE-----\nMIIB\nZm9v\n-----END CERTIFICATE-----",
		},
		{
			name:    "missing header",
			input:   "MIIB Zm9v -----END CERTIFICATE-----",
			wantErr: true,
		},
		{
			name:    "missing footer",
			input:   "-----BEGIN CERTIFICATE----- MIIB Zm9v",
			wantErr: true,
		},
		{
			name:    "empty body",
			input:   "-----BEGIN CERTIFICATE----- -----END CERTIFICATE-----",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalPEM(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
