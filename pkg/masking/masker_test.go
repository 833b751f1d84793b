package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONSecretFieldsMasker(t *testing.T) {
	m := JSONSecretFieldsMasker{}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "nested keys in arrays",
			in:   `[{"variables":{"clientSecret":"s3cr3t","region":"eu"}},{"refresh_token":"r1"}]`,
			want: `[{"variables":{"clientSecret":"__MASKED__","region":"eu"}},{"refresh_token":"__MASKED__"}]`,
		},
		{
			name: "indentation kept for multi-line input",
			in:   "{\n  \"pat\": \"abc\",\n  \"id\": 42\n}",
			want: "{\n  \"id\": 42,\n  \"pat\": \"__MASKED__\"\n}",
		},
		{
			name: "non-string and empty values untouched",
			in:   `{"isSecret": true, "token": "", "tokenType": "bearer"}`,
			want: `{"isSecret": true, "token": "", "tokenType": "bearer"}`,
		},
		{
			name: "invalid json returned as is",
			in:   `{"password": `,
			want: `{"password": `,
		},
		{
			name: "trailing data returned as is",
			in:   `{"password":"x"} {"password":"y"}`,
			want: `{"password":"x"} {"password":"y"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Mask(tt.in))
		})
	}
}

func TestJSONSecretFieldsMasker_AppliesTo(t *testing.T) {
	m := JSONSecretFieldsMasker{}
	assert.True(t, m.AppliesTo("  {\"a\":1}"))
	assert.True(t, m.AppliesTo("[1]"))
	assert.False(t, m.AppliesTo("password=x"))
}

func TestIsSecretKey(t *testing.T) {
	for _, k := range []string{"password", "DB_PASSWORD", "clientSecret", "access-token", "apiKey", "AccountKey", "PAT", "connectionString"} {
		assert.True(t, isSecretKey(k), k)
	}
	for _, k := range []string{"name", "tokenType", "secretName", "isShared", "url"} {
		assert.False(t, isSecretKey(k), k)
	}
}
