package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "button-basic", false},
		{"underscores", "card_iframe_2", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"space", "a b", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id, "demo id", true)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.NoError(t, ValidateID("", "demo id", false))
}

func TestValidateFileName(t *testing.T) {
	valid := []string{"index.jsx", "src/App.tsx", "components/@scope/button.js", ".dumi/theme.js"}
	for _, name := range valid {
		assert.NoError(t, ValidateFileName(name), name)
	}

	invalid := []string{"", "/etc/passwd", "../secret.js", "a/../../b.js", "a//b.js", "./a.js", "a b.js", "a\x00.js"}
	for _, name := range invalid {
		assert.Error(t, ValidateFileName(name), "%q", name)
	}
}

func TestValidateFiles(t *testing.T) {
	require.NoError(t, ValidateFiles(map[string]string{"index.jsx": "export default 1"}))

	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "empty",
			files:   map[string]string{},
			wantErr: "at least one file",
		},
		{
			name:    "bad name",
			files:   map[string]string{"../x.js": ""},
			wantErr: "escapes",
		},
		{
			name:    "too large",
			files:   map[string]string{"big.js": strings.Repeat("x", MaxFileSize+1)},
			wantErr: "exceeds maximum size",
		},
		{
			name:    "binary",
			files:   map[string]string{"a.js": "\xff\xfe"},
			wantErr: "UTF-8",
		},
		{
			name: "too many files",
			files: func() map[string]string {
				m := make(map[string]string)
				for i := 0; i <= MaxFiles; i++ {
					m[strings.Repeat("f", i+1)+".js"] = ""
				}
				return m
			}(),
			wantErr: "at most",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFiles(tt.files)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHasher(t *testing.T) {
	h := DefaultHasher()

	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.HashString(""))
	assert.Equal(t, h.HashParts("a", "b"), h.HashParts("a", "b"))
	assert.NotEqual(t, h.HashParts("ab", "c"), h.HashParts("a", "bc"))
	assert.NotEqual(t, h.HashParts("a", "b"), h.HashParts("b", "a"))

	type body struct {
		HTML    string `json:"html"`
		Loading bool   `json:"loading"`
	}
	first, err := h.HashJSON(body{HTML: "<b>x</b>"})
	require.NoError(t, err)
	second, err := h.HashJSON(body{HTML: "<b>x</b>"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed, err := h.HashJSON(body{HTML: "<b>x</b>", Loading: true})
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestETag(t *testing.T) {
	assert.Equal(t, `"0123456789abcdef"`, ETag("0123456789abcdef0123"))
	assert.Equal(t, `"abc"`, ETag("abc"))
}
