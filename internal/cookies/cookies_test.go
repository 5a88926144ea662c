package cookies

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSameSite(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Strict", SameSiteStrict},
		{"strict", SameSiteStrict},
		{"STRICT", SameSiteStrict},
		{"Lax", SameSiteLax},
		{"lax", SameSiteLax},
		{"None", SameSiteNone},
		{"NONE", SameSiteNone},
		{"no_restriction", SameSiteNone},
		{"unspecified", SameSiteLax},
		{"", SameSiteLax},
		{"bogus", SameSiteLax},
		{" none ", SameSiteNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSameSite(tt.input))
		})
	}
}

func TestParseDropsEntriesWithoutDomain(t *testing.T) {
	data := []byte(`[
		{"name": "session-id", "value": "abc", "domain": ".amazon.com", "path": "/", "sameSite": "lax"},
		{"name": "orphan", "value": "x"},
		{"name": "blank", "value": "y", "domain": "  "},
		{"name": "ubid", "value": "z", "domain": "www.amazon.com", "sameSite": "no_restriction", "expirationDate": 1893456000}
	]`)

	entries, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "session-id", entries[0].Name)
	assert.Equal(t, SameSiteLax, entries[0].SameSite)
	assert.Equal(t, "ubid", entries[1].Name)
	assert.Equal(t, SameSiteNone, entries[1].SameSite)
	assert.Equal(t, "/", entries[1].Path)
	assert.InDelta(t, 1893456000, entries[1].Expires, 0.1)
}

func TestLoadOneValidOneMissingDomain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "a", "value": "1"},
		{"name": "b", "value": "2", "domain": ".shopee.tw", "sameSite": "Strict"}
	]`), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
}

func TestLoadMissingFile(t *testing.T) {
	entries, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cookies.json")
	in := []Entry{{Name: "a", Value: "1", Domain: ".ebay.com", Path: "/", SameSite: SameSiteNone}}

	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPlaywrightConversion(t *testing.T) {
	entries := []Entry{{Name: "a", Value: "1", Domain: ".walmart.com", Path: "/", SameSite: "strict", Expires: 42}}

	opt := ToPlaywright(entries)
	require.Len(t, opt, 1)
	require.NotNil(t, opt[0].Domain)
	assert.Equal(t, ".walmart.com", *opt[0].Domain)
	assert.Equal(t, playwright.SameSiteAttributeStrict, opt[0].SameSite)
	require.NotNil(t, opt[0].Expires)

	jar := []playwright.Cookie{{Name: "b", Value: "2", Domain: ".walmart.com", Path: "/", SameSite: playwright.SameSiteAttributeNone}}
	back := FromPlaywright(jar)
	require.Len(t, back, 1)
	assert.Equal(t, SameSiteNone, back[0].SameSite)
}
