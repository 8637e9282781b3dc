package dialect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullIncludesClassicKeywords(t *testing.T) {
	classic := Classic()
	full := Full()

	for _, kw := range classic.Keywords {
		assert.True(t, full.HasKeyword(kw), "full dialect should retain classic keyword %q", kw)
	}
}

func TestIsIntrinsic(t *testing.T) {
	full := Full()

	ordinal, ok := full.IsIntrinsic("println")
	require.True(t, ok)
	assert.Equal(t, 1, ordinal)

	_, ok = full.IsIntrinsic("nope")
	assert.False(t, ok)
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialect.yaml")

	content := "name: mine\nkeywords: [program, function, let]\nintrinsics: [print]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mine", set.Name)
	assert.True(t, set.HasKeyword("function"))
	assert.False(t, set.HasKeyword("class"))
}

func TestLoadMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: [program]\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestKeywordSetShape(t *testing.T) {
	set := Full().KeywordSet()
	assert.True(t, set["class"])
	assert.False(t, set["nonexistent"])
}
