package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Host ")
	require.NoError(t, err)
	assert.Equal(t, RoleHost, r)

	_, err = ParseRole("owner")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleHost.Valid())
	assert.True(t, RoleEditor.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("HOST").Valid())
	assert.False(t, Role(" editor").Valid())
	assert.False(t, Role("").Valid())
}

func TestCanMutate(t *testing.T) {
	assert.True(t, RoleHost.CanMutate())
	assert.True(t, RoleEditor.CanMutate())
	assert.False(t, RoleViewer.CanMutate())
	assert.False(t, Role("").CanMutate())
}

func TestLanguageFor(t *testing.T) {
	cases := map[string]string{
		"main.js":    "javascript",
		"App.TS":     "typescript",
		"x.py":       "python",
		"index.html": "html",
		"s.css":      "css",
		"p.json":     "json",
		"Main.java":  "java",
		"a.cpp":      "cpp",
		"b.cs":       "csharp",
		"c.php":      "php",
	}
	for name, want := range cases {
		got, ok := LanguageFor(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := LanguageFor("readme.md")
	assert.False(t, ok)
}

func TestValidateFileName(t *testing.T) {
	_, err := ValidateFileName("")
	require.ErrorIs(t, err, ErrInvalidFileName)
	_, err = ValidateFileName(".js")
	require.ErrorIs(t, err, ErrInvalidFileName)
	_, err = ValidateFileName("a.rb")
	require.ErrorIs(t, err, ErrUnsupportedExtension)

	lang, err := ValidateFileName("ok.php")
	require.NoError(t, err)
	assert.Equal(t, "php", lang)
}

func TestHostCount(t *testing.T) {
	ps := []Participant{{Role: RoleHost}, {Role: RoleEditor}, {Role: RoleHost}}
	assert.Equal(t, 2, HostCount(ps))
}
