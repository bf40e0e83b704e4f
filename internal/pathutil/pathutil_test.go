package pathutil_test

import (
	"testing"

	"github.com/collabcore/collabcore/internal/pathutil"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		path  string
		valid bool
	}{
		{"root", "/", true},
		{"simple file", "/a.txt", true},
		{"nested file", "/dir/sub/file.go", true},
		{"missing leading slash", "a.txt", false},
		{"trailing slash", "/dir/", false},
		{"empty", "", false},
		{"dot segment", "/dir/./file.go", false},
		{"dotdot segment", "/dir/../file.go", false},
		{"double slash", "/dir//file.go", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := pathutil.Validate(c.path)
			if c.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, pathutil.ErrInvalidPath)
			}
		})
	}
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, pathutil.HasPrefix("/a/b.txt", "/a"))
	assert.True(t, pathutil.HasPrefix("/a", "/a"))
	assert.False(t, pathutil.HasPrefix("/ab/c.txt", "/a"))
	assert.True(t, pathutil.HasPrefix("/anything", "/"))
}
