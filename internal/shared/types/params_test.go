package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	params := map[string]interface{}{
		"name":  "notes.txt",
		"limit": float64(25),
		"depth": "3",
		"bad":   "x",
		"flag":  true,
		"sflag": "false",
		"list":  []interface{}{"a", 1, "b"},
	}

	assert.Equal(t, "notes.txt", GetString(params, "name"))
	assert.Equal(t, "", GetString(params, "limit"))

	assert.Equal(t, 25, GetInt(params, "limit", 0))
	assert.Equal(t, 3, GetInt(params, "depth", 0))
	assert.Equal(t, 7, GetInt(params, "bad", 7))
	assert.Equal(t, 7, GetInt(params, "missing", 7))

	assert.True(t, GetBool(params, "flag", false))
	assert.False(t, GetBool(params, "sflag", true))
	assert.True(t, GetBool(params, "missing", true))

	assert.Equal(t, []string{"a", "b"}, GetStrings(params, "list"))
	assert.Nil(t, GetStrings(params, "missing"))
}

func TestContextUser(t *testing.T) {
	var nilCtx *Context
	assert.Equal(t, "", nilCtx.User())

	id := "usr_1"
	assert.Equal(t, "usr_1", (&Context{UserID: &id}).User())
}
