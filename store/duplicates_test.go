package store_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/seonyeopkim/asyncaction/store"
)

func TestAllowDuplicates_SetBumpsVersion(t *testing.T) {
	d := store.Duplicates("a")
	assert.Equal(t, uint64(0), d.Version())

	d.Set("a")
	d.Set("a")
	assert.Equal(t, "a", d.Get())
	assert.Equal(t, uint64(2), d.Version())
}

func TestAllowDuplicates_EqualIgnoresVersion(t *testing.T) {
	a := store.Duplicates(1)
	b := store.Duplicates(1)
	b.Set(1)

	assert.True(t, a.Equal(b))
	assert.True(t, cmp.Equal(a, b), "go-cmp honours the Equal method")

	b.Set(2)
	assert.False(t, a.Equal(b))
}

func TestAllowDuplicates_Encoding(t *testing.T) {
	type state struct {
		Log store.AllowDuplicates[string] `json:"log" yaml:"log"`
	}
	var s state
	s.Log.Set("0")

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"log":"0"}`, string(raw))

	out, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "log: \"0\"\n", string(out))

	var decoded state
	require.NoError(t, yaml.Unmarshal([]byte("log: hello\n"), &decoded))
	assert.Equal(t, "hello", decoded.Log.Get())
	assert.Equal(t, uint64(0), decoded.Log.Version())

	require.NoError(t, json.Unmarshal([]byte(`{"log":"x"}`), &decoded))
	assert.Equal(t, "x", decoded.Log.Get())
}
