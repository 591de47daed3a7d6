package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNormalizeVersion(t *testing.T) {
	cases := map[string]string{
		"18":     "18",
		" 18 ":   "18",
		"18.0":   "18",
		"018":    "18",
		"18.10":  "18.1",
		"18.x":   "18.x",
		"lts/*":  "lts/*",
		"NaN":    "NaN",
		"v18":    "v18",
		"20.5.1": "20.5.1",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeVersion(in), "input %q", in)
	}
}

func TestShouldRemove(t *testing.T) {
	remove := VersionList{"18"}

	assert.True(t, ShouldRemove([]string{"18"}, remove))
	assert.True(t, ShouldRemove([]string{"16", "18", "20"}, remove))
	assert.True(t, ShouldRemove([]string{"18.0"}, remove))
	assert.False(t, ShouldRemove([]string{"20", "22"}, remove))
	assert.False(t, ShouldRemove([]string{"18.x"}, remove))
	assert.False(t, ShouldRemove(nil, remove))
	assert.False(t, ShouldRemove([]string{"18"}, nil))
}

func TestShouldRemoveNumberAndString(t *testing.T) {
	for _, src := range []string{"v: [18]", `v: ["18"]`, "v: ['18']"} {
		var doc struct {
			V yaml.Node `yaml:"v"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
		values, ok := scalarValues(Node{raw: &doc.V})
		require.True(t, ok)
		assert.True(t, ShouldRemove(values, VersionList{"18"}), src)
	}
}

func TestVersionListUnmarshal(t *testing.T) {
	var cfg struct {
		Remove  VersionList `yaml:"remove"`
		Install VersionList `yaml:"install"`
		Single  VersionList `yaml:"single"`
	}
	src := "remove: [16, \"18\"]\ninstall:\n  - 20\n  - lts/*\nsingle: 22\n"
	require.NoError(t, yaml.Unmarshal([]byte(src), &cfg))

	assert.Equal(t, VersionList{"16", "18"}, cfg.Remove)
	assert.Equal(t, VersionList{"20", "lts/*"}, cfg.Install)
	assert.Equal(t, VersionList{"22"}, cfg.Single)

	var bad struct {
		Remove VersionList `yaml:"remove"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("remove:\n  a: 1\n"), &bad))
	assert.Error(t, yaml.Unmarshal([]byte("remove:\n  - [1]\n"), &bad))
}

func TestParseVersionList(t *testing.T) {
	assert.Equal(t, VersionList{"20", "22", "24"}, ParseVersionList("20,22, 24"))
	assert.Nil(t, ParseVersionList(" , "))

	var l VersionList
	require.NoError(t, l.Set("16 18"))
	assert.Equal(t, "16,18", l.String())
}

func TestVersionSetValidate(t *testing.T) {
	assert.NoError(t, VersionSet{Remove: VersionList{"18"}, Install: VersionList{"20", "22"}}.Validate())
	assert.Error(t, VersionSet{Remove: VersionList{"18"}}.Validate())
	assert.Error(t, VersionSet{Install: VersionList{"20", " "}}.Validate())
	assert.Error(t, VersionSet{Remove: VersionList{"18"}, Install: VersionList{"18.0", "20"}}.Validate())
}

func TestVersionSetLatest(t *testing.T) {
	assert.Equal(t, "24", VersionSet{Install: VersionList{"20", "22", "24"}}.Latest())
	assert.Equal(t, "", VersionSet{}.Latest())
}
