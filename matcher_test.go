package modver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseModuleName(t *testing.T) {
	n, ok := ParseModuleName("FooModule_Alpha")
	assert.True(t, ok)
	assert.Equal(t, ModuleName{Full: "FooModule_Alpha", Namespace: "Foo", Bare: "Alpha"}, n)

	n, ok = ParseModuleName("Module_shop-html")
	assert.True(t, ok)
	assert.Equal(t, "", n.Namespace)
	assert.Equal(t, "shop-html", n.Bare)

	for _, bad := range []string{"", "Module_", "Foo_Alpha", "Foo1Module_Alpha", "featureX"} {
		_, ok := ParseModuleName(bad)
		assert.False(t, ok, bad)
	}
}

func TestModuleName_Visible(t *testing.T) {
	cases := []struct {
		name    string
		product string
		want    bool
	}{
		{"FooModule_Alpha", "Foo", true},
		{"FooModule_Alpha", "foo", true},
		{"BarModule_Alpha", "Foo", false},
		{"Module_shop-html", "Shop", true},
		{"Module_shopping-html", "shop", false},
		{"Module_shared-ui", "Shop", true},
		{"SharedModule_Button", "Shop", true},
		{"Module_admin-html", "Shop", false},
		{"FooModule_Alpha", "", false},
		{"BarModule_sharedX", "Foo", false},
		{"BarModule_shared-x", "Foo", false},
		{"BarModule_foo-x", "Foo", false},
		{"Module_sharedIcons", "Foo", true},
	}
	for _, c := range cases {
		n, ok := ParseModuleName(c.name)
		assert.True(t, ok, c.name)
		assert.Equal(t, c.want, n.Visible(c.product), "%s / %s", c.name, c.product)
	}
}

func TestFlagBasename(t *testing.T) {
	assert.Equal(t, "FooModule_Alpha", FlagBasename("arn:aws:evidently:us-east-1:1:project/p/feature/FooModule_Alpha"))
	assert.Equal(t, "FooModule_Alpha", FlagBasename("FooModule_Alpha"))
}

func TestParseVersionEntry(t *testing.T) {
	want := VersionEntry{Hash: "h1", Time: "2024-01-01T00:00:00Z"}
	for _, raw := range []string{
		"h1|2024-01-01T00:00:00Z",
		"h1 | 2024-01-01T00:00:00Z",
		"h1\u00a0|\u00a02024-01-01T00:00:00Z",
		"h1 \u00a0| \u00a02024-01-01T00:00:00Z",
		"h1*|*2024-01-01T00:00:00Z",
		"  h1 | 2024-01-01T00:00:00Z  ",
		"h1|2024-01-01T00:00:00Z|ignored",
	} {
		got, ok := ParseVersionEntry(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	got, ok := ParseVersionEntry("h3")
	assert.True(t, ok)
	assert.Equal(t, VersionEntry{Hash: "h3"}, got)

	for _, bad := range []string{"", "None", " | 2024-01-01"} {
		_, ok := ParseVersionEntry(bad)
		assert.False(t, ok, bad)
	}
}

func TestChannelVersionSet_Lookup(t *testing.T) {
	set := ChannelVersionSet{
		ChannelTrunk:   "h1|t1",
		ChannelBeta:    ValueNone,
		ChannelRelease: "",
	}
	e, ok := set.Lookup(ChannelTrunk)
	assert.True(t, ok)
	assert.Equal(t, VersionEntry{Hash: "h1", Time: "t1"}, e)

	for _, ch := range []Channel{ChannelBeta, ChannelRelease, ChannelHistory1} {
		_, ok := set.Lookup(ch)
		assert.False(t, ok, ch)
	}
}

func TestChannel_Known(t *testing.T) {
	for _, ch := range []Channel{ChannelTrunk, ChannelBeta, ChannelRelease, ChannelHistory1, ChannelHistory2} {
		assert.True(t, ch.Known(), ch)
	}
	assert.False(t, Channel("staging").Known())
	assert.False(t, ChannelHistory1.Valid())
}
