package modver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestComputeDigestDeterminism verifies that the snapshot digest does not depend on
// map iteration order. We repeat this 1,000 times to ensure stability.
func TestComputeDigestDeterminism(t *testing.T) {
	build := func() map[string]ChannelVersionSet {
		return map[string]ChannelVersionSet{
			"FooModule_Zebra": {ChannelTrunk: "z|1", ChannelBeta: "None", ChannelRelease: "z0|0"},
			"FooModule_Apple": {ChannelTrunk: "a|2", ChannelHistory1: "a0|0"},
			"Module_shared-x": {ChannelRelease: "x|3"},
			"Module_foo-html": {ChannelTrunk: "f|4", ChannelBeta: "f|4", ChannelRelease: "f|4"},
		}
	}

	expected := ComputeDigest(build())
	require.Len(t, expected, 16)

	for i := 0; i < 1000; i++ {
		got := ComputeDigest(build())
		require.Equal(t, expected, got, "iteration %d: non-deterministic digest", i)
	}

	changed := build()
	changed["FooModule_Apple"][ChannelTrunk] = "a|3"
	require.NotEqual(t, expected, ComputeDigest(changed))
}
