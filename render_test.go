package modver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_JSON(t *testing.T) {
	v := Versions{
		"header": {Hash: "h1", Time: "2024-01-01T00:00:00Z"},
		"Alpha":  {Hash: "a1", Time: ""},
	}
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dataType":"Map","value":[
		["Alpha",{"hash":"a1","time":""}],
		["header",{"hash":"h1","time":"2024-01-01T00:00:00Z"}]
	]}`, string(data))

	var back Versions
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)

	assert.Error(t, json.Unmarshal([]byte(`{"dataType":"Set","value":[]}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"dataType":"Map","value":[["only-key"]]}`), &back))
}

func TestEncodeClientConfig(t *testing.T) {
	data, err := EncodeClientConfig(map[string]any{
		"app":      "foo",
		"features": TaggedSet{"search", "checkout"},
		"limits":   TaggedMap{"upload": 10, "depth": 3},
	}, Versions{"header": {Hash: "h1", Time: "t1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"app": "foo",
		"features": {"dataType":"Set","value":["checkout","search"]},
		"limits": {"dataType":"Map","value":[["depth",3],["upload",10]]},
		"components": {"dataType":"Map","value":[["header",{"hash":"h1","time":"t1"}]]}
	}`, string(data))

	data, err = EncodeClientConfig(nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"components":{"dataType":"Map","value":[]}}`, string(data))
}

func TestDocumentVersion(t *testing.T) {
	versions := Versions{"foo-html": {Hash: "d1", Time: "t"}, "bar-html": {}}

	entry, err := DocumentVersion("Foo", versions)
	require.NoError(t, err)
	assert.Equal(t, "d1", entry.Hash)

	_, err = DocumentVersion("bar", versions)
	assert.ErrorIs(t, err, ErrDocumentVersionMissing)
	_, err = DocumentVersion("baz", versions)
	assert.ErrorIs(t, err, ErrDocumentVersionMissing)
}
