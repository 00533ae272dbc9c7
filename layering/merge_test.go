package layering

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-aspen/raw"
)

func defaultsTree() *raw.Object {
	port := raw.NewScalar(int64(80))
	port.BlockComment = []string{"listen port"}
	server := raw.NewObject(
		raw.NewPair("host", raw.NewScalar("0.0.0.0")),
		raw.NewPair("port", port),
	)
	server.BlockComment = []string{"server block"}
	return raw.NewObject(
		raw.NewPair("server", server),
		raw.NewPair("tags", raw.NewList(raw.NewScalar("a"))),
		raw.NewPair("debug", raw.NewScalar(false)),
	)
}

func TestLayerStrongestWins(t *testing.T) {
	emitted := raw.NewObject(
		raw.NewPair("debug", raw.NewScalar(true)),
		raw.NewPair("server", raw.NewObject(raw.NewPair("port", raw.NewScalar(int64(8080))))),
		raw.NewPair("tags", raw.NewList(raw.NewScalar("b"), raw.NewScalar("c"))),
		raw.NewPair("extra", raw.NewScalar("x")),
	)

	merged := Layer(emitted, defaultsTree())

	want := map[string]any{
		"server": map[string]any{"host": "0.0.0.0", "port": int64(8080)},
		"tags":   []any{"b", "c"},
		"debug":  true,
		"extra":  "x",
	}
	if diff := cmp.Diff(want, merged.ToValue()); diff != "" {
		t.Fatalf("layered tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"server", "tags", "debug", "extra"}, merged.Keys())
}

func TestLayerKeepsWeakerComments(t *testing.T) {
	emitted := raw.NewObject(
		raw.NewPair("server", raw.NewObject(raw.NewPair("port", raw.NewScalar(int64(9000))))),
	)
	merged := Layer(emitted, defaultsTree())

	server, ok := merged.Get("server")
	require.True(t, ok)
	assert.Equal(t, []string{"server block"}, raw.MetaOf(server).BlockComment)
	port, ok := server.(*raw.Object).Get("port")
	require.True(t, ok)
	assert.Equal(t, int64(9000), port.ToValue())
	assert.Equal(t, []string{"listen port"}, raw.MetaOf(port).BlockComment)
}

func TestLayerStrongerCommentsReplace(t *testing.T) {
	port := raw.NewScalar(int64(1))
	port.BlockComment = []string{"explicit"}
	emitted := raw.NewObject(raw.NewPair("server", raw.NewObject(raw.NewPair("port", port))))
	merged := Layer(emitted, defaultsTree())

	server, _ := merged.Get("server")
	got, _ := server.(*raw.Object).Get("port")
	assert.Equal(t, []string{"explicit"}, raw.MetaOf(got).BlockComment)
}

func TestLayerDoesNotMutateInputs(t *testing.T) {
	defaults := defaultsTree()
	before := defaults.ToValue()
	emitted := raw.NewObject(raw.NewPair("server", raw.NewObject(raw.NewPair("host", raw.NewScalar("h")))))

	merged := Layer(emitted, defaults)
	merged.Put("debug", raw.NewScalar("changed"))

	assert.Equal(t, before, defaults.ToValue())
	assert.Equal(t, map[string]any{"server": map[string]any{"host": "h"}}, emitted.ToValue())
}

func TestLayerSkipsUndefinedAndNilLayers(t *testing.T) {
	emitted := raw.NewObject(raw.NewPair("debug", raw.NewUndefined()))
	merged := Layer(nil, emitted, nil, defaultsTree())
	assert.Equal(t, false, merged.ToValue().(map[string]any)["debug"])

	assert.Equal(t, 0, Layer().Len())
	assert.Nil(t, Clone(nil))
}

func TestLayerKeepsWeakerStringStyle(t *testing.T) {
	weak := raw.NewObject(
		raw.NewPair("name", raw.NewStyledScalar("old", raw.StyleDoubleQuoted)),
		raw.NewPair("count", raw.NewStyledScalar("7", raw.StyleDoubleQuoted)),
	)
	strong := raw.NewObject(
		raw.NewPair("name", raw.NewStyledScalar("new", raw.StyleSingleQuoted)),
		raw.NewPair("count", raw.NewScalar(int64(8))),
	)

	merged := Layer(strong, weak)

	name, _ := merged.Get("name")
	assert.Equal(t, raw.StyleDoubleQuoted, name.(*raw.Scalar).Style())
	assert.Equal(t, "new", name.ToValue())
	count, _ := merged.Get("count")
	assert.Equal(t, raw.StylePlain, count.(*raw.Scalar).Style())
}
