package aspen

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-aspen/raw"
	"github.com/goliatone/go-aspen/raw/yamlraw"
)

func mustParse(t *testing.T, text string) *raw.Object {
	t.Helper()
	node, err := yamlraw.New().Parse([]byte(text), "test.yml")
	require.NoError(t, err)
	obj, err := raw.Expect[*raw.Object](node)
	require.NoError(t, err)
	return obj
}

func serverSchema() *Schema {
	tls := NewSchema("", nil)
	tls.MustAddProperty(Simple[bool]("enabled").MustBuild())
	tls.MustAddProperty(Simple[string]("cert").Default("server.pem").MustBuild())

	server := NewSchema("", nil)
	server.MustAddProperty(Number[int]("port").With(MinMax(1, 65535)).MustBuild())
	server.MustAddProperty(Section("tls", tls).MustBuild())

	root := NewSchema("app", nil)
	root.MustAddProperty(Simple[string]("host").Default("localhost").Comment("bind address").MustBuild())
	root.MustAddProperty(Collection[int]("ids", Number[int]("ids")).MustBuild())
	root.MustAddProperty(Section("server", server).MustBuild())
	return root
}

func TestLoadAndEmitHandBuiltSchema(t *testing.T) {
	root := serverSchema()
	doc := mustParse(t, `host: example
ids: [1, 2, 3]
server:
  port: 9000
  tls:
    enabled: true
`)
	require.NoError(t, root.Load(doc))

	assert.Equal(t, "example", mustProperty(t, root, "host").Get())
	assert.Equal(t, []int{1, 2, 3}, mustProperty(t, root, "ids").Get())
	port, ok := root.FindProperty("server/port")
	require.True(t, ok)
	assert.Equal(t, 9000, port.Get())

	emitted, err := root.Emit()
	require.NoError(t, err)
	want := map[string]any{
		"host": "example",
		"ids":  []any{int64(1), int64(2), int64(3)},
		"server": map[string]any{
			"port": int64(9000),
			"tls": map[string]any{
				"enabled": true,
				"cert":    "server.pem",
			},
		},
	}
	if diff := cmp.Diff(want, emitted.ToValue()); diff != "" {
		t.Fatalf("emitted tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"host", "ids", "server"}, emitted.Keys())

	host, _ := emitted.Get("host")
	assert.Equal(t, []string{"bind address"}, raw.MetaOf(host).BlockComment)
	assert.Equal(t, raw.EmittedSource{Ref: "host"}, raw.SourceOf(host))
	serverNode, _ := emitted.Get("server")
	tlsNode, _ := serverNode.(*raw.Object).Get("tls")
	enabled, _ := tlsNode.(*raw.Object).Get("enabled")
	assert.Equal(t, raw.EmittedSource{Ref: "server.tls.enabled"}, raw.SourceOf(enabled))
}

func TestEmitThenLoadRoundTrip(t *testing.T) {
	source := serverSchema()
	require.NoError(t, mustProperty(t, source, "ids").Set([]int{3, 1, 2}))
	require.NoError(t, mustProperty(t, source, "host").Set("db.internal"))
	emitted, err := source.Emit()
	require.NoError(t, err)

	data, err := yamlraw.New().Serialize(emitted)
	require.NoError(t, err)

	target := serverSchema()
	require.NoError(t, target.Load(mustParse(t, string(data))))
	assert.Equal(t, []int{3, 1, 2}, mustProperty(t, target, "ids").Get())
	assert.Equal(t, "db.internal", mustProperty(t, target, "host").Get())
}

func TestLoadIsStaged(t *testing.T) {
	root := serverSchema()
	require.NoError(t, mustProperty(t, root, "host").Set("before"))

	err := root.Load(mustParse(t, "host: after\nserver:\n  port: 70000\n"))
	require.Error(t, err)

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, []string{"server.port"}, lerr.Paths())
	assert.Contains(t, err.Error(), "number must be between 1.0 and 65535.0")
	assert.Equal(t, "before", mustProperty(t, root, "host").Get())
}

func TestLoadRestoresWritesWhenCommitFails(t *testing.T) {
	region := Simple[string]("region").Shared().MustBuild()
	schema := NewSchema("s", nil)
	schema.MustAddProperty(Number[int]("a").MustBuild())
	schema.MustAddProperty(region)
	schema.MustAddProperty(Number[int]("b").Accessor(FuncAccessor{
		GetFunc: func(*Schema) any { return 2 },
		SetFunc: func(*Schema, any) error { return errors.New("read only") },
	}).MustBuild())
	require.NoError(t, mustProperty(t, schema, "a").Set(1))

	err := schema.Load(mustParse(t, "a: 5\nregion: eu\nb: 6\n"))

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, []string{"b"}, lerr.Paths())
	assert.Contains(t, err.Error(), "read only")
	assert.Equal(t, 1, mustProperty(t, schema, "a").Get())
	assert.False(t, region.HasIn(schema), "an absent shared value stays absent")
	_, traced := schema.sources["a"]
	assert.False(t, traced)
}

func TestLoadLeavesAbsentKeysUntouched(t *testing.T) {
	root := serverSchema()
	require.NoError(t, mustProperty(t, root, "ids").Set([]int{7}))
	require.NoError(t, root.Load(mustParse(t, "host: other\n")))
	assert.Equal(t, []int{7}, mustProperty(t, root, "ids").Get())
}

func TestLoadReportsElementPath(t *testing.T) {
	root := serverSchema()
	err := root.Load(mustParse(t, "ids: [1, x, 3]\n"))

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	require.Len(t, lerr.Errors, 1)
	assert.Equal(t, "ids[1]", lerr.Errors[0].Path)
	assert.Equal(t, raw.FileSource{File: "test.yml", Line: 1, Column: 10}, lerr.Errors[0].Source)

	var verr *ValueError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "x", verr.Value)
}

func TestLoadRejectsWrongNodeKind(t *testing.T) {
	root := serverSchema()
	err := root.Load(mustParse(t, "host: [a, b]\n"))
	var mismatch *raw.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, raw.KindScalar, mismatch.Expected)

	err = root.Load(mustParse(t, "server: 5\n"))
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, raw.KindObject, mismatch.Expected)
}

func TestLoadFailsFastByDefault(t *testing.T) {
	type host struct {
		A int `max:"1"`
		B int `max:"1"`
	}
	schema := NewSchema("h", &host{})
	require.NoError(t, New().Compose(schema))
	err := schema.Load(mustParse(t, "a: 5\nb: 5\n"))

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, []string{"a"}, lerr.Paths())
}

func TestLoadCollectsErrors(t *testing.T) {
	type host struct {
		A int `max:"1"`
		B int `max:"1"`
		C int
	}
	h := &host{C: 3}
	schema := NewSchema("h", h)
	require.NoError(t, New(WithCollectLoadErrors(true)).Compose(schema))
	err := schema.Load(mustParse(t, "a: 5\nb: 5\nc: 4\n"))

	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, []string{"a", "b"}, lerr.Paths())
	assert.Equal(t, 3, h.C)
}

func TestEnumNullLoadsAsZero(t *testing.T) {
	type host struct {
		Mode Mode
	}
	h := &host{Mode: ModeProd}
	schema := NewSchema("h", h)
	require.NoError(t, newTestProvider().Compose(schema))

	require.NoError(t, schema.Load(mustParse(t, "mode: null\n")))
	assert.Equal(t, ModeDev, h.Mode)

	require.NoError(t, schema.Load(mustParse(t, "mode: PROD\n")))
	assert.Equal(t, ModeProd, h.Mode)

	err := schema.Load(mustParse(t, "mode: staging\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enum value for aspen.Mode by name 'staging'")
}

func TestAddPropertyRejectsDuplicates(t *testing.T) {
	root := NewSchema("r", nil)
	root.MustAddProperty(Simple[int]("a").MustBuild())
	err := root.AddProperty(Simple[string]("a").MustBuild())
	require.ErrorIs(t, err, ErrDuplicateProperty)
}

func TestFindSectionAndProperty(t *testing.T) {
	root := serverSchema()

	tls, ok := root.FindSection("server/tls")
	require.True(t, ok)
	assert.Equal(t, "server.tls", tls.Path())
	assert.Same(t, root, tls.Root())

	up, ok := tls.FindSection("..")
	require.True(t, ok)
	assert.Equal(t, "server", up.Name())

	abs, ok := tls.FindProperty("/host")
	require.True(t, ok)
	assert.Equal(t, "host", abs.Name())

	rel, ok := tls.FindProperty("../port")
	require.True(t, ok)
	assert.Equal(t, "port", rel.Name())

	_, ok = root.FindSection("host")
	assert.False(t, ok, "host is not a section")
	_, ok = root.FindProperty("server/missing")
	assert.False(t, ok)

	var visited []string
	require.NoError(t, root.Walk(func(s *Schema) error {
		visited = append(visited, s.Path())
		return nil
	}))
	assert.Equal(t, []string{"", "server", "server.tls"}, visited)
}

func TestVirtualSection(t *testing.T) {
	root := serverSchema()
	extra, err := root.VirtualSection("extra")
	require.NoError(t, err)
	assert.True(t, extra.Virtual())
	assert.Nil(t, extra.Instance())
	extra.MustAddProperty(Simple[string]("note").MustBuild())

	again, err := root.VirtualSection("extra")
	require.NoError(t, err)
	assert.Same(t, extra, again)

	require.NoError(t, root.Load(mustParse(t, "extra:\n  note: hello\n")))
	note, ok := root.FindProperty("extra/note")
	require.True(t, ok)
	assert.Equal(t, "hello", note.Get())

	_, err = root.VirtualSection("host")
	require.Error(t, err)
}

func TestTraceReportsLoadedSource(t *testing.T) {
	host, schema := composeApp(t)
	doc, err := yamlraw.New().Parse([]byte("server:\n  port: 9000\n"), "app.yml")
	require.NoError(t, err)
	require.NoError(t, schema.Load(doc.(*raw.Object)))
	assert.Equal(t, 9000, host.Server.Port)

	trace, err := schema.Trace("server/port")
	require.NoError(t, err)
	assert.Equal(t, Trace{
		Path:   "server.port",
		Value:  9000,
		Source: "file(app.yml) line(2) column(9)",
		Loaded: true,
		Stored: true,
	}, trace)

	untouched, err := schema.Trace("debug")
	require.NoError(t, err)
	assert.False(t, untouched.Loaded)
	assert.Equal(t, false, untouched.Value)

	_, err = schema.Trace("server/nope")
	require.Error(t, err)
}

func TestTraceJSONRoundTrip(t *testing.T) {
	trace := Trace{Path: "server.port", Value: "9000", Source: "file(app.yml) line(2) column(9)", Loaded: true, Stored: true}
	payload, err := trace.ToJSON()
	require.NoError(t, err)

	decoded, err := TraceFromJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, trace, decoded)

	_, err = TraceFromJSON([]byte("{"))
	require.Error(t, err)
}

func TestEmitWrapsPropertyErrors(t *testing.T) {
	root := NewSchema("r", nil)
	bad := Number[int]("n").MustBuild()
	root.MustAddProperty(bad)
	require.NoError(t, bad.Set("not a number"))

	_, err := root.Emit()
	var perr *PropertyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "n", perr.Path)
	assert.True(t, errors.As(err, new(*ValueError)))
}
