package aspen

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/goliatone/go-aspen/pkg/activity"
	"github.com/goliatone/go-aspen/pkg/state"
	"github.com/goliatone/go-aspen/raw"
)

type svcConfig struct {
	Name string `doc:"service name"`
	Port int    `default:"8080"`
	Tags []string
}

type seededConfig struct {
	Name string
	Port int
}

func (*seededConfig) AspenDefaults() (fs.FS, string) {
	return fstest.MapFS{
		"seed.yml": {Data: []byte("name: seeded\n# seeded port\nport: 7000\nextra: true\n")},
	}, "seed.yml"
}

type strictConfig struct {
	Name string
}

func (c *strictConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type failingStore struct {
	err error
}

func (s failingStore) Load(context.Context, string) ([]byte, state.Meta, bool, error) {
	return nil, state.Meta{}, false, s.err
}

func (s failingStore) Save(context.Context, string, []byte) (state.Meta, error) {
	return state.Meta{}, s.err
}

func (s failingStore) Exists(context.Context, string) (bool, error) { return false, s.err }

func stored(t *testing.T, store state.Store, path string) string {
	t.Helper()
	data, _, ok, err := store.Load(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok, "nothing stored at %s", path)
	return string(data)
}

func putDocument(t *testing.T, store state.Store, path, body string) {
	t.Helper()
	_, err := store.Save(context.Background(), path, []byte(body))
	require.NoError(t, err)
}

func TestProfileSaveThenLoad(t *testing.T) {
	store := state.NewMemoryStore()
	provider := newTestProvider(WithStore(store))

	host := &appConfig{Name: "billing", Mode: ModeProd, Tags: []string{"a", "b"}, Debug: true}
	profile, err := provider.ComposeProfile("app", host, "app.yml")
	require.NoError(t, err)
	host.Server.Limits.MaxConns = 10
	host.Server.Port = 9443
	require.NoError(t, profile.Save())

	text := stored(t, store, "app.yml")
	assert.Contains(t, text, "# demo application")
	assert.Contains(t, text, "# application name\nname: 'billing'")
	assert.Contains(t, text, "mode: 'prod'")
	assert.Contains(t, text, "timeout: '30s'")

	other := newTestProvider(WithStore(store))
	loaded := &appConfig{}
	reloaded, err := other.ComposeProfile("app", loaded, "app.yml")
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, "billing", loaded.Name)
	assert.Equal(t, ModeProd, loaded.Mode)
	assert.Equal(t, []string{"a", "b"}, loaded.Tags)
	assert.True(t, loaded.Debug)
	assert.Equal(t, 9443, loaded.Server.Port)
	assert.Equal(t, 10, loaded.Server.Limits.MaxConns)
	assert.Equal(t, "localhost", loaded.Server.Host)
}

func TestProfileArrayRoundTrip(t *testing.T) {
	type weighted struct {
		Weights [3]int
	}
	store := state.NewMemoryStore()
	profile, err := New(WithStore(store)).ComposeProfile("w", &weighted{Weights: [3]int{1, 2, 3}}, "w.yml")
	require.NoError(t, err)
	require.NoError(t, profile.Save())

	loaded := &weighted{}
	reloaded, err := New(WithStore(store)).ComposeProfile("w", loaded, "w.yml")
	require.NoError(t, err)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, [3]int{1, 2, 3}, loaded.Weights)

	putDocument(t, store, "w.yml", "weights: [4, 5]\n")
	err = reloaded.Load()
	var verr *ValueError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "list of 3 items", verr.Expectation)
	assert.Equal(t, [3]int{1, 2, 3}, loaded.Weights)
}

func TestProfileLoadMissingDocumentIsNoop(t *testing.T) {
	store := state.NewMemoryStore()
	host := &svcConfig{Name: "kept"}
	profile, err := New(WithStore(store)).ComposeProfile("svc", host, "svc.yml")
	require.NoError(t, err)

	require.NoError(t, profile.Load())
	assert.Equal(t, "kept", host.Name)
	assert.Empty(t, store.Paths())
}

func TestProfileRequiresCompose(t *testing.T) {
	provider := New(WithStore(state.NewMemoryStore()))
	profile, err := provider.NewProfile("svc", &svcConfig{}, "svc.yml")
	require.NoError(t, err)

	require.ErrorIs(t, profile.Load(), ErrNotComposed)
	require.ErrorIs(t, profile.Save(), ErrNotComposed)
	assert.Nil(t, profile.Schema())

	require.NoError(t, profile.Compose())
	require.ErrorIs(t, profile.Compose(), ErrAlreadyComposed)

	got, ok := provider.Profile("svc")
	require.True(t, ok)
	assert.Same(t, profile, got)
}

func TestNewProfileValidatesName(t *testing.T) {
	provider := New()
	_, err := provider.NewProfile("", &svcConfig{}, "x.yml")
	require.Error(t, err)

	_, err = provider.NewProfile("svc", &svcConfig{}, "x.yml")
	require.NoError(t, err)
	_, err = provider.NewProfile("svc", &svcConfig{}, "y.yml")
	require.EqualError(t, err, `aspen: profile "svc" already registered`)
}

func TestComposeProfileFailureReleasesName(t *testing.T) {
	type bad struct {
		Port int `min:"abc"`
	}
	type good struct {
		Port int `min:"1"`
	}
	provider := New()
	_, err := provider.ComposeProfile("x", &bad{}, "x.yml")
	require.Error(t, err)
	_, ok := provider.Profile("x")
	assert.False(t, ok)

	profile, err := provider.ComposeProfile("x", &good{}, "x.yml")
	require.NoError(t, err)
	got, ok := provider.Profile("x")
	require.True(t, ok)
	assert.Same(t, profile, got)
}

func TestProfileRejectedValueKeepsSiblings(t *testing.T) {
	type limits struct {
		A float64 `min:"0" max:"500"`
		B float64
	}
	store := state.NewMemoryStore()
	putDocument(t, store, "limits.yml", "a: 600\nb: 2\n")
	host := &limits{A: 10, B: 1}
	profile, err := New(WithStore(store)).ComposeProfile("limits", host, "limits.yml")
	require.NoError(t, err)

	err = profile.Load()
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, []string{"a"}, lerr.Paths())
	assert.Equal(t, "limits", lerr.Profile)
	assert.Equal(t, "limits.yml", lerr.File)
	assert.Contains(t, err.Error(), "number must be between 0.0 and 500.0")
	assert.Equal(t, 10.0, host.A)
	assert.Equal(t, 1.0, host.B)
}

func TestProfileLoadRejectsNonObjectDocument(t *testing.T) {
	store := state.NewMemoryStore()
	putDocument(t, store, "svc.yml", "- a\n- b\n")
	profile, err := New(WithStore(store)).ComposeProfile("svc", &svcConfig{}, "svc.yml")
	require.NoError(t, err)

	err = profile.Load()
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.True(t, raw.IsTypeMismatch(err))
}

func TestProfileSavePreservesHandWrittenContent(t *testing.T) {
	store := state.NewMemoryStore()
	putDocument(t, store, "svc.yml", "name: svc\n# keep me\nunknown: 1\nport: 9000\n")
	host := &svcConfig{}
	profile, err := New(WithStore(store)).ComposeProfile("svc", host, "svc.yml")
	require.NoError(t, err)
	require.NoError(t, profile.Load())
	assert.Equal(t, 9000, host.Port)

	host.Name = "svc2"
	require.NoError(t, profile.Save())

	text := stored(t, store, "svc.yml")
	assert.Contains(t, text, "name: svc2\n")
	assert.Contains(t, text, "# keep me\nunknown: 1\n")
	assert.Contains(t, text, "port: 9000\n")
	assert.Less(t, strings.Index(text, "unknown"), strings.Index(text, "port"), "stored key order is kept")
}

func TestProfileSaveWithOverwrite(t *testing.T) {
	store := state.NewMemoryStore()
	putDocument(t, store, "svc.yml", "name: svc\nunknown: 1\n")
	profile, err := New(WithStore(store)).ComposeProfile("svc", &svcConfig{}, "svc.yml", WithOverwrite())
	require.NoError(t, err)
	require.NoError(t, profile.Load())
	require.NoError(t, profile.Save())

	text := stored(t, store, "svc.yml")
	assert.NotContains(t, text, "unknown")
	assert.Contains(t, text, "name: 'svc'")
}

func TestProfileSeedsDefaults(t *testing.T) {
	store := state.NewMemoryStore()
	defaults := fstest.MapFS{"defaults.yml": {Data: []byte("name: seeded\nport: 7000\n")}}
	host := &svcConfig{}
	profile, err := New(WithStore(store)).ComposeProfile("svc", host, "svc.yml", WithDefaults(defaults, "defaults.yml"))
	require.NoError(t, err)

	require.NoError(t, profile.Load())
	assert.Equal(t, "seeded", host.Name)
	assert.Equal(t, 7000, host.Port)
	assert.Equal(t, "name: seeded\nport: 7000\n", stored(t, store, "svc.yml"))
}

func TestProfileMissingDefaultsFile(t *testing.T) {
	profile, err := New(WithStore(state.NewMemoryStore())).ComposeProfile("svc", &svcConfig{}, "svc.yml",
		WithDefaults(fstest.MapFS{}, "missing.yml"))
	require.NoError(t, err)

	err = profile.Load()
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read defaults", ioErr.Op)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFirstSaveLaysOverHostDefaults(t *testing.T) {
	store := state.NewMemoryStore()
	host := &seededConfig{Name: "mine", Port: 1}
	profile, err := New(WithStore(store)).ComposeProfile("seeded", host, "seeded.yml")
	require.NoError(t, err)
	require.NoError(t, profile.Save())

	text := stored(t, store, "seeded.yml")
	assert.Contains(t, text, "name: mine\n")
	assert.Contains(t, text, "# seeded port\nport: 1\n")
	assert.Contains(t, text, "extra: true\n")
}

func TestProfileStoreFailures(t *testing.T) {
	boom := errors.New("disk unavailable")
	profile, err := New(WithStore(failingStore{err: boom})).ComposeProfile("svc", &svcConfig{}, "svc.yml")
	require.NoError(t, err)

	err = profile.Load()
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "load", ioErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, `aspen: load profile "svc" (svc.yml): disk unavailable`, err.Error())

	require.ErrorIs(t, profile.Save(), boom)
}

func TestProfileSaveRunsValidation(t *testing.T) {
	store := state.NewMemoryStore()
	host := &strictConfig{}
	profile, err := New(WithStore(store)).ComposeProfile("strict", host, "strict.yml")
	require.NoError(t, err)

	err = profile.Save()
	require.EqualError(t, err, `aspen: validate profile "strict": name is required`)
	assert.Empty(t, store.Paths())

	host.Name = "ok"
	require.NoError(t, profile.Save())
}

func TestProfileTransformers(t *testing.T) {
	var calls []string
	record := func(name string) NodeTransformer {
		return TransformerFuncs{
			Pre: func(n raw.Node) (raw.Node, error) {
				calls = append(calls, "pre:"+name)
				return n, nil
			},
			Post: func(n raw.Node) (raw.Node, error) {
				calls = append(calls, "post:"+name)
				return n, nil
			},
		}
	}
	rename := TransformerFuncs{Pre: func(n raw.Node) (raw.Node, error) {
		obj := n.(*raw.Object)
		if legacy, ok := obj.Get("service"); ok {
			obj.Remove("service")
			obj.Put("name", raw.Clone(legacy))
		}
		return obj, nil
	}}
	stamp := TransformerFuncs{Post: func(n raw.Node) (raw.Node, error) {
		n.(*raw.Object).Put("generated", raw.NewScalar(true))
		return n, nil
	}}

	store := state.NewMemoryStore()
	putDocument(t, store, "svc.yml", "service: legacy\n")
	host := &svcConfig{}
	provider := New(
		WithStore(store),
		WithTransformer(record("first")),
		WithTransformer(rename),
		WithTransformer(stamp),
		WithTransformer(record("last")),
		WithTransformer(nil),
	)
	profile, err := provider.ComposeProfile("svc", host, "svc.yml", WithOverwrite())
	require.NoError(t, err)

	require.NoError(t, profile.Load())
	assert.Equal(t, "legacy", host.Name)
	require.NoError(t, profile.Save())
	assert.Contains(t, stored(t, store, "svc.yml"), "generated: true")
	assert.Equal(t, []string{"pre:first", "pre:last", "post:last", "post:first"}, calls)

	failing := New(WithStore(store), WithTransformer(TransformerFuncs{
		Pre: func(raw.Node) (raw.Node, error) { return nil, errors.New("bad shape") },
	}))
	broken, err := failing.ComposeProfile("svc", &svcConfig{}, "svc.yml")
	require.NoError(t, err)
	require.ErrorContains(t, broken.Load(), "bad shape")
}

func TestProfileActivityAndLogging(t *testing.T) {
	store := state.NewMemoryStore()
	rec := activity.NewRecorder(nil)
	var logged []OperationEvent
	provider := New(
		WithStore(store),
		WithActivityHooks(activity.Hooks{rec, nil}),
		WithLogger(LoggerFunc(func(e OperationEvent) { logged = append(logged, e) })),
	)
	profile, err := provider.ComposeProfile("svc", &svcConfig{Name: "a"}, "svc.yml")
	require.NoError(t, err)
	require.NoError(t, profile.Save())
	require.NoError(t, profile.Load())

	putDocument(t, store, "svc.yml", "port: nope\n")
	require.Error(t, profile.Load())

	events := rec.Events()
	require.Len(t, events, 4)
	for _, e := range events {
		assert.Equal(t, activity.ObjectTypeProfile, e.ObjectType)
		assert.Equal(t, "svc", e.ObjectID)
		assert.Equal(t, activity.DefaultChannel, e.Channel)
		assert.NotEmpty(t, e.Metadata["operation_id"])
	}
	assert.Equal(t, []string{
		activity.VerbProfileComposed,
		activity.VerbProfileSaved,
		activity.VerbProfileLoaded,
		activity.VerbProfileFailed,
	}, rec.Verbs())
	failed := events[3]
	assert.Equal(t, "load", failed.Metadata["operation"])
	assert.Contains(t, failed.Metadata["error"], "value must be a number")
	assert.Equal(t, 3, events[0].Metadata["properties"])

	require.Len(t, logged, 4)
	assert.Equal(t, []Operation{OpCompose, OpSave, OpLoad, OpLoad}, []Operation{logged[0].Op, logged[1].Op, logged[2].Op, logged[3].Op})
	assert.Error(t, logged[3].Err)
	assert.Len(t, provider.ActivityHooks(), 1)
}

func TestActivityHookErrorsAreLogged(t *testing.T) {
	rec := activity.NewRecorder(errors.New("sink down"))
	var logged []OperationEvent
	provider := New(
		WithStore(state.NewMemoryStore()),
		WithActivityHooks(activity.Hooks{rec}),
		WithActivityChannel("config"),
		WithLogger(LoggerFunc(func(e OperationEvent) { logged = append(logged, e) })),
	)
	_, err := provider.ComposeProfile("svc", &svcConfig{}, "svc.yml")
	require.NoError(t, err)

	require.Len(t, logged, 2)
	assert.NoError(t, logged[0].Err)
	assert.EqualError(t, logged[1].Err, "sink down")
	assert.Equal(t, "config", rec.Events()[0].Channel)
}

func TestPreComposeHooks(t *testing.T) {
	var seen []string
	provider := New(WithStore(state.NewMemoryStore()))
	profile, err := provider.ComposeProfile("svc", &svcConfig{}, "svc.yml",
		WithPreCompose(func(p *Profile) error {
			seen = append(seen, p.Name())
			return nil
		}),
		WithProfileComment("generated by aspen"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc"}, seen)
	assert.Equal(t, []string{"generated by aspen"}, profile.Schema().Comment())

	_, err = provider.ComposeProfile("other", &svcConfig{}, "other.yml",
		WithPreCompose(func(*Profile) error { return errors.New("not ready") }))
	require.EqualError(t, err, `aspen: pre-compose profile "other": not ready`)
}

func TestProfileRoundTripProperty(t *testing.T) {
	word := rapid.StringMatching(`[a-z][a-z0-9-]{0,12}`)
	rapid.Check(t, func(rt *rapid.T) {
		want := svcConfig{
			Name: word.Draw(rt, "name"),
			Port: rapid.IntRange(1, 65535).Draw(rt, "port"),
			Tags: rapid.SliceOfN(word, 0, 4).Draw(rt, "tags"),
		}
		store := state.NewMemoryStore()
		host := want
		profile, err := New(WithStore(store)).ComposeProfile("svc", &host, "svc.yml")
		require.NoError(rt, err)
		require.NoError(rt, profile.Save())

		got := svcConfig{}
		reloaded, err := New(WithStore(store)).ComposeProfile("svc", &got, "svc.yml")
		require.NoError(rt, err)
		require.NoError(rt, reloaded.Load())

		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			rt.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	})
}
