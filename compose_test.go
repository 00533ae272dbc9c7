package aspen

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Mode int

const (
	ModeDev Mode = iota
	ModeProd
)

func (m Mode) String() string {
	switch m {
	case ModeDev:
		return "dev"
	case ModeProd:
		return "prod"
	}
	return "unknown"
}

type limitsConfig struct {
	MaxConns int     `aspen:"max-conns" min:"1" max:"100"`
	Ratio    float64 `range:"[0;1]"`
}

type serverConfig struct {
	Host    string        `default:"localhost" doc:"bind address"`
	Port    int           `range:"[1;65535]" default:"8080"`
	Timeout time.Duration `default:"30s"`
	Limits  limitsConfig  `aspen:"limits,section" doc:"connection limits"`
}

type appConfig struct {
	Name    string `nonnull:"" doc:"application name"`
	Mode    Mode
	Tags    []string
	Ports   []int
	Debug   bool
	Server  *serverConfig `aspen:"server,section"`
	Meta    map[string]string
	Ignored string `aspen:"-"`
	hidden  int
}

func (a *appConfig) AspenComment() []string { return []string{"demo application"} }

func newTestProvider(opts ...Option) *Provider {
	return New(append([]Option{WithEnum(ModeDev, ModeProd)}, opts...)...)
}

func composeApp(t *testing.T, opts ...Option) (*appConfig, *Schema) {
	t.Helper()
	host := &appConfig{}
	schema := NewSchema("app", host)
	require.NoError(t, newTestProvider(opts...).Compose(schema))
	return host, schema
}

func TestKebabCase(t *testing.T) {
	cases := map[string]string{
		"MaxIdleConns": "max-idle-conns",
		"HTTPPort":     "http-port",
		"Name":         "name",
		"snake_case":   "snake-case",
		"IPv4Address":  "i-pv4-address",
		"Port8080":     "port8080",
	}
	for in, want := range cases {
		if got := KebabCase(in); got != want {
			t.Fatalf("KebabCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDescribeRoles(t *testing.T) {
	host := &appConfig{}
	descriptors, err := Describe(host)
	require.NoError(t, err)

	roles := map[string]Role{}
	for _, d := range descriptors {
		roles[d.Name] = d.Role
	}
	assert.Equal(t, map[string]Role{
		"name":   RoleOption,
		"mode":   RoleOption,
		"tags":   RoleOption,
		"ports":  RoleOption,
		"debug":  RoleOption,
		"server": RoleSection,
		"meta":   RoleOption,
	}, roles)
	require.NotNil(t, host.Server, "section pointer is allocated")
	assert.Equal(t, []string{"application name"}, descriptors[0].Comment)
}

func TestDescribeRejectsNonPointerHost(t *testing.T) {
	_, err := Describe(appConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-nil pointer to a struct")
}

func TestDescribeFlattensEmbeddedStructs(t *testing.T) {
	type Common struct {
		Region string
	}
	type host struct {
		Common
		Zone string
	}
	descriptors, err := Describe(&host{})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "region", descriptors[0].Name)
	assert.Equal(t, []int{0, 0}, descriptors[0].Index)
	assert.Equal(t, "zone", descriptors[1].Name)
}

func TestComposeBuildsTypedProperties(t *testing.T) {
	host, schema := composeApp(t)

	assert.Equal(t, StateComposed, schema.State())
	assert.Equal(t, []string{"demo application"}, schema.Comment())

	names := make([]string, 0)
	for _, p := range schema.Properties() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"name", "mode", "tags", "ports", "debug", "server", "meta"}, names)

	mode, _ := schema.Property("mode")
	_, isEnum := mode.Codec().(Enumerated)
	assert.True(t, isEnum)

	tags, _ := schema.Property("tags")
	element, ok := tags.Element()
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[string](), element.Type())

	server, ok := schema.FindSection("server")
	require.True(t, ok)
	assert.Equal(t, "server", server.Path())
	assert.Same(t, host.Server, server.Instance())

	timeout, ok := server.Property("timeout")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[string](), timeout.PrimitiveType())

	maxConns, ok := schema.FindProperty("server/limits/max-conns")
	require.True(t, ok)
	assert.Equal(t, "limits", maxConns.Schema().Name())
	assert.Equal(t, []string{"bind address"}, mustProperty(t, server, "host").Comment())
}

func TestComposeAppliesTagDefaults(t *testing.T) {
	host, schema := composeApp(t)
	server, _ := schema.FindSection("server")

	assert.Equal(t, "localhost", mustProperty(t, server, "host").Get())
	assert.Equal(t, 8080, mustProperty(t, server, "port").Get())
	assert.Equal(t, 30*time.Second, mustProperty(t, server, "timeout").Get())
	assert.Equal(t, 8080, host.Server.Port)
}

func TestComposeTwiceFails(t *testing.T) {
	_, schema := composeApp(t)
	err := New().Compose(schema)
	require.ErrorIs(t, err, ErrAlreadyComposed)
}

func TestComposeAggregatesFailures(t *testing.T) {
	type broken struct {
		A int    `min:"x"`
		B string `pattern:"("`
		C int
	}
	schema := NewSchema("broken", &broken{})
	err := New().Compose(schema)
	require.Error(t, err)

	var cerr *ComposeError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), `composer number: min tag "x" on a`)
	assert.Contains(t, err.Error(), "pattern tag")
	assert.Equal(t, 1, strings.Count(err.Error(), "aspen:"), err.Error())
	assert.Equal(t, StateFailed, schema.State())
}

func TestComposeUnsupportedSection(t *testing.T) {
	type host struct {
		Items []string `aspen:"items,section"`
	}
	err := New().Compose(NewSchema("h", &host{}))
	require.ErrorIs(t, err, ErrUnsupportedSection)
}

func TestOptionComposerOrder(t *testing.T) {
	var calls []string
	record := func(name string, exactness int, opens bool) OptionComposer {
		return OptionComposer{
			Name:      name,
			Exactness: exactness,
			Match:     func(d Descriptor) bool { return d.Name == "value" },
			Open: func(ctx *OptionComposeContext) (*Builder, error) {
				calls = append(calls, "open:"+name)
				if !opens {
					return nil, nil
				}
				return Simple[string](ctx.Descriptor.Name), nil
			},
			Configure: func(*OptionComposeContext, *Builder) error {
				calls = append(calls, "configure:"+name)
				return nil
			},
		}
	}
	type host struct {
		Value string
	}
	provider := New(
		WithOptionComposer(record("loose", 50, true)),
		WithOptionComposer(record("exact", 1, false)),
		WithOptionComposer(record("middle", 20, true)),
	)
	require.NoError(t, provider.Compose(NewSchema("h", &host{})))

	assert.Equal(t, []string{
		"open:exact",
		"open:middle",
		"configure:loose",
		"configure:middle",
		"configure:exact",
	}, calls)
}

func TestCustomComposerAccessorFallsBackToField(t *testing.T) {
	type host struct {
		Level string
	}
	upper := OptionComposer{
		Name:      "upper",
		Exactness: 1,
		Match:     func(d Descriptor) bool { return d.Type.Kind() == reflect.String },
		Configure: func(_ *OptionComposeContext, b *Builder) error {
			b.With(ComponentFunc(func(_ *PropertyContext, v any) (any, error) {
				return strings.ToUpper(v.(string)), nil
			}))
			return nil
		},
	}
	h := &host{}
	schema := NewSchema("h", h)
	require.NoError(t, New(WithOptionComposer(upper)).Compose(schema))
	require.NoError(t, schema.Load(mustParse(t, "level: debug\n")))
	assert.Equal(t, "DEBUG", h.Level)
}

func TestSchemaComposerOrder(t *testing.T) {
	var calls []string
	add := func(name string, exactness int) SchemaComposer {
		return SchemaComposer{
			Name:      name,
			Exactness: exactness,
			Before: func(*ComposeContext, *Schema) error {
				calls = append(calls, "before:"+name)
				return nil
			},
			Compose: func(_ *ComposeContext, s *Schema) error {
				calls = append(calls, "compose:"+name+":"+strings.Join(propertyNames(s), ","))
				return nil
			},
		}
	}
	type host struct {
		A int
	}
	provider := New(WithSchemaComposer(add("wide", 30)), WithSchemaComposer(add("narrow", 10)))
	require.NoError(t, provider.Compose(NewSchema("h", &host{})))

	assert.Equal(t, []string{
		"before:narrow",
		"before:wide",
		"compose:wide:a",
		"compose:narrow:a",
	}, calls)
}

func TestSchemaComposerForMatchesHostType(t *testing.T) {
	type other struct {
		B int
	}
	var seen []string
	c := SchemaComposerFor[limitsConfig]("limits", 1, func(_ *ComposeContext, s *Schema) error {
		seen = append(seen, s.Path())
		return s.AddProperty(Simple[string]("note").Default("virtual").MustBuild())
	})
	_, schema := composeApp(t, WithSchemaComposer(c))
	require.NoError(t, New(WithSchemaComposer(c)).Compose(NewSchema("o", &other{})))

	assert.Equal(t, []string{"server.limits"}, seen)
	note, ok := schema.FindProperty("server/limits/note")
	require.True(t, ok)
	assert.Equal(t, "virtual", note.Get())
}

func TestForkIsUnlinked(t *testing.T) {
	parent := New()
	child := parent.Fork(WithEnum(ModeDev, ModeProd))

	type host struct {
		Mode Mode
	}
	ps := NewSchema("p", &host{})
	require.NoError(t, parent.Compose(ps))
	cs := NewSchema("c", &host{})
	require.NoError(t, child.Compose(cs))

	_, parentEnum := mustProperty(t, ps, "mode").Codec().(Enumerated)
	_, childEnum := mustProperty(t, cs, "mode").Codec().(Enumerated)
	assert.False(t, parentEnum)
	assert.True(t, childEnum)
}

type refHost struct {
	Port   *Ref[int]
	Limit  *Ref[int]
	Server struct {
		Port int
	} `aspen:"server,section"`
}

func TestRefsResolveAfterWalk(t *testing.T) {
	host := &refHost{
		Port:  Find[int]("server/port"),
		Limit: Future[int](Simple[int]("limit").Default(10).MustBuild()),
	}
	schema := NewSchema("refs", host)
	require.NoError(t, New().Compose(schema))

	require.True(t, host.Port.Resolved())
	require.NoError(t, host.Port.Set(9000))
	assert.Equal(t, 9000, host.Server.Port)
	got, err := host.Port.Get()
	require.NoError(t, err)
	assert.Equal(t, 9000, got)

	limit, err := host.Limit.Get()
	require.NoError(t, err)
	assert.Equal(t, 10, limit)
	_, ok := schema.Property("limit")
	assert.True(t, ok)
}

func TestUnresolvedRefFailsCompose(t *testing.T) {
	type host struct {
		Missing *Ref[int]
	}
	h := &host{Missing: Find[int]("nowhere/port")}
	schema := NewSchema("refs", h)
	err := New().Compose(schema)
	require.ErrorIs(t, err, ErrUnresolvedReference)
	assert.False(t, h.Missing.Resolved())
	_, err = h.Missing.Get()
	require.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestRefTypeMismatchFailsCompose(t *testing.T) {
	type host struct {
		Port *Ref[string]
		Real int `aspen:"real"`
	}
	err := New().Compose(NewSchema("refs", &host{Port: Find[string]("real")}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "property type int is not string")
}

func TestPostTasksRunOnlyAfterSuccessfulWalk(t *testing.T) {
	ran := false
	post := SchemaComposer{
		Name: "post",
		Compose: func(ctx *ComposeContext, _ *Schema) error {
			ctx.SchedulePost(func() error {
				ran = true
				return nil
			})
			return nil
		},
	}
	type host struct {
		A int `min:"oops"`
	}
	err := New(WithSchemaComposer(post)).Compose(NewSchema("h", &host{}))
	require.Error(t, err)
	assert.False(t, ran)

	type ok struct {
		A int
	}
	require.NoError(t, New(WithSchemaComposer(post)).Compose(NewSchema("h", &ok{})))
	assert.True(t, ran)
}

func TestDescriberHostSuppliesTable(t *testing.T) {
	host := &describedHost{}
	schema := NewSchema("d", host)
	require.NoError(t, New().Compose(schema))
	require.NoError(t, schema.Load(mustParse(t, "answer: 42\n")))
	assert.Equal(t, 42, host.value)
}

type describedHost struct {
	value int
}

func (h *describedHost) AspenDescriptors() []Descriptor {
	return []Descriptor{{
		Name: "answer",
		Type: reflect.TypeFor[int](),
		Role: RoleOption,
		Accessor: func() Accessor {
			return FuncAccessor{
				GetFunc: func(*Schema) any { return h.value },
				SetFunc: func(_ *Schema, v any) error {
					h.value = v.(int)
					return nil
				},
			}
		},
	}}
}

func mustProperty(t *testing.T, s *Schema, name string) *Property {
	t.Helper()
	p, ok := s.Property(name)
	if !ok {
		t.Fatalf("property %q not found in %q", name, s.Name())
	}
	return p
}

func propertyNames(s *Schema) []string {
	names := make([]string, 0)
	for _, p := range s.Properties() {
		names = append(names, p.Name())
	}
	return names
}
