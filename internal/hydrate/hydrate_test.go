package hydrate

import (
	"errors"
	"strings"
	"testing"
)

type endpoint struct {
	Host    string   `json:"host"`
	Port    int      `json:"port"`
	Tags    []string `json:"tags,omitempty"`
	Enabled bool     `json:"enabled"`
}

func TestDecodeIntoStruct(t *testing.T) {
	payload := map[string]any{"host": "localhost", "port": int64(8080), "tags": []any{"a", "b"}, "enabled": true}
	var out endpoint
	if err := NewDecoder().Decode(Context{Path: "server.endpoint"}, payload, &out); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	want := endpoint{Host: "localhost", Port: 8080, Tags: []string{"a", "b"}, Enabled: true}
	if out.Host != want.Host || out.Port != want.Port || len(out.Tags) != 2 || !out.Enabled {
		t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", want, out)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	payload := map[string]any{"host": "x", "bogus": 1}
	var out endpoint
	err := NewDecoder(WithDisallowUnknownFields()).Decode(Context{Profile: "app", Path: "endpoint"}, payload, &out)
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
	if !strings.Contains(err.Error(), `"app:endpoint"`) {
		t.Fatalf("expected context label in error, got %v", err)
	}
}

func TestDecodeRunsHooksInOrder(t *testing.T) {
	var calls []string
	decoder := NewDecoder(
		WithPreHook(func(_ Context, payload any) (any, error) {
			calls = append(calls, "pre")
			m := payload.(map[string]any)
			m["host"] = strings.ToLower(m["host"].(string))
			return m, nil
		}),
		WithPostHook(func(_ Context, target any) error {
			calls = append(calls, "post")
			ep := target.(*endpoint)
			if ep.Port == 0 {
				ep.Port = 80
			}
			return nil
		}),
	)
	var out endpoint
	if err := decoder.Decode(Context{}, map[string]any{"host": "EXAMPLE.org"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Host != "example.org" || out.Port != 80 {
		t.Fatalf("hooks not applied: %#v", out)
	}
	if strings.Join(calls, ",") != "pre,post" {
		t.Fatalf("unexpected hook order %v", calls)
	}
}

func TestDecodeDoesNotMutatePayload(t *testing.T) {
	payload := map[string]any{"host": "A"}
	decoder := NewDecoder(WithPreHook(func(_ Context, p any) (any, error) {
		p.(map[string]any)["host"] = "B"
		return p, nil
	}))
	var out endpoint
	if err := decoder.Decode(Context{}, payload, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["host"] != "A" {
		t.Fatalf("payload mutated: %v", payload)
	}
}

func TestDecodeErrors(t *testing.T) {
	var out endpoint
	if err := NewDecoder().Decode(Context{}, map[string]any{}, out); err == nil {
		t.Fatalf("expected pointer error")
	}
	if err := NewDecoder().Decode(Context{}, nil, &out); err == nil {
		t.Fatalf("expected nil payload error")
	}
	boom := errors.New("boom")
	err := NewDecoder(WithCustomDecoder(func(Context, any, any) error { return boom })).Decode(Context{}, map[string]any{}, &out)
	if !errors.Is(err, boom) {
		t.Fatalf("expected custom decoder error, got %v", err)
	}
}

func TestEncodeNormalizesNumbers(t *testing.T) {
	out, err := Encode(endpoint{Host: "h", Port: 9, Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["port"] != int64(9) {
		t.Fatalf("expected int64 port, got %T %v", m["port"], m["port"])
	}
	if _, ok := m["tags"]; ok {
		t.Fatalf("omitempty field should be absent")
	}
	f, err := Encode(map[string]float64{"ratio": 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.(map[string]any)["ratio"] != 0.5 {
		t.Fatalf("expected float ratio, got %v", f)
	}
}
