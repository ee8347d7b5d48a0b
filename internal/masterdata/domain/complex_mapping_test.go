package masterdata

import (
	"context"
	"testing"
)

func TestResolver_MappedGroup(t *testing.T) {
	resolver := NewResolver(map[string]string{
		"R051": "611",
		"R052": "611",
	})

	if got := resolver.Resolve("R051"); got != "611" {
		t.Fatalf("resolve R051 = %q, want 611", got)
	}
	// many-to-one: sibling remote maps into the same complex
	if got := resolver.Resolve("R052"); got != "611" {
		t.Fatalf("resolve R052 = %q, want 611", got)
	}
}

func TestResolver_UnmappedGroupSelfMaps(t *testing.T) {
	resolver := NewResolver(map[string]string{"R051": "611"})

	if got := resolver.Resolve("R999"); got != "R999" {
		t.Fatalf("resolve R999 = %q, want self", got)
	}
}

func TestResolver_EmptySnapshot(t *testing.T) {
	if got := NewResolver(nil).Resolve("R001"); got != "R001" {
		t.Fatalf("resolve against empty snapshot = %q, want self", got)
	}
}

type stubMappingSource struct {
	mapping map[string]string
}

func (s stubMappingSource) LoadMapping(_ context.Context) (map[string]string, error) {
	return s.mapping, nil
}

func TestLoadResolver_SnapshotIsImmutable(t *testing.T) {
	source := stubMappingSource{mapping: map[string]string{"R051": "611"}}
	resolver, err := LoadResolver(context.Background(), source)
	if err != nil {
		t.Fatalf("load resolver: %v", err)
	}

	// mutating the source after load must not be observed
	source.mapping["R051"] = "999"
	if got := resolver.Resolve("R051"); got != "611" {
		t.Fatalf("resolve after source mutation = %q, want snapshot value 611", got)
	}
}

func TestLoadResolver_NilSource(t *testing.T) {
	if _, err := LoadResolver(context.Background(), nil); err != ErrNilMapping {
		t.Fatalf("expected ErrNilMapping, got %v", err)
	}
}
