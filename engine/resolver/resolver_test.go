package resolver

import (
	"fmt"
	"testing"

	"github.com/compozy/taskref/engine/pipeline"
	"github.com/stretchr/testify/require"
)

// setup loads each document as its own file, file1.json first.
func setup(t *testing.T, docs []string, opts ...Option) (*Context, *Collector, *MemorySource) {
	t.Helper()
	src := NewMemorySource()
	for i, doc := range docs {
		require.NoError(t, src.LoadJSON(fmt.Sprintf("file%d.json", i+1), []byte(doc)))
	}
	collector := NewCollector()
	rc, err := New(Combine(src, collector), opts...)
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	return rc, collector, src
}

func kinds(diags []Diagnostic) []Kind {
	out := make([]Kind, len(diags))
	for i, d := range diags {
		out[i] = d.Kind
	}
	return out
}

func strPtr(s string) *string { return &s }

func anchorFile(frag map[string]pipeline.Anchor, name string) string {
	return frag[name].File
}
