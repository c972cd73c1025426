package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

// fx resolves providers by exact type, so a constructor returning a
// concrete type where a consumer wants an interface breaks the graph
// only at boot. Validate the whole graph without running it.
func TestDependencyGraph(t *testing.T) {
	require.NoError(t, fx.ValidateApp(appOptions()...))
}
