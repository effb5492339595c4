package env_test

import (
	"context"
	"testing"

	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/specialistvlad/flowgrid/internal/testutil"
	"github.com/specialistvlad/flowgrid/modules/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	vars := map[string]string{"REGION": "eu-west-1"}
	lookup := func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}

	testCases := []struct {
		name string
		key  string
		want []any
	}{
		{name: "set", key: "REGION", want: []any{"eu-west-1", true}},
		{name: "unset uses fallback", key: "MISSING", want: []any{"local", false}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			probe := testutil.NewProbe(0)
			reg := registry.New().Load(&env.Module{Lookup: lookup}, probe)
			bb := testutil.NewBoard(t, reg)
			start := bb.Add("test.start")
			value := bb.Add("test.record")
			found := bb.Add("test.record")
			get := bb.Add("env.get")
			bb.Set(get, "name", tc.key)
			bb.Set(get, "fallback", "local")
			bb.Connect(start, "exec", value, "exec")
			bb.Connect(value, "then", found, "exec")
			bb.Connect(get, "value", value, "value")
			bb.Connect(get, "found", found, "value")

			_, err := testutil.Run(context.Background(), t, reg, bb.Board(), start.ID, nil)

			require.NoError(t, err)
			assert.Equal(t, tc.want, probe.Values())
		})
	}
}
