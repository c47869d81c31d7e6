package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// mustJSONField marshals v and returns the string member named field
func mustJSONField(t *testing.T, v interface{}, field string) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	s, ok := fields[field].(string)
	require.True(t, ok, "field %q is not a string", field)
	return s
}
