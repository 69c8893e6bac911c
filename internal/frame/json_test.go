package frame

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/schema"
)

func TestMarshalJSON(t *testing.T) {
	f := New([]schema.Column{
		{Name: "week_start", Type: schema.TypeDate},
		{Name: "mean", Type: schema.TypeFloat},
		{Name: "active", Type: schema.TypeBool},
	})
	f.Append(time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC), 1.5, true)
	f.Append(nil, math.NaN(), false)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"columns": [
			{"name": "week_start", "type": "date"},
			{"name": "mean", "type": "float"},
			{"name": "active", "type": "bool"}
		],
		"rows": [["2025-05-05", 1.5, true], [null, null, false]]
	}`, string(data))
}

func TestMarshalJSONEmpty(t *testing.T) {
	data, err := json.Marshal(New(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns": [], "rows": []}`, string(data))
}
