package chart

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	ok := &Figure{Kind: Bar, Series: []Series{{Labels: []string{"a"}, Values: []float64{1}}}}
	assert.NoError(t, ok.Validate())

	bad := &Figure{Kind: Bar, Series: []Series{{Labels: []string{"a", "b"}, Values: []float64{1}}}}
	assert.Error(t, bad.Validate())

	unknown := &Figure{Kind: "radar"}
	assert.Error(t, unknown.Validate())
}

func TestFigureJSON(t *testing.T) {
	fig := &Figure{Kind: Pie, Title: "Models", Series: []Series{{Name: "messages", Labels: []string{"o3"}, Values: []float64{4}}}}
	b, err := json.Marshal(fig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"pie","title":"Models","series":[{"name":"messages","labels":["o3"],"values":[4]}]}`, string(b))
}

func TestRenderTerminalNil(t *testing.T) {
	assert.Contains(t, RenderTerminal(nil, 40, 10), "no chart produced")
}

func TestRenderTerminalEmpty(t *testing.T) {
	out := RenderTerminal(&Figure{Kind: Line, Title: "Trend"}, 40, 10)
	assert.Contains(t, out, "Trend")
	assert.Contains(t, out, "(empty chart)")
}

func TestRenderPiePercentages(t *testing.T) {
	fig := &Figure{Kind: Pie, Series: []Series{{
		Labels: []string{"gpt-4o", "o3"},
		Values: []float64{3, 1},
	}}}
	out := RenderTerminal(fig, 60, 10)
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "gpt-4o"))
	assert.True(t, strings.HasSuffix(lines[0], " 75.0%"))
	assert.True(t, strings.HasSuffix(lines[1], " 25.0%"))
}

func TestRenderBarsAndLinesProduceOutput(t *testing.T) {
	for _, kind := range []Kind{Bar, Histogram, Line, Area, Scatter} {
		t.Run(string(kind), func(t *testing.T) {
			fig := &Figure{Kind: kind, Title: "Weekly", Series: []Series{
				{Name: "a", Labels: []string{"w1", "w2", "w3"}, Values: []float64{1, 5, 3}},
				{Name: "b", Labels: []string{"w1", "w2", "w3"}, Values: []float64{2, 2, 2}},
			}}
			out := RenderTerminal(fig, 40, 12)
			assert.True(t, strings.HasPrefix(out, "Weekly"))
			assert.Greater(t, len(strings.Split(out, "\n")), 3)
		})
	}
}
