package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seonyeopkim/asyncaction/internal/demo"
)

func TestParseStep(t *testing.T) {
	tests := []struct {
		raw  string
		want Step
	}{
		{"increase", Step{Name: "increase"}},
		{" logCount ", Step{Name: "logCount"}},
		{"run:increaseLater", Step{Async: true, Name: "increaseLater"}},
		{"run:increaseLater(after=1s)", Step{Async: true, Name: "increaseLater", Args: demo.Args{"after": "1s"}}},
		{"update(data=hello world)", Step{Name: "update", Args: demo.Args{"data": "hello world"}}},
		{"failed(reason=boom, code=7)", Step{Name: "failed", Args: demo.Args{"reason": "boom", "code": "7"}}},
		{"requestData()", Step{Name: "requestData"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStep(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStep_Errors(t *testing.T) {
	for _, raw := range []string{"", "run:", "(a=b)", "update(data=X", "update(data)", "update(=X)"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseStep(raw)
			assert.Error(t, err)
		})
	}
}

func TestStep_String(t *testing.T) {
	step := Step{Async: true, Name: "increaseLater", Args: demo.Args{"b": "2", "a": "1"}}
	assert.Equal(t, "run:increaseLater(a=1,b=2)", step.String())

	steps, err := ParseSteps([]string{"increase", step.String()})
	require.NoError(t, err)
	assert.Equal(t, step, steps[1])

	_, err = ParseSteps([]string{"increase", "bad("})
	assert.Error(t, err)
}
