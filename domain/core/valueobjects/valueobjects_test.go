package valueobjects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBfGid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BfGid
		wantErr bool
	}{
		{name: "uuid", input: "0b6a4f7e-6f0a-4a55-9f7b-3f1f4c3d2a10", want: "0b6a4f7e-6f0a-4a55-9f7b-3f1f4c3d2a10"},
		{name: "free form", input: "org-1", want: "org-1"},
		{name: "trimmed", input: "  n1 ", want: "n1"},
		{name: "empty", input: "", wantErr: true},
		{name: "blank", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBfGid(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBfGid(t *testing.T) {
	a, b := NewBfGid(), NewBfGid()
	assert.NotEqual(t, a, b)
	assert.True(t, a.IsUUID())
	assert.False(t, a.IsZero())
	assert.True(t, BfGid("").IsZero())
}

func TestCurrentViewer(t *testing.T) {
	cv, err := NewCurrentViewer("org", "person")
	require.NoError(t, err)
	assert.NoError(t, cv.Validate())
	assert.Equal(t, "CurrentViewer(person@org)", cv.String())

	_, err = NewCurrentViewer("", "person")
	assert.Error(t, err)
	_, err = NewCurrentViewer("org", "")
	assert.Error(t, err)

	omni := OmniViewer("org")
	assert.Equal(t, BfGid("org"), omni.PersonBfGid)
	assert.Error(t, CurrentViewer{}.Validate())
}

func TestValidateClassName(t *testing.T) {
	assert.NoError(t, ValidateClassName("BfPerson"))
	assert.NoError(t, ValidateClassName("Bf_Edge2"))
	assert.Error(t, ValidateClassName(""))
	assert.Error(t, ValidateClassName("2Fast"))
	assert.Error(t, ValidateClassName("has space"))
}

func TestPropsMatches(t *testing.T) {
	props := Props{
		"name":  "Alice",
		"age":   float64(30),
		"tags":  []any{"a", "b"},
		"extra": map[string]any{"k": "v"},
		"nil":   nil,
	}

	tests := []struct {
		name   string
		filter Props
		want   bool
	}{
		{name: "empty filter", filter: Props{}, want: true},
		{name: "nil filter", filter: nil, want: true},
		{name: "string equal", filter: Props{"name": "Alice"}, want: true},
		{name: "string differs", filter: Props{"name": "Bob"}, want: false},
		{name: "int matches float", filter: Props{"age": 30}, want: true},
		{name: "number differs", filter: Props{"age": 31}, want: false},
		{name: "missing key", filter: Props{"missing": "x"}, want: false},
		{name: "array equal", filter: Props{"tags": []any{"a", "b"}}, want: true},
		{name: "array order matters", filter: Props{"tags": []any{"b", "a"}}, want: false},
		{name: "object equal", filter: Props{"extra": map[string]any{"k": "v"}}, want: true},
		{name: "nil value", filter: Props{"nil": nil}, want: true},
		{name: "type mismatch", filter: Props{"name": 1}, want: false},
		{name: "all keys", filter: Props{"name": "Alice", "age": 30}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, props.Matches(tt.filter))
		})
	}
}

func TestPropsCloneAndMerge(t *testing.T) {
	original := Props{"nested": map[string]any{"a": 1}, "list": []any{1}}
	clone := original.Clone()
	clone["nested"].(map[string]any)["a"] = 2
	clone["list"].([]any)[0] = 2

	assert.Equal(t, 1, original["nested"].(map[string]any)["a"])
	assert.Equal(t, 1, original["list"].([]any)[0])

	merged := Props{"a": 1, "b": 2}.Merge(Props{"b": 3, "c": 4})
	assert.True(t, merged.Equal(Props{"a": 1, "b": 3, "c": 4}))

	var nilProps Props
	assert.NotNil(t, nilProps.Clone())
	assert.Equal(t, "", nilProps.String("missing"))
}

func TestSortClockStrictlyIncreasing(t *testing.T) {
	frozen := time.UnixMilli(1_700_000_000_000)
	clock := newSortClockWithSource(func() time.Time { return frozen })

	first := clock.Next()
	second := clock.Next()
	third := clock.Next()

	assert.Equal(t, int64(1_700_000_000_000), first)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second+1, third)

	clock.Observe(third + 100)
	assert.Equal(t, third+101, clock.Next())
}

func TestNextSortValueMonotonic(t *testing.T) {
	prev := NextSortValue()
	for i := 0; i < 1000; i++ {
		next := NextSortValue()
		require.Greater(t, next, prev)
		prev = next
	}
}
