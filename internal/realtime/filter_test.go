package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("user_id=eq.42")
	require.NoError(t, err)
	assert.Equal(t, Filter{Column: "user_id", Value: "42"}, f)
	assert.Equal(t, "user_id=eq.42", f.String())

	empty, err := ParseFilter("  ")
	require.NoError(t, err)
	assert.Equal(t, Filter{}, empty)
}

func TestParseFilter_Rejects(t *testing.T) {
	_, err := ParseFilter("user_id")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = ParseFilter("user_id=eq.")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = ParseFilter("user_id=gt.5")
	assert.ErrorIs(t, err, ErrUnsupportedFilter)
}

func TestFilterMatches(t *testing.T) {
	f := Filter{Column: "user_id", Value: "42"}

	assert.True(t, f.Matches(json.RawMessage(`{"id":1,"user_id":42}`)))
	assert.True(t, f.Matches(json.RawMessage(`{"user_id":"42"}`)))
	assert.False(t, f.Matches(json.RawMessage(`{"user_id":43}`)))
	assert.False(t, f.Matches(json.RawMessage(`{"id":1}`)))
	assert.False(t, f.Matches(json.RawMessage(`not json`)))
	assert.True(t, Filter{}.Matches(json.RawMessage(`{}`)))
}

func TestTopicsForRow(t *testing.T) {
	topics := TopicsForRow("notifications", json.RawMessage(`{"id":9,"user_id":7}`), []string{"user_id", "role"})
	assert.Equal(t, []string{
		"realtime:notifications",
		"realtime:notifications:user_id=eq.7",
	}, topics)
}
