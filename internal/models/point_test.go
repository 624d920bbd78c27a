package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointUnmarshalLongitudeFirst(t *testing.T) {
	var p Point
	err := json.Unmarshal([]byte(`{"type":"Point","coordinates":[-73.935,40.823]}`), &p)
	require.NoError(t, err)

	assert.Equal(t, -73.935, p.Longitude)
	assert.Equal(t, 40.823, p.Latitude)
}

func TestPointUnmarshalWithoutType(t *testing.T) {
	var p Point
	err := json.Unmarshal([]byte(`{"coordinates":[10,20]}`), &p)
	require.NoError(t, err)

	assert.Equal(t, Point{Longitude: 10, Latitude: 20}, p)
}

func TestPointUnmarshalRejectsWrongArity(t *testing.T) {
	cases := []string{
		`{"coordinates":[]}`,
		`{"coordinates":[1]}`,
		`{"coordinates":[1,2,3]}`,
		`{}`,
	}
	for _, raw := range cases {
		var p Point
		assert.Error(t, json.Unmarshal([]byte(raw), &p), "input %s", raw)
	}
}

func TestPointUnmarshalRejectsOutOfRange(t *testing.T) {
	cases := []string{
		`{"coordinates":[181,0]}`,
		`{"coordinates":[-180.5,0]}`,
		`{"coordinates":[0,90.1]}`,
		`{"coordinates":[0,-91]}`,
		// A [lat, lon] swap of a point past 90°N is caught by the
		// latitude range check — the common axis-order bug.
		`{"coordinates":[40.823,-95.0]}`,
	}
	for _, raw := range cases {
		var p Point
		assert.Error(t, json.Unmarshal([]byte(raw), &p), "input %s", raw)
	}
}

func TestPointMarshalRoundTrip(t *testing.T) {
	orig := Point{Longitude: -73.935, Latitude: 40.823}

	raw, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-73.935,40.823]}`, string(raw))

	var back Point
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, orig, back)
}

func TestPointValidateRejectsNonFinite(t *testing.T) {
	// NaN slips past bare range checks (every comparison on it is
	// false) and would only blow up inside ST_MakePoint.
	cases := []Point{
		{Longitude: math.NaN(), Latitude: 0},
		{Longitude: 0, Latitude: math.NaN()},
		{Longitude: math.Inf(1), Latitude: 0},
		{Longitude: 0, Latitude: math.Inf(-1)},
	}
	for _, p := range cases {
		assert.Error(t, p.Validate(), "point %+v", p)
	}
}

func TestPointValidateBoundaries(t *testing.T) {
	assert.NoError(t, Point{Longitude: 180, Latitude: 90}.Validate())
	assert.NoError(t, Point{Longitude: -180, Latitude: -90}.Validate())
	assert.NoError(t, Origin.Validate())
	assert.Error(t, Point{Longitude: 180.01, Latitude: 0}.Validate())
	assert.Error(t, Point{Longitude: 0, Latitude: -90.01}.Validate())
}
