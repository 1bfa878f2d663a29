package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

func TestLocation(t *testing.T) {
	var f messageForm
	require.NoError(t, json.Unmarshal([]byte(`{"lat":12.5,"lng":"77.25"}`), &f))
	loc, err := f.location()
	require.NoError(t, err)
	assert.Equal(t, 12.5, loc.Lat)
	assert.Equal(t, 77.25, loc.Lng)

	f = messageForm{}
	loc, err = f.location()
	require.NoError(t, err)
	assert.Nil(t, loc)

	for _, bad := range []messageForm{{Lat: "1"}, {Lat: "x", Lng: "1"}, {Lat: "91", Lng: "0"},
		{Lat: "NaN", Lng: "0"}, {Lat: "0", Lng: "Inf"}, {Lat: "-Inf", Lng: "0"}, {Lat: "nan", Lng: "nan"}} {
		_, err := bad.location()
		assert.True(t, errors.Is(err, apperr.ErrValidation), bad)
	}
}
