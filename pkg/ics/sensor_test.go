package ics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/ics.go/pkg/ics/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorParameters(t *testing.T) {
	s := newSensor()

	require.NoError(t, s.SetChannels(2))
	assert.Equal(t, 2, s.Channels())
	s.SetModel("confocal alpha")
	require.NoError(t, s.SetType(0, "PMT"))
	require.NoError(t, s.SetType(1, "APD"))
	assert.Equal(t, "APD", s.Type(1))
	assert.Equal(t, "", s.Type(5))

	// per-channel float
	require.NoError(t, s.SetParameter(token.SubSubLambdaEx, 0, 488, StateReported))
	require.NoError(t, s.SetParameter(token.SubSubLambdaEx, 1, 561, StateReported))
	v, state, err := s.GetParameter(token.SubSubLambdaEx, 1)
	require.NoError(t, err)
	assert.Equal(t, 561.0, v)
	assert.Equal(t, StateReported, state)

	// scalar parameters only accept channel 0
	require.NoError(t, s.SetParameter(token.SubSubNumAperture, 0, 1.4, StateVerified))
	assert.ErrorIs(t, s.SetParameter(token.SubSubNumAperture, 1, 1.4, StateVerified), ErrIllegalParameter)

	// int and string kinds
	require.NoError(t, s.SetParameterInt(token.SubSubPhotonCount, 0, 2, StateEstimated))
	n, _, err := s.GetParameterInt(token.SubSubPhotonCount, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, s.SetParameterString(token.SubSubStedDepletionMode, 0, "doughnut", StateReported))
	str, _, err := s.GetParameterString(token.SubSubStedDepletionMode, 0)
	require.NoError(t, err)
	assert.Equal(t, "doughnut", str)

	// kind mismatch and unknown tokens are rejected
	assert.ErrorIs(t, s.SetParameterInt(token.SubSubLambdaEx, 0, 1, StateDefault), ErrIllegalParameter)
	_, _, err = s.GetParameter(token.SubSub(-1), 0)
	assert.ErrorIs(t, err, ErrIllegalToken)
}

func TestSensorVector(t *testing.T) {
	s := newSensor()
	vec := [3]float64{0, 0, 1}
	require.NoError(t, s.SetParameterVector(token.SubSubSpimPlanePropDir, 0, vec, StateVerified))
	got, state, err := s.GetParameterVector(token.SubSubSpimPlanePropDir, 0)
	require.NoError(t, err)
	assert.Equal(t, vec, got)
	assert.Equal(t, StateVerified, state)

	// unset channels read as zero with the parameter's state
	got, _, err = s.GetParameterVector(token.SubSubSpimPlanePropDir, 3)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{}, got)
}

func TestSensorState(t *testing.T) {
	s := newSensor()
	assert.Equal(t, StateDefault, s.GetParameterState(token.SubSubPinholeRadius))
	require.NoError(t, s.SetParameterState(token.SubSubPinholeRadius, StateEstimated))
	assert.Equal(t, StateEstimated, s.GetParameterState(token.SubSubPinholeRadius))
	assert.ErrorIs(t, s.SetParameterState(token.SubSub(-1), StateVerified), ErrIllegalToken)

	_, err := parseSensorState("verified")
	assert.NoError(t, err)
	_, err = parseSensorState("guessed")
	assert.ErrorIs(t, err, ErrUnknownSensorState)
}

func TestSensorRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor.ics")

	img, err := Open(path, "w2")
	require.NoError(t, err)
	require.NoError(t, img.SetLayout(TypeUInt8, []int{4}))

	s := img.Sensor()
	require.NoError(t, s.SetChannels(2))
	s.SetModel("confocal alpha")
	require.NoError(t, s.SetType(0, "PMT"))
	require.NoError(t, s.SetParameter(token.SubSubLambdaEx, 0, 488, StateReported))
	require.NoError(t, s.SetParameter(token.SubSubLambdaEx, 1, 561, StateReported))
	require.NoError(t, s.SetParameter(token.SubSubNumAperture, 0, 1.4, StateVerified))
	require.NoError(t, s.SetParameterVector(token.SubSubSpimPlanePropDir, 0, [3]float64{0, 0.5, 1}, StateEstimated))

	require.NoError(t, img.SetData([]byte{1, 2, 3, 4}))
	require.NoError(t, img.Close())

	// the indexed form appears on disk for vector parameters
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "SPIMPlanePropDir[1]")

	img, err = Open(path, "r")
	require.NoError(t, err)
	defer img.Close()

	s = img.Sensor()
	assert.Equal(t, 2, s.Channels())
	assert.Equal(t, "confocal alpha", s.Model())
	assert.Equal(t, "PMT", s.Type(0))

	v, state, err := s.GetParameter(token.SubSubLambdaEx, 1)
	require.NoError(t, err)
	assert.Equal(t, 561.0, v)
	assert.Equal(t, StateReported, state)

	na, state, err := s.GetParameter(token.SubSubNumAperture, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.4, na)
	assert.Equal(t, StateVerified, state)

	vec, state, err := s.GetParameterVector(token.SubSubSpimPlanePropDir, 0)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0, 0.5, 1}, vec)
	assert.Equal(t, StateEstimated, state)
}
