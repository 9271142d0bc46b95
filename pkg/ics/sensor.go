package ics

import (
	"fmt"

	"github.com/jpfielding/ics.go/pkg/ics/token"
)

// SensorState grades the confidence of a sensor parameter value.
type SensorState int

const (
	StateDefault SensorState = iota
	StateEstimated
	StateReported
	StateVerified
)

func (s SensorState) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateEstimated:
		return "estimated"
	case StateReported:
		return "reported"
	case StateVerified:
		return "verified"
	}
	return "unknown"
}

func parseSensorState(s string) (SensorState, error) {
	switch s {
	case "default":
		return StateDefault, nil
	case "estimated":
		return StateEstimated, nil
	case "reported":
		return StateReported, nil
	case "verified":
		return StateVerified, nil
	}
	return StateDefault, fmt.Errorf("%w: %q", ErrUnknownSensorState, s)
}

type paramKind int

const (
	kindFloat paramKind = iota
	kindInt
	kindString
	kindVec3 // per-channel 3-vector, emitted in TOKEN[X] indexed form
)

type paramDef struct {
	kind       paramKind
	perChannel bool
}

// sensorParamDefs is the registry of microscope acquisition parameters.
// The set grows by adding entries here (and a keyword in the token
// package), never by new types.
var sensorParamDefs = map[token.SubSub]paramDef{
	token.SubSubPinholeRadius:       {kindFloat, true},
	token.SubSubLambdaEx:            {kindFloat, true},
	token.SubSubLambdaEm:            {kindFloat, true},
	token.SubSubPhotonCount:         {kindInt, true},
	token.SubSubRefrInxMedium:       {kindFloat, false},
	token.SubSubNumAperture:         {kindFloat, false},
	token.SubSubRefrInxLensMedium:   {kindFloat, false},
	token.SubSubPinholeSpacing:      {kindFloat, false},
	token.SubSubStedDepletionMode:   {kindString, true},
	token.SubSubStedLambda:          {kindFloat, true},
	token.SubSubStedSatFactor:       {kindFloat, true},
	token.SubSubStedImmFraction:     {kindFloat, true},
	token.SubSubStedVPPM:            {kindFloat, true},
	token.SubSubSpimExcType:         {kindString, true},
	token.SubSubSpimFillFactor:      {kindFloat, true},
	token.SubSubSpimPlaneNA:         {kindFloat, true},
	token.SubSubSpimPlaneGaussWidth: {kindFloat, true},
	token.SubSubSpimPlanePropDir:    {kindVec3, true},
	token.SubSubSpimPlaneCenterOff:  {kindVec3, true},
	token.SubSubSpimPlaneFocusOff:   {kindFloat, true},
	token.SubSubScatterModel:        {kindString, true},
	token.SubSubScatterFreePath:     {kindFloat, true},
	token.SubSubScatterRelContrib:   {kindFloat, true},
	token.SubSubScatterBlurring:     {kindFloat, true},
	token.SubSubDetectorPPU:         {kindFloat, true},
	token.SubSubDetectorBaseline:    {kindFloat, true},
	token.SubSubDetectorLineAvgCnt:  {kindFloat, true},
}

// Sensor holds the microscope acquisition metadata of an image. Values
// are keyed by parameter token; per-channel parameters hold one value
// per channel. Each parameter carries one confidence state.
type Sensor struct {
	channels int
	model    string
	types    []string

	floats map[token.SubSub][]float64
	ints   map[token.SubSub][]int
	strs   map[token.SubSub][]string
	vecs   map[token.SubSub][][3]float64
	states map[token.SubSub]SensorState
}

func newSensor() *Sensor {
	return &Sensor{
		floats: map[token.SubSub][]float64{},
		ints:   map[token.SubSub][]int{},
		strs:   map[token.SubSub][]string{},
		vecs:   map[token.SubSub][][3]float64{},
		states: map[token.SubSub]SensorState{},
	}
}

// empty reports whether the sensor block carries anything worth
// emitting.
func (s *Sensor) empty() bool {
	return s == nil || (s.channels == 0 && s.model == "" && len(s.types) == 0 &&
		len(s.floats) == 0 && len(s.ints) == 0 && len(s.strs) == 0 && len(s.vecs) == 0)
}

// SetChannels sets the number of sensor channels.
func (s *Sensor) SetChannels(n int) error {
	if n < 0 || n > MaxChannels {
		return fmt.Errorf("%w: %d", ErrTooManyChannels, n)
	}
	s.channels = n
	return nil
}

// Channels returns the number of sensor channels.
func (s *Sensor) Channels() int { return s.channels }

// SetModel sets the free-form sensor model description.
func (s *Sensor) SetModel(m string) { s.model = m }

// Model returns the sensor model description.
func (s *Sensor) Model() string { return s.model }

// SetType sets the sensor type token of one channel.
func (s *Sensor) SetType(channel int, typ string) error {
	if channel < 0 || channel >= MaxChannels {
		return fmt.Errorf("%w: channel %d", ErrTooManyChannels, channel)
	}
	for len(s.types) <= channel {
		s.types = append(s.types, "")
	}
	s.types[channel] = typ
	return nil
}

// Type returns the sensor type token of one channel.
func (s *Sensor) Type(channel int) string {
	if channel < 0 || channel >= len(s.types) {
		return ""
	}
	return s.types[channel]
}

func (s *Sensor) def(p token.SubSub, want paramKind) (paramDef, error) {
	d, ok := sensorParamDefs[p]
	if !ok {
		return paramDef{}, fmt.Errorf("%w: sensor parameter %q", ErrIllegalToken, p)
	}
	if d.kind != want {
		return paramDef{}, fmt.Errorf("%w: sensor parameter %q is not of the requested kind", ErrIllegalParameter, p)
	}
	return d, nil
}

func (s *Sensor) checkChannel(d paramDef, channel int) error {
	if !d.perChannel {
		if channel != 0 {
			return fmt.Errorf("%w: scalar sensor parameter has no channel %d", ErrIllegalParameter, channel)
		}
		return nil
	}
	if channel < 0 || channel >= MaxChannels {
		return fmt.Errorf("%w: channel %d", ErrTooManyChannels, channel)
	}
	return nil
}

func grow[T any](v []T, n int) []T {
	for len(v) <= n {
		var zero T
		v = append(v, zero)
	}
	return v
}

// SetParameter sets a float-valued parameter for one channel (channel 0
// for scalar parameters) and records its confidence state.
func (s *Sensor) SetParameter(p token.SubSub, channel int, value float64, state SensorState) error {
	d, err := s.def(p, kindFloat)
	if err != nil {
		return err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return err
	}
	s.floats[p] = grow(s.floats[p], channel)
	s.floats[p][channel] = value
	s.states[p] = state
	return nil
}

// GetParameter returns a float-valued parameter and its state.
func (s *Sensor) GetParameter(p token.SubSub, channel int) (float64, SensorState, error) {
	d, err := s.def(p, kindFloat)
	if err != nil {
		return 0, StateDefault, err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return 0, StateDefault, err
	}
	v := s.floats[p]
	if channel >= len(v) {
		return 0, s.states[p], nil
	}
	return v[channel], s.states[p], nil
}

// SetParameterInt sets an integer-valued parameter for one channel.
func (s *Sensor) SetParameterInt(p token.SubSub, channel int, value int, state SensorState) error {
	d, err := s.def(p, kindInt)
	if err != nil {
		return err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return err
	}
	s.ints[p] = grow(s.ints[p], channel)
	s.ints[p][channel] = value
	s.states[p] = state
	return nil
}

// GetParameterInt returns an integer-valued parameter and its state.
func (s *Sensor) GetParameterInt(p token.SubSub, channel int) (int, SensorState, error) {
	d, err := s.def(p, kindInt)
	if err != nil {
		return 0, StateDefault, err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return 0, StateDefault, err
	}
	v := s.ints[p]
	if channel >= len(v) {
		return 0, s.states[p], nil
	}
	return v[channel], s.states[p], nil
}

// SetParameterString sets a string-valued parameter for one channel.
func (s *Sensor) SetParameterString(p token.SubSub, channel int, value string, state SensorState) error {
	d, err := s.def(p, kindString)
	if err != nil {
		return err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return err
	}
	s.strs[p] = grow(s.strs[p], channel)
	s.strs[p][channel] = value
	s.states[p] = state
	return nil
}

// GetParameterString returns a string-valued parameter and its state.
func (s *Sensor) GetParameterString(p token.SubSub, channel int) (string, SensorState, error) {
	d, err := s.def(p, kindString)
	if err != nil {
		return "", StateDefault, err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return "", StateDefault, err
	}
	v := s.strs[p]
	if channel >= len(v) {
		return "", s.states[p], nil
	}
	return v[channel], s.states[p], nil
}

// SetParameterVector sets a 3-vector parameter for one channel.
func (s *Sensor) SetParameterVector(p token.SubSub, channel int, value [3]float64, state SensorState) error {
	d, err := s.def(p, kindVec3)
	if err != nil {
		return err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return err
	}
	s.vecs[p] = grow(s.vecs[p], channel)
	s.vecs[p][channel] = value
	s.states[p] = state
	return nil
}

// GetParameterVector returns a 3-vector parameter and its state.
func (s *Sensor) GetParameterVector(p token.SubSub, channel int) ([3]float64, SensorState, error) {
	d, err := s.def(p, kindVec3)
	if err != nil {
		return [3]float64{}, StateDefault, err
	}
	if err := s.checkChannel(d, channel); err != nil {
		return [3]float64{}, StateDefault, err
	}
	v := s.vecs[p]
	if channel >= len(v) {
		return [3]float64{}, s.states[p], nil
	}
	return v[channel], s.states[p], nil
}

// SetParameterState sets the confidence state of a parameter without
// touching its value.
func (s *Sensor) SetParameterState(p token.SubSub, state SensorState) error {
	if _, ok := sensorParamDefs[p]; !ok {
		return fmt.Errorf("%w: sensor parameter %q", ErrIllegalToken, p)
	}
	s.states[p] = state
	return nil
}

// GetParameterState returns the confidence state of a parameter.
func (s *Sensor) GetParameterState(p token.SubSub) SensorState {
	return s.states[p]
}
