// Package token defines the keyword tokens of the ICS header grammar.
//
// The header is line oriented: each line starts with a category token,
// followed by a subcategory, an optional subsubcategory (sensor lines
// only), and one or more values. The four namespaces are kept separate
// so a keyword like "origin" can mean different things at different
// positions without ambiguity.
package token

// Category is a top-level line keyword.
type Category int

// Categories, in the order they usually appear in a file.
const (
	CatNone Category = iota
	CatSource
	CatLayout
	CatRepresentation
	CatParameter
	CatHistory
	CatSensor
	CatEnd
)

// Sub is a second-level keyword.
type Sub int

const (
	SubNone Sub = iota
	// source
	SubFile
	SubOffset
	// layout
	SubParameters
	SubOrder
	SubSizes
	SubCoordinates
	SubSignificantBits
	// representation
	SubFormat
	SubSign
	SubCompression
	SubByteOrder
	SubScilType
	// parameter
	SubOrigin
	SubScale
	SubUnits
	SubLabels
	// sensor
	SubSensorType
	SubSensorModel
	SubSensorParams
	SubSensorStates
)

// SubSub is a sensor parameter keyword (third level, under
// "sensor s_params" or "sensor s_states").
type SubSub int

const (
	SubSubNone SubSub = iota
	SubSubChannels
	SubSubPinholeRadius
	SubSubLambdaEx
	SubSubLambdaEm
	SubSubPhotonCount
	SubSubRefrInxMedium
	SubSubNumAperture
	SubSubRefrInxLensMedium
	SubSubPinholeSpacing
	SubSubStedDepletionMode
	SubSubStedLambda
	SubSubStedSatFactor
	SubSubStedImmFraction
	SubSubStedVPPM
	SubSubSpimExcType
	SubSubSpimFillFactor
	SubSubSpimPlaneNA
	SubSubSpimPlaneGaussWidth
	SubSubSpimPlanePropDir
	SubSubSpimPlaneCenterOff
	SubSubSpimPlaneFocusOff
	SubSubScatterModel
	SubSubScatterFreePath
	SubSubScatterRelContrib
	SubSubScatterBlurring
	SubSubDetectorPPU
	SubSubDetectorBaseline
	SubSubDetectorLineAvgCnt
)

// Value is a closed-vocabulary value keyword (formats, signs,
// compression schemes, sensor states).
type Value int

const (
	ValNone Value = iota
	ValUncompressed
	ValCompress
	ValGzip
	ValInteger
	ValReal
	ValComplex
	ValSigned
	ValUnsigned
	ValVideo
	ValStateDefault
	ValStateEstimated
	ValStateReported
	ValStateVerified
)

var categoryNames = map[Category]string{
	CatSource:         "source",
	CatLayout:         "layout",
	CatRepresentation: "representation",
	CatParameter:      "parameter",
	CatHistory:        "history",
	CatSensor:         "sensor",
	CatEnd:            "end",
}

var subNames = map[Sub]string{
	SubFile:            "file",
	SubOffset:          "offset",
	SubParameters:      "parameters",
	SubOrder:           "order",
	SubSizes:           "sizes",
	SubCoordinates:     "coordinates",
	SubSignificantBits: "significant_bits",
	SubFormat:          "format",
	SubSign:            "sign",
	SubCompression:     "compression",
	SubByteOrder:       "byte_order",
	SubScilType:        "SCIL_TYPE",
	SubOrigin:          "origin",
	SubScale:           "scale",
	SubUnits:           "units",
	SubLabels:          "labels",
	SubSensorType:      "type",
	SubSensorModel:     "model",
	SubSensorParams:    "s_params",
	SubSensorStates:    "s_states",
}

var subSubNames = map[SubSub]string{
	SubSubChannels:            "Channels",
	SubSubPinholeRadius:       "PinholeRadius",
	SubSubLambdaEx:            "LambdaEx",
	SubSubLambdaEm:            "LambdaEm",
	SubSubPhotonCount:         "ExPhotonCnt",
	SubSubRefrInxMedium:       "RefrInxMedium",
	SubSubNumAperture:         "NumAperture",
	SubSubRefrInxLensMedium:   "RefrInxLensMedium",
	SubSubPinholeSpacing:      "PinholeSpacing",
	SubSubStedDepletionMode:   "STEDDepletionMode",
	SubSubStedLambda:          "STEDLambda",
	SubSubStedSatFactor:       "STEDSatFactor",
	SubSubStedImmFraction:     "STEDImmFraction",
	SubSubStedVPPM:            "STEDVPPM",
	SubSubSpimExcType:         "SPIMExcType",
	SubSubSpimFillFactor:      "SPIMFillFactor",
	SubSubSpimPlaneNA:         "SPIMPlaneNA",
	SubSubSpimPlaneGaussWidth: "SPIMPlaneGaussWidth",
	SubSubSpimPlanePropDir:    "SPIMPlanePropDir",
	SubSubSpimPlaneCenterOff:  "SPIMPlaneCenterOff",
	SubSubSpimPlaneFocusOff:   "SPIMPlaneFocusOff",
	SubSubScatterModel:        "ScatterModel",
	SubSubScatterFreePath:     "ScatterFreePath",
	SubSubScatterRelContrib:   "ScatterRelContrib",
	SubSubScatterBlurring:     "ScatterBlurring",
	SubSubDetectorPPU:         "DetectorPPU",
	SubSubDetectorBaseline:    "DetectorBaseline",
	SubSubDetectorLineAvgCnt:  "DetectorLineAvgCnt",
}

var valueNames = map[Value]string{
	ValUncompressed:   "uncompressed",
	ValCompress:       "compress",
	ValGzip:           "gzip",
	ValInteger:        "integer",
	ValReal:           "real",
	ValComplex:        "complex",
	ValSigned:         "signed",
	ValUnsigned:       "unsigned",
	ValVideo:          "video",
	ValStateDefault:   "default",
	ValStateEstimated: "estimated",
	ValStateReported:  "reported",
	ValStateVerified:  "verified",
}

var (
	categoryByName = invert(categoryNames)
	subByName      = invert(subNames)
	subSubByName   = invert(subSubNames)
	valueByName    = invert(valueNames)
)

func invert[T comparable](m map[T]string) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// String returns the on-disk keyword for the category.
func (c Category) String() string { return categoryNames[c] }

// String returns the on-disk keyword for the subcategory.
func (s Sub) String() string { return subNames[s] }

// String returns the on-disk keyword for the sensor parameter.
func (s SubSub) String() string { return subSubNames[s] }

// String returns the on-disk keyword for the value.
func (v Value) String() string { return valueNames[v] }

// ParseCategory maps an on-disk keyword to its category token.
// Matching is exact; there is no case folding in the ICS grammar.
func ParseCategory(s string) (Category, bool) {
	c, ok := categoryByName[s]
	return c, ok
}

// ParseSub maps an on-disk keyword to its subcategory token.
func ParseSub(s string) (Sub, bool) {
	t, ok := subByName[s]
	return t, ok
}

// ParseSubSub maps an on-disk keyword to its sensor parameter token.
func ParseSubSub(s string) (SubSub, bool) {
	t, ok := subSubByName[s]
	return t, ok
}

// ParseValue maps an on-disk keyword to its value token.
func ParseValue(s string) (Value, bool) {
	v, ok := valueByName[s]
	return v, ok
}

// SensorParameters lists every sensor parameter token in emit order.
func SensorParameters() []SubSub {
	out := make([]SubSub, 0, len(subSubNames))
	for t := SubSubChannels; t <= SubSubDetectorLineAvgCnt; t++ {
		out = append(out, t)
	}
	return out
}
