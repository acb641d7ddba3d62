package command

import (
	"math"
	"strconv"
	"strings"
)

// wholeTolerance is how far a float may sit from an integer and still
// count as whole.
const wholeTolerance = 1e-7

var (
	trueLiterals  = map[string]bool{"1": true, "true": true, "yes": true, "on": true}
	falseLiterals = map[string]bool{"0": true, "false": true, "no": true, "off": true}
)

// coerce validates a raw JSON value for a parameter and returns the
// number the apply stage will write. A false return drops the command.
func coerce(param Parameter, raw any) (float64, bool) {
	switch param {
	case ParamGearHandle, ParamParkingBrake, ParamAutopilotMaster:
		return coerceToggle(raw)
	case ParamTransponderCode:
		return coerceInteger(raw, false)
	case ParamADFActiveFreq, ParamFlapsHandleIndex:
		return coerceInteger(raw, true)
	case ParamADFStandbyFreqHz:
		return coerceReal(raw)
	}
	return 0, false
}

// coerceToggle accepts booleans, any finite number (the 0.5 threshold is
// applied on write), and the usual string literal set. Strings that miss
// the literal set still pass if they parse as a finite number.
func coerceToggle(raw any) (float64, bool) {
	switch v := raw.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		if trueLiterals[text] {
			return 1, true
		}
		if falseLiterals[text] {
			return 0, true
		}
		if parsed, err := strconv.ParseFloat(text, 64); err == nil && !math.IsInf(parsed, 0) {
			return parsed, true
		}
	}
	return 0, false
}

// coerceInteger accepts whole numbers in int32 range, in native, float,
// string, or boolean form.
func coerceInteger(raw any, nonNegative bool) (float64, bool) {
	var v float64
	switch t := raw.(type) {
	case bool:
		if t {
			v = 1
		}
	case float64:
		v = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	rounded := math.Round(v)
	if math.Abs(v-rounded) > wholeTolerance {
		return 0, false
	}
	if rounded < math.MinInt32 || rounded > math.MaxInt32 {
		return 0, false
	}
	if nonNegative && rounded < 0 {
		return 0, false
	}
	return rounded, true
}

// coerceReal accepts any finite non-negative number.
func coerceReal(raw any) (float64, bool) {
	var v float64
	switch t := raw.(type) {
	case bool:
		if t {
			v = 1
		}
	case float64:
		v = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
