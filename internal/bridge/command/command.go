// Package command turns backend response bodies into simulator writes.
// Parsing, value coercion, and application are deliberately separate
// stages: parsing never touches the simulator, and application never
// re-validates what coercion already settled.
package command

// Parameter identifies a controllable simulator value.
type Parameter string

const (
	ParamTransponderCode  Parameter = "transponderCode"
	ParamADFActiveFreq    Parameter = "adfActiveFrequency"
	ParamADFStandbyFreqHz Parameter = "adfStandbyFrequencyHz"
	ParamGearHandle       Parameter = "gearHandle"
	ParamFlapsHandleIndex Parameter = "flapsHandleIndex"
	ParamParkingBrake     Parameter = "parkingBrake"
	ParamAutopilotMaster  Parameter = "autopilotMaster"
)

// Command is one coerced instruction. Value carries the coerced number:
// 0/1 for the boolean family, a whole number for the integer family.
type Command struct {
	Param Parameter
	Value float64
}

// Apply outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// ApplyResult records how a single command fared.
type ApplyResult struct {
	Command Command
	Outcome string
	Err     error
}
