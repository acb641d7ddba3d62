package simsource

// Simulator variable names read by the sampling path and written by the
// command path. The names follow the simulator's own vocabulary so a
// provider can pass them through unchanged.
const (
	VarLatitude          = "PLANE_LATITUDE"
	VarLongitude         = "PLANE_LONGITUDE"
	VarAltitudeTrue      = "PLANE_ALTITUDE"
	VarAltitudeIndicated = "INDICATED_ALTITUDE"
	VarAirspeedIndicated = "AIRSPEED_INDICATED"
	VarAirspeedTrue      = "AIRSPEED_TRUE"
	VarGroundVelocity    = "GROUND_VELOCITY"
	VarOnGround          = "SIM_ON_GROUND"
	VarEngineCombustion  = "ENG_COMBUSTION"
	VarTurbineN1One      = "TURB_ENG_N1:1"
	VarTurbineN1Two      = "TURB_ENG_N1:2"
	VarTransponderCode   = "TRANSPONDER_CODE:1"
	VarADFActiveFreq     = "ADF_ACTIVE_FREQUENCY:1"
	VarADFStandbyFreq    = "ADF_STANDBY_FREQUENCY:1"
	VarVerticalSpeed     = "VERTICAL_SPEED"
	VarPitchDegrees      = "PLANE_PITCH_DEGREES"
	VarGearHandle        = "GEAR_HANDLE_POSITION"
	VarFlapsHandleIndex  = "FLAPS_HANDLE_INDEX"
	VarParkingBrake      = "BRAKE_PARKING_POSITION"
	VarAutopilotMaster   = "AUTOPILOT_MASTER"
)

// Simulator event names used as fallback write targets.
const (
	EvtTransponderSet = "XPNDR_SET"
	EvtADFCompleteSet = "ADF_COMPLETE_SET"
	EvtGearSet        = "GEAR_SET"
	EvtFlapsSet       = "FLAPS_SET"
	EvtAutopilotOn    = "AUTOPILOT_ON"
	EvtAutopilotOff   = "AUTOPILOT_OFF"
)
