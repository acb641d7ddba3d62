package telemetry

import (
	"math"
	"time"
)

// metersPerSecondToKnots converts the ground velocity's source unit to the
// backend's knots.
const metersPerSecondToKnots = 1.943844

// Payload is the active-telemetry wire body.
type Payload struct {
	Token  string `json:"token"`
	Status string `json:"status"`
	TS     int64  `json:"ts"`

	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	AltitudeFtTrue   int     `json:"altitude_ft_true"`
	AltitudeFtInd    int     `json:"altitude_ft_indicated"`
	IASKt            float64 `json:"ias_kt"`
	TASKt            float64 `json:"tas_kt"`
	GroundspeedKt    float64 `json:"groundspeed_kt"`
	OnGround         bool    `json:"on_ground"`
	EngOn            bool    `json:"eng_on"`
	N1Pct            float64 `json:"n1_pct"`
	TransponderCode  int     `json:"transponder_code"`
	ADFActiveFreq    int     `json:"adf_active_freq"`
	ADFStandbyFreqHz int     `json:"adf_standby_freq_hz"`
	VerticalSpeedFPM int     `json:"vertical_speed_fpm"`
	PitchDeg         float64 `json:"pitch_deg"`
	N1Pct2           float64 `json:"n1_pct_2"`
	GearHandle       bool    `json:"gear_handle"`
	FlapsIndex       int     `json:"flaps_index"`
	ParkingBrake     bool    `json:"parking_brake"`
	AutopilotMaster  bool    `json:"autopilot_master"`
}

// StatusBody is the idle-heartbeat wire body.
type StatusBody struct {
	Token        string `json:"token"`
	SimConnected bool   `json:"simConnected"`
	FlightActive bool   `json:"flightActive"`
}

// BuildPayload applies the backend's numeric transforms to a snapshot.
// The transforms are part of the wire contract: coordinates to six
// decimals, altitudes to whole feet, speeds and attitude to one decimal,
// groundspeed converted from m/s to knots.
func BuildPayload(s *Snapshot, token string, now time.Time) *Payload {
	return &Payload{
		Token:  token,
		Status: "active",
		TS:     now.Unix(),

		Latitude:         round6(s.Latitude),
		Longitude:        round6(s.Longitude),
		AltitudeFtTrue:   int(math.Round(s.AltitudeTrueFt)),
		AltitudeFtInd:    int(math.Round(s.AltitudeIndFt)),
		IASKt:            round1(s.IndicatedKt),
		TASKt:            round1(s.TrueKt),
		GroundspeedKt:    round1(s.GroundVelocityMPS * metersPerSecondToKnots),
		OnGround:         s.OnGround,
		EngOn:            s.EngineCombustion >= 0.5 || s.TurbineN1One > 5.0,
		N1Pct:            round1(s.TurbineN1One),
		TransponderCode:  s.TransponderCode,
		ADFActiveFreq:    s.ADFActiveFreq,
		ADFStandbyFreqHz: int(math.Round(s.ADFStandbyFreqHz)),
		VerticalSpeedFPM: int(math.Round(s.VerticalSpeedFPM)),
		PitchDeg:         round1(s.PitchDeg),
		N1Pct2:           round1(s.TurbineN1Two),
		GearHandle:       s.GearHandle,
		FlapsIndex:       s.FlapsIndex,
		ParkingBrake:     s.ParkingBrake,
		AutopilotMaster:  s.AutopilotMaster,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
