// Package telemetry owns the sampled flight state: the immutable Snapshot,
// the wire payload transforms, the independent sampling loop, and the
// dual-cadence push scheduler.
package telemetry

import (
	"math"
	"time"

	"github.com/opensquawk/simbridge/internal/simsource"
)

// Snapshot is one captured set of telemetry fields. It is never mutated;
// each successful sample produces a fresh value that supersedes the last.
type Snapshot struct {
	Latitude          float64
	Longitude         float64
	AltitudeTrueFt    float64
	AltitudeIndFt     float64
	IndicatedKt       float64
	TrueKt            float64
	GroundVelocityMPS float64
	OnGround          bool
	EngineCombustion  float64
	TurbineN1One      float64
	TurbineN1Two      float64
	TransponderCode   int
	ADFActiveFreq     int
	ADFStandbyFreqHz  float64
	VerticalSpeedFPM  float64
	PitchDeg          float64
	GearHandle        bool
	FlapsIndex        int
	ParkingBrake      bool
	AutopilotMaster   bool

	CapturedAt time.Time
}

// FromReading converts a raw provider reading into a Snapshot.
func FromReading(r *simsource.Reading) *Snapshot {
	return &Snapshot{
		Latitude:          r.Value(simsource.VarLatitude),
		Longitude:         r.Value(simsource.VarLongitude),
		AltitudeTrueFt:    r.Value(simsource.VarAltitudeTrue),
		AltitudeIndFt:     r.Value(simsource.VarAltitudeIndicated),
		IndicatedKt:       r.Value(simsource.VarAirspeedIndicated),
		TrueKt:            r.Value(simsource.VarAirspeedTrue),
		GroundVelocityMPS: r.Value(simsource.VarGroundVelocity),
		OnGround:          r.Value(simsource.VarOnGround) >= 0.5,
		EngineCombustion:  r.Value(simsource.VarEngineCombustion),
		TurbineN1One:      r.Value(simsource.VarTurbineN1One),
		TurbineN1Two:      r.Value(simsource.VarTurbineN1Two),
		TransponderCode:   int(math.Round(r.Value(simsource.VarTransponderCode))),
		ADFActiveFreq:     int(math.Round(r.Value(simsource.VarADFActiveFreq))),
		ADFStandbyFreqHz:  r.Value(simsource.VarADFStandbyFreq),
		VerticalSpeedFPM:  r.Value(simsource.VarVerticalSpeed),
		PitchDeg:          r.Value(simsource.VarPitchDegrees),
		GearHandle:        r.Value(simsource.VarGearHandle) >= 0.5,
		FlapsIndex:        int(math.Round(r.Value(simsource.VarFlapsHandleIndex))),
		ParkingBrake:      r.Value(simsource.VarParkingBrake) >= 0.5,
		AutopilotMaster:   r.Value(simsource.VarAutopilotMaster) >= 0.5,
		CapturedAt:        r.CapturedAt,
	}
}

// Age measures staleness against the capture moment, never against the last
// successful push.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// ValidPosition reports whether both coordinates are finite and in range.
func (s *Snapshot) ValidPosition() bool {
	if math.IsNaN(s.Latitude) || math.IsInf(s.Latitude, 0) {
		return false
	}
	if math.IsNaN(s.Longitude) || math.IsInf(s.Longitude, 0) {
		return false
	}
	return s.Latitude >= -90 && s.Latitude <= 90 && s.Longitude >= -180 && s.Longitude <= 180
}
