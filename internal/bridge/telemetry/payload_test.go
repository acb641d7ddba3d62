package telemetry

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/opensquawk/simbridge/internal/simsource"
)

func TestBuildPayloadDeterministicRounding(t *testing.T) {
	snap := &Snapshot{
		Latitude:          48.123456789,
		Longitude:         -17.000000444,
		AltitudeTrueFt:    3500.49,
		AltitudeIndFt:     3469.51,
		IndicatedKt:       105.44,
		TrueKt:            112.06,
		GroundVelocityMPS: 55.0,
		TurbineN1One:      62.56,
		TurbineN1Two:      62.04,
		ADFStandbyFreqHz:  413.7,
		VerticalSpeedFPM:  350.5,
		PitchDeg:          2.46,
		CapturedAt:        time.Now(),
	}

	p := BuildPayload(snap, "TOK", time.Unix(1700000000, 0))

	if p.Latitude != 48.123457 {
		t.Fatalf("latitude = %v, want 48.123457", p.Latitude)
	}
	if p.Longitude != -17.0 {
		t.Fatalf("longitude = %v, want -17.0", p.Longitude)
	}
	if p.GroundspeedKt != 106.9 {
		t.Fatalf("groundspeed = %v, want 106.9 (55 m/s)", p.GroundspeedKt)
	}
	if p.AltitudeFtTrue != 3500 || p.AltitudeFtInd != 3470 {
		t.Fatalf("altitudes = %d/%d, want 3500/3470", p.AltitudeFtTrue, p.AltitudeFtInd)
	}
	if p.IASKt != 105.4 || p.TASKt != 112.1 {
		t.Fatalf("airspeeds = %v/%v", p.IASKt, p.TASKt)
	}
	if p.N1Pct != 62.6 || p.N1Pct2 != 62.0 {
		t.Fatalf("n1 = %v/%v", p.N1Pct, p.N1Pct2)
	}
	if p.ADFStandbyFreqHz != 414 {
		t.Fatalf("adf standby = %d, want 414", p.ADFStandbyFreqHz)
	}
	if p.VerticalSpeedFPM != 351 {
		t.Fatalf("vertical speed = %d, want 351", p.VerticalSpeedFPM)
	}
	if p.PitchDeg != 2.5 {
		t.Fatalf("pitch = %v, want 2.5", p.PitchDeg)
	}
	if p.TS != 1700000000 || p.Status != "active" || p.Token != "TOK" {
		t.Fatalf("envelope = %+v", p)
	}
}

func TestBuildPayloadEngineOn(t *testing.T) {
	tests := []struct {
		name       string
		combustion float64
		n1         float64
		want       bool
	}{
		{"combustion only", 1, 0, true},
		{"spooling turbine only", 0, 5.1, true},
		{"n1 at threshold", 0, 5.0, false},
		{"cold and dark", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &Snapshot{EngineCombustion: tt.combustion, TurbineN1One: tt.n1}
			if got := BuildPayload(snap, "t", time.Now()).EngOn; got != tt.want {
				t.Fatalf("eng_on = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPayloadBooleansStayBooleans(t *testing.T) {
	snap := &Snapshot{OnGround: true, GearHandle: true, ParkingBrake: true, AutopilotMaster: false}
	raw, err := json.Marshal(BuildPayload(snap, "t", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"on_ground", "gear_handle", "parking_brake", "autopilot_master", "eng_on"} {
		if _, ok := decoded[key].(bool); !ok {
			t.Fatalf("%s encoded as %T, want bool", key, decoded[key])
		}
	}
}

func TestValidPosition(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"origin", 0, 0, true},
		{"north pole", 90.0, 0, true},
		{"past north pole", 90.0001, 0, false},
		{"date line", 0, -180.0, true},
		{"past date line", 0, -180.0001, false},
		{"nan latitude", math.NaN(), 0, false},
		{"infinite longitude", 0, math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Snapshot{Latitude: tt.lat, Longitude: tt.lon}
			if got := s.ValidPosition(); got != tt.want {
				t.Fatalf("ValidPosition(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestFromReadingThresholds(t *testing.T) {
	r := &simsource.Reading{
		Values: map[string]float64{
			simsource.VarOnGround:         0.6,
			simsource.VarGearHandle:       0.4,
			simsource.VarParkingBrake:     1,
			simsource.VarFlapsHandleIndex: 2.6,
		},
		CapturedAt: time.Unix(1700000000, 0),
	}
	s := FromReading(r)
	if !s.OnGround || s.GearHandle || !s.ParkingBrake {
		t.Fatalf("boolean thresholds wrong: %+v", s)
	}
	if s.FlapsIndex != 3 {
		t.Fatalf("flaps index = %d, want 3", s.FlapsIndex)
	}
	if !s.CapturedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("capture timestamp lost: %v", s.CapturedAt)
	}
}
