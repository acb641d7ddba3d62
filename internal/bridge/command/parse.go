package command

import (
	"strings"

	"github.com/opensquawk/simbridge/internal/pkg/metrics"
)

// Container keys scanned after the root, in this order. Later sources
// override earlier ones for the same canonical parameter.
var containerKeys = []string{"keys", "commands", "sim", "simvars", "controls"}

// aliases maps every accepted normalized key to its canonical parameter.
var aliases = map[string]Parameter{
	"transponder_code": ParamTransponderCode,
	"transponder":      ParamTransponderCode,
	"xpdr":             ParamTransponderCode,
	"squawk":           ParamTransponderCode,

	"adf_active_freq":      ParamADFActiveFreq,
	"adf_active_frequency": ParamADFActiveFreq,

	"adf_standby_freq_hz":      ParamADFStandbyFreqHz,
	"adf_standby_frequency_hz": ParamADFStandbyFreqHz,
	"adf_standby_freq":         ParamADFStandbyFreqHz,

	"gear_handle": ParamGearHandle,

	"flaps_index":        ParamFlapsHandleIndex,
	"flaps_handle_index": ParamFlapsHandleIndex,

	"parking_brake": ParamParkingBrake,

	"autopilot_master": ParamAutopilotMaster,
}

// normalizeKey lowercases and trims a raw key and folds hyphens and
// whitespace runs into single underscores.
func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	var b strings.Builder
	b.Grow(len(key))
	pending := false
	for _, r := range key {
		if r == '-' || r == ' ' || r == '\t' {
			pending = true
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	if pending {
		b.WriteByte('_')
	}
	return b.String()
}

// Parse extracts commands from a backend response body. The root object
// and each known container are scanned in order; unknown keys are skipped
// and values that fail coercion drop only their own command. The result
// holds at most one command per parameter, in first-seen order.
func Parse(body map[string]any) []Command {
	if len(body) == 0 {
		return nil
	}

	sources := []map[string]any{body}
	for _, key := range containerKeys {
		if nested, ok := body[key].(map[string]any); ok {
			sources = append(sources, nested)
		}
	}

	// Merge raw values first so a later container overrides the root even
	// when the later value turns out to be invalid.
	raws := make(map[Parameter]any)
	var order []Parameter
	for _, source := range sources {
		for key, raw := range source {
			param, ok := aliases[normalizeKey(key)]
			if !ok {
				continue
			}
			if _, seen := raws[param]; !seen {
				order = append(order, param)
			}
			raws[param] = raw
		}
	}

	commands := make([]Command, 0, len(order))
	for _, param := range order {
		value, ok := coerce(param, raws[param])
		if !ok {
			continue
		}
		commands = append(commands, Command{Param: param, Value: value})
	}
	metrics.CommandsParsed.Add(float64(len(commands)))
	return commands
}
