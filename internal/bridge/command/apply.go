package command

import (
	"context"
	"fmt"
	"math"

	"github.com/opensquawk/simbridge/internal/pkg/metrics"
	"github.com/opensquawk/simbridge/internal/simsource"
	"github.com/opensquawk/simbridge/pkg/log"
)

// flapsEventMax caps the flaps fallback event argument; the simulator
// event takes a position in [0, 16383], not a handle index.
const flapsEventMax = 16383

// Interpreter applies coerced commands to a telemetry source.
type Interpreter struct {
	source simsource.Source
	logger log.Logger
}

// NewInterpreter builds an interpreter bound to a source.
func NewInterpreter(source simsource.Source) *Interpreter {
	return &Interpreter{
		source: source,
		logger: log.WithName("command"),
	}
}

// Apply writes a batch of commands to the simulator. If the source is not
// ready the whole batch is dropped; otherwise each command is attempted
// independently and one failure never blocks the rest.
func (i *Interpreter) Apply(ctx context.Context, commands []Command) []ApplyResult {
	if len(commands) == 0 {
		return nil
	}

	if !i.source.Ready() {
		metrics.CommandsDropped.Add(float64(len(commands)))
		i.logger.Info("Dropped command batch, source not ready", "count", len(commands))
		return nil
	}

	results := make([]ApplyResult, 0, len(commands))
	for _, cmd := range commands {
		outcome, err := i.applyOne(ctx, cmd)
		metrics.CommandsApplied.WithLabelValues(outcome).Inc()
		if err != nil {
			i.logger.Warn("Command failed", "param", cmd.Param, "value", cmd.Value, "error", err)
		} else {
			i.logger.Debug("Command applied", "param", cmd.Param, "value", cmd.Value, "outcome", outcome)
		}
		results = append(results, ApplyResult{Command: cmd, Outcome: outcome, Err: err})
	}
	return results
}

// applyOne writes a single command: the direct variable first, then the
// parameter's fallback event if the variable write fails.
func (i *Interpreter) applyOne(ctx context.Context, cmd Command) (string, error) {
	switch cmd.Param {
	case ParamTransponderCode:
		code := int64(cmd.Value)
		if err := i.source.WriteValue(ctx, simsource.VarTransponderCode, cmd.Value); err == nil {
			return OutcomeApplied, nil
		}
		bcd, err := encodeTransponderBCD(code)
		if err != nil {
			return OutcomeFailed, err
		}
		return i.fallback(ctx, simsource.EvtTransponderSet, bcd)

	case ParamADFActiveFreq:
		freq := int64(cmd.Value)
		if err := i.source.WriteValue(ctx, simsource.VarADFActiveFreq, cmd.Value); err == nil {
			return OutcomeApplied, nil
		}
		bcd, err := encodeDecimalBCD(freq)
		if err != nil {
			return OutcomeFailed, err
		}
		return i.fallback(ctx, simsource.EvtADFCompleteSet, bcd)

	case ParamADFStandbyFreqHz:
		err := i.source.WriteValue(ctx, simsource.VarADFStandbyFreq, math.Round(cmd.Value))
		if err != nil {
			return OutcomeFailed, err
		}
		return OutcomeApplied, nil

	case ParamGearHandle:
		numeric := toggleValue(cmd.Value)
		if err := i.source.WriteValue(ctx, simsource.VarGearHandle, numeric); err == nil {
			return OutcomeApplied, nil
		}
		return i.fallback(ctx, simsource.EvtGearSet, int64(numeric))

	case ParamFlapsHandleIndex:
		if err := i.source.WriteValue(ctx, simsource.VarFlapsHandleIndex, cmd.Value); err == nil {
			return OutcomeApplied, nil
		}
		position := int64(cmd.Value)
		if position > flapsEventMax {
			position = flapsEventMax
		}
		return i.fallback(ctx, simsource.EvtFlapsSet, position)

	case ParamParkingBrake:
		err := i.source.WriteValue(ctx, simsource.VarParkingBrake, toggleValue(cmd.Value))
		if err != nil {
			return OutcomeFailed, err
		}
		return OutcomeApplied, nil

	case ParamAutopilotMaster:
		numeric := toggleValue(cmd.Value)
		if err := i.source.WriteValue(ctx, simsource.VarAutopilotMaster, numeric); err == nil {
			return OutcomeApplied, nil
		}
		event := simsource.EvtAutopilotOff
		if numeric == 1 {
			event = simsource.EvtAutopilotOn
		}
		return i.fallback(ctx, event, 0)
	}

	return OutcomeFailed, fmt.Errorf("unknown parameter %q", cmd.Param)
}

func (i *Interpreter) fallback(ctx context.Context, event string, value int64) (string, error) {
	if err := i.source.SendEvent(ctx, event, value); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeFallback, nil
}

// toggleValue folds a coerced boolean-family value to 0 or 1.
func toggleValue(v float64) float64 {
	if v >= 0.5 {
		return 1
	}
	return 0
}

// encodeTransponderBCD packs a four-digit octal squawk code into the
// binary-coded-decimal form the transponder event expects.
func encodeTransponderBCD(code int64) (int64, error) {
	if code < 0 || code > 7777 {
		return 0, fmt.Errorf("transponder code %d out of range", code)
	}
	var result int64
	for _, shift := range []int64{1000, 100, 10, 1} {
		digit := (code / shift) % 10
		if digit > 7 {
			return 0, fmt.Errorf("transponder code %d has non-octal digit", code)
		}
		result = result<<4 | digit
	}
	return result, nil
}

// encodeDecimalBCD packs a non-negative decimal number digit by digit,
// four bits per digit.
func encodeDecimalBCD(value int64) (int64, error) {
	if value < 0 {
		return 0, fmt.Errorf("cannot BCD-encode negative value %d", value)
	}
	if value == 0 {
		return 0, nil
	}
	var result int64
	shift := 0
	for v := value; v > 0; v /= 10 {
		result |= (v % 10) << shift
		shift += 4
	}
	return result, nil
}
