package compose

import "fmt"

// Strategy selects which processing backend a node operation should use.
// The engine core does not compute the signal itself; the host supplies a
// device tier and pressure estimate and receives a recommendation.
type Strategy uint8

const (
	// StrategyAuto lets the evaluator pick per node: GPU first where a
	// processor is registered, transparent CPU fallback otherwise.
	StrategyAuto Strategy = iota

	// StrategyCPU forces all node processing onto the CPU backend.
	StrategyCPU

	// StrategyGPU forces GPU processing; nodes without a GPU processor fail
	// over to CPU only when the GPU processor reports fallback explicitly.
	StrategyGPU
)

// String returns a human-readable name for the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyCPU:
		return "cpu"
	case StrategyGPU:
		return "gpu"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// DeviceTier is a coarse capability classification of the host device,
// provided by the platform layer.
type DeviceTier uint8

const (
	// TierLow indicates no usable GPU or a severely constrained device.
	TierLow DeviceTier = iota

	// TierMedium indicates a GPU that handles moderate workloads.
	TierMedium

	// TierHigh indicates a discrete or high-end integrated GPU.
	TierHigh
)

// String returns a human-readable name for the tier.
func (t DeviceTier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// highPressure is the memory pressure above which GPU work is shed
// regardless of device tier.
const highPressure = 0.85

// Recommend maps a device tier and a memory pressure estimate (0.0 to 1.0,
// typically gpu.PoolStats.PressureEstimate) to a processing strategy.
//
// Low-tier devices always run on CPU. Under high memory pressure the
// recommendation degrades to CPU even on capable devices so that the
// texture pool can drain. High-tier devices otherwise run on GPU, and
// medium-tier devices get the adaptive default.
func Recommend(tier DeviceTier, pressure float64) Strategy {
	if tier == TierLow {
		return StrategyCPU
	}
	if pressure >= highPressure {
		return StrategyCPU
	}
	if tier == TierHigh {
		return StrategyGPU
	}
	return StrategyAuto
}
