package compose

import "testing"

func TestRecommend(t *testing.T) {
	tests := []struct {
		name     string
		tier     DeviceTier
		pressure float64
		want     Strategy
	}{
		{"low tier stays on CPU", TierLow, 0.0, StrategyCPU},
		{"low tier under pressure", TierLow, 0.9, StrategyCPU},
		{"medium tier relaxed", TierMedium, 0.1, StrategyAuto},
		{"medium tier pressured", TierMedium, 0.9, StrategyCPU},
		{"high tier relaxed", TierHigh, 0.1, StrategyGPU},
		{"high tier pressured", TierHigh, 0.95, StrategyCPU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recommend(tt.tier, tt.pressure); got != tt.want {
				t.Errorf("Recommend(%v, %v) = %v, want %v", tt.tier, tt.pressure, got, tt.want)
			}
		})
	}
}

func TestStrategyString(t *testing.T) {
	if StrategyGPU.String() == "" || StrategyCPU.String() == StrategyGPU.String() {
		t.Error("strategy names must be distinct and non-empty")
	}
}
