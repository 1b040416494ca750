package core

import (
	"encoding/json"
	"testing"
)

func TestDirection_Constants(t *testing.T) {
	if string(DirectionLong) != "long" || string(DirectionShort) != "short" {
		t.Errorf("unexpected direction values: %s, %s", DirectionLong, DirectionShort)
	}
}

func TestPerformanceMetrics_MissingEncodesAsNull(t *testing.T) {
	zero := 0.0
	pm := PerformanceMetrics{NetProfitPercent: &zero}

	data, err := json.Marshal(pm)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if v, ok := decoded["net_profit_usdt"]; !ok || v != nil {
		t.Errorf("expected net_profit_usdt to be null, got %v", v)
	}
	if v := decoded["net_profit_percent"]; v != 0.0 {
		t.Errorf("expected net_profit_percent to stay 0, got %v", v)
	}
}
