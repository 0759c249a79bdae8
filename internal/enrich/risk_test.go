package enrich

import "testing"

func fp(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value *float64
		low   float64
		high  float64
		want  string
	}{
		{"missing", nil, 3.5, 4.5, RiskUnknown},
		{"below-low", fp(3.4999), 3.5, 4.5, RiskRed},
		{"at-low", fp(3.5), 3.5, 4.5, RiskYellow},
		{"mid-band", fp(4.0), 3.5, 4.5, RiskYellow},
		{"at-high", fp(4.5), 3.5, 4.5, RiskGreen},
		{"above-high", fp(5.2), 3.5, 4.5, RiskGreen},
		{"zero-reading", fp(0.0), 3.5, 4.5, RiskRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.value, tt.low, tt.high)
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrafficCards(t *testing.T) {
	c := NewRiskClassifier(DefaultThresholds())

	cards := c.TrafficCards(fp(4.1), fp(9.3), nil)

	if got := cards["fat"].Risk; got != RiskYellow {
		t.Errorf("fat risk = %q, want %q", got, RiskYellow)
	}
	if got := cards["snf"].Risk; got != RiskGreen {
		t.Errorf("snf risk = %q, want %q", got, RiskGreen)
	}
	if got := cards["ts"].Risk; got != RiskUnknown {
		t.Errorf("ts risk = %q, want %q", got, RiskUnknown)
	}
	if cards["ts"].Value != nil {
		t.Errorf("ts value should stay nil for missing reading")
	}
	if cards["fat"].Value == nil || *cards["fat"].Value != 4.1 {
		t.Errorf("fat value should carry the reading through")
	}
}

func TestTrafficCardsDefaultThresholds(t *testing.T) {
	c := NewRiskClassifier(DefaultThresholds())

	// snf 黄区下界是 8.0，上界 9.0
	if got := c.TrafficCards(nil, fp(7.9999), nil)["snf"].Risk; got != RiskRed {
		t.Errorf("snf 7.9999 = %q, want %q", got, RiskRed)
	}
	// ts 黄区 [11.5, 13.5)
	if got := c.TrafficCards(nil, nil, fp(11.5))["ts"].Risk; got != RiskYellow {
		t.Errorf("ts 11.5 = %q, want %q", got, RiskYellow)
	}
	if got := c.TrafficCards(nil, nil, fp(13.5))["ts"].Risk; got != RiskGreen {
		t.Errorf("ts 13.5 = %q, want %q", got, RiskGreen)
	}
}
