package engagement

import "testing"

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"three_values", []float64{90, 80, 70}, 80},
		{"single_value", []float64{55}, 55},
		{"empty", nil, 0},
		{"fractional", []float64{1, 2}, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); got != tt.want {
				t.Errorf("Mean(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name                               string
		attention, understanding, confusion float64
		want                               Status
	}{
		// Attention floor rule fires before the confusion comparison.
		{"low_attention_wins", 40, 60, 30, StatusInattentive},
		{"confusion_over_understanding", 70, 30, 50, StatusConfused},
		{"attentive", 70, 60, 30, StatusAttentive},
		{"boundary_attention_50_not_inattentive", 50, 60, 30, StatusAttentive},
		{"equal_confusion_understanding_attentive", 70, 50, 50, StatusAttentive},
		{"low_attention_beats_confusion", 10, 10, 90, StatusInattentive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.attention, tt.understanding, tt.confusion)
			if got != tt.want {
				t.Errorf("Classify(%v, %v, %v) = %q, want %q",
					tt.attention, tt.understanding, tt.confusion, got, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	first := Classify(63, 41, 59)
	for i := 0; i < 100; i++ {
		if got := Classify(63, 41, 59); got != first {
			t.Fatalf("Classify not deterministic: %q then %q", first, got)
		}
	}
}

func TestConfusionProxy(t *testing.T) {
	if got := ConfusionProxy(60); got != 40 {
		t.Errorf("ConfusionProxy(60) = %v, want 40", got)
	}
}
