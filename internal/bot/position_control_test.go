package bot

import (
	"errors"
	"testing"

	"tradebot/internal/models"
)

// ============================================================
// PositionControl Tests
// ============================================================

func longPosition(entry float64) models.Position {
	return models.Position{
		Exchange: "paper",
		Symbol:   "BTC/USD",
		Side:     models.SideLong,
		Amount:   1,
		Price:    entry,
	}
}

func shortPosition(entry float64) models.Position {
	p := longPosition(entry)
	p.Side = models.SideShort
	return p
}

func TestPositionControlEvaluateLong(t *testing.T) {
	pc, err := NewPositionControl(RiskParams{Target: 0.1, StopLoss: 0.2})
	if err != nil {
		t.Fatalf("NewPositionControl() error = %v", err)
	}

	tests := []struct {
		name       string
		ask        float64
		wantExit   bool
		wantReason string
	}{
		{name: "target hit", ask: 115, wantExit: true, wantReason: ReasonTargetHit},
		{name: "target boundary", ask: 110, wantExit: true, wantReason: ReasonTargetHit},
		{name: "stop hit", ask: 79, wantExit: true, wantReason: ReasonStopLoss},
		{name: "stop boundary", ask: 80, wantExit: true, wantReason: ReasonStopLoss},
		{name: "just above stop", ask: 81, wantExit: false},
		{name: "inside band", ask: 105, wantExit: false},
		{name: "just under target", ask: 109.99, wantExit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := pc.Evaluate(Mark{Position: longPosition(100), Bid: tt.ask - 1, Ask: tt.ask})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if d.Exit != tt.wantExit || d.Reason != tt.wantReason {
				t.Errorf("Evaluate(ask=%v) = exit %v reason %q, want %v %q",
					tt.ask, d.Exit, d.Reason, tt.wantExit, tt.wantReason)
			}
		})
	}
}

func TestPositionControlEvaluateShort(t *testing.T) {
	pc, _ := NewPositionControl(RiskParams{Target: 0.1, StopLoss: 0.2})

	tests := []struct {
		name       string
		bid        float64
		wantExit   bool
		wantReason string
	}{
		{name: "target hit", bid: 85, wantExit: true, wantReason: ReasonTargetHit},
		{name: "stop hit", bid: 125, wantExit: true, wantReason: ReasonStopLoss},
		{name: "inside band", bid: 95, wantExit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := pc.Evaluate(Mark{Position: shortPosition(100), Bid: tt.bid, Ask: tt.bid + 1})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if d.Exit != tt.wantExit || d.Reason != tt.wantReason {
				t.Errorf("Evaluate(bid=%v) = exit %v reason %q, want %v %q",
					tt.bid, d.Exit, d.Reason, tt.wantExit, tt.wantReason)
			}
		})
	}
}

func TestPositionControlEvaluateErrors(t *testing.T) {
	pc, _ := NewPositionControl(RiskParams{Target: 0.1, StopLoss: 0.2})

	if _, err := pc.Evaluate(Mark{Position: longPosition(0), Ask: 100}); !errors.Is(err, ErrInvalidRiskParams) {
		t.Errorf("zero entry price: error = %v, want ErrInvalidRiskParams", err)
	}
	if _, err := pc.Evaluate(Mark{Position: longPosition(100), Ask: 0}); !errors.Is(err, ErrMissingQuote) {
		t.Errorf("missing ask: error = %v, want ErrMissingQuote", err)
	}
	if _, err := pc.Evaluate(Mark{Position: shortPosition(100), Bid: 0, Ask: 100}); !errors.Is(err, ErrMissingQuote) {
		t.Errorf("missing bid: error = %v, want ErrMissingQuote", err)
	}
}

func TestPositionControlBatchIsIndependent(t *testing.T) {
	pc, _ := NewPositionControl(RiskParams{Target: 0.1, StopLoss: 0.2})

	marks := []Mark{
		{Position: longPosition(100), Bid: 114, Ask: 115}, // target
		{Position: longPosition(100), Bid: 104, Ask: 105}, // hold
		{Position: longPosition(100), Bid: 78, Ask: 79},   // stop
		{Position: shortPosition(100), Bid: 85, Ask: 86},  // target
	}

	decisions, err := pc.EvaluateBatch(marks)
	if err != nil {
		t.Fatalf("EvaluateBatch() error = %v", err)
	}
	if len(decisions) != len(marks) {
		t.Fatalf("got %d decisions, want %d", len(decisions), len(marks))
	}

	want := []bool{true, false, true, true}
	for i, d := range decisions {
		if d.Exit != want[i] {
			t.Errorf("decision %d: exit = %v, want %v", i, d.Exit, want[i])
		}
	}

	// Обратный порядок даёт те же решения построчно
	reversed := []Mark{marks[3], marks[2], marks[1], marks[0]}
	back, err := pc.EvaluateBatch(reversed)
	if err != nil {
		t.Fatalf("EvaluateBatch(reversed) error = %v", err)
	}
	for i := range back {
		if back[i].Exit != decisions[len(decisions)-1-i].Exit {
			t.Errorf("batch evaluation is order-dependent at %d", i)
		}
	}
}

func TestPositionControlBatchSurvivesBadRow(t *testing.T) {
	pc, _ := NewPositionControl(RiskParams{Target: 0.1, StopLoss: 0.2})

	marks := []Mark{
		{Position: longPosition(100), Ask: 0}, // битая строка
		{Position: longPosition(100), Bid: 114, Ask: 115},
	}

	decisions, err := pc.EvaluateBatch(marks)
	if err == nil {
		t.Error("EvaluateBatch() must surface the bad row error")
	}
	if len(decisions) != 2 || !decisions[1].Exit {
		t.Errorf("bad row must not block remaining positions: %+v", decisions)
	}
}

func TestRiskParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  RiskParams
		wantErr bool
	}{
		{name: "valid", params: RiskParams{Target: 0.1, StopLoss: 0.2}},
		{name: "zero target", params: RiskParams{Target: 0, StopLoss: 0.2}, wantErr: true},
		{name: "target one", params: RiskParams{Target: 1, StopLoss: 0.2}, wantErr: true},
		{name: "negative stop", params: RiskParams{Target: 0.1, StopLoss: -0.1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPositionControl(tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPositionControl(%+v) error = %v, wantErr %v", tt.params, err, tt.wantErr)
			}
		})
	}
}
