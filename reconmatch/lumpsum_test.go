package reconmatch

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestScoreLumpSum_ExactMatchIsAutoLinked(t *testing.T) {
	tol := defaultTolerances()
	now := time.Now()

	c := LumpSumCandidate{
		ReceivedPaymentAmount: decimal.NewFromFloat(5000),
		ReceivedPaymentDate:   now,
		PayerRaw:              "OMNICOM MEDIA GROUP",
		EmailID:               "em1",
		EmailTotal:            decimal.NewFromFloat(5000),
		EmailDate:             now,
		AgencyName:            "Omnicom Media Group",
	}
	score := ScoreLumpSum(c, AliasTable{}, tol)
	if score.Decision != LinkAuto {
		t.Fatalf("expected LinkAuto for exact amount/date/payer match, got %s (score=%v)", score.Decision, score)
	}
	if score.Total < tol.AutoMatchConf {
		t.Fatalf("expected total >= AutoMatchConf, got %v", score.Total)
	}
}

func TestScoreLumpSum_WeakSignalsAreUnmatched(t *testing.T) {
	tol := defaultTolerances()
	now := time.Now()

	c := LumpSumCandidate{
		ReceivedPaymentAmount: decimal.NewFromFloat(5000),
		ReceivedPaymentDate:   now.AddDate(0, 0, -30),
		PayerRaw:              "UNRELATED ENTITY LLC",
		EmailID:               "em2",
		EmailTotal:            decimal.NewFromFloat(1200),
		EmailDate:             now,
		AgencyName:            "Omnicom Media Group",
	}
	score := ScoreLumpSum(c, AliasTable{}, tol)
	if score.Decision != LinkUnmatched {
		t.Fatalf("expected LinkUnmatched for unrelated amount/date/payer, got %s", score.Decision)
	}
}

func TestScoreAmount_Thresholds(t *testing.T) {
	cases := []struct {
		a, b decimal.Decimal
		want float64
	}{
		{decimal.NewFromFloat(100), decimal.NewFromFloat(100), 1.0},
		{decimal.NewFromFloat(100.01), decimal.NewFromFloat(100), 1.0},
		{decimal.NewFromFloat(101), decimal.NewFromFloat(100), 0.7},
		{decimal.NewFromFloat(104), decimal.NewFromFloat(100), 0.3},
		{decimal.NewFromFloat(200), decimal.NewFromFloat(100), 0.0},
	}
	for _, tc := range cases {
		got := ScoreAmount(tc.a, tc.b)
		if got != tc.want {
			t.Errorf("ScoreAmount(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
