package series

import (
	"testing"
)

func point(date string, value float64) DailyPoint {
	return DailyPoint{Date: MustParseDay(date), Value: value, Source: "test"}
}

func TestNewSortsAndMaterialisesGaps(t *testing.T) {
	s, err := New("tx_per_day", UnitCount, []DailyPoint{
		point("2013-03-05", 3),
		point("2013-03-01", 1),
		point("2013-03-02", 2),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.Len() != 5 {
		t.Fatalf("expected 5 covered days, got %d", s.Len())
	}
	if s.Start().String() != "2013-03-01" || s.End().String() != "2013-03-05" {
		t.Fatalf("range wrong: %s..%s", s.Start(), s.End())
	}

	gap, ok := s.At(MustParseDay("2013-03-03"))
	if !ok || !gap.Missing {
		t.Fatalf("interior gap should be a missing point, got %+v ok=%v", gap, ok)
	}

	last, ok := s.At(MustParseDay("2013-03-05"))
	if !ok || last.Missing || last.Value != 3 {
		t.Fatalf("sorted last point wrong: %+v", last)
	}
}

func TestNewRejectsDuplicateDates(t *testing.T) {
	_, err := New("tx_per_day", UnitCount, []DailyPoint{
		point("2013-03-01", 1),
		point("2013-03-01", 2),
	})
	if err == nil {
		t.Fatal("duplicate dates should be rejected")
	}
}

func TestAtOutsideRange(t *testing.T) {
	s, err := New("tx_per_day", UnitCount, []DailyPoint{point("2013-03-01", 1)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, ok := s.At(MustParseDay("2013-02-28")); ok {
		t.Fatal("day before range should not resolve")
	}
	if _, ok := s.At(MustParseDay("2013-03-02")); ok {
		t.Fatal("day after range should not resolve")
	}
}

func TestValuesSkipsMissing(t *testing.T) {
	s, err := New("tx_per_day", UnitCount, []DailyPoint{
		point("2013-03-01", 1),
		point("2013-03-03", 3),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	values := s.Values()
	if len(values) != 2 || values[0] != 1 || values[1] != 3 {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestMissingDays(t *testing.T) {
	s, err := New("tx_per_day", UnitCount, []DailyPoint{
		point("2013-03-02", 1),
		point("2013-03-04", 3),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	missing := s.MissingDays(MustParseDay("2013-03-01"), MustParseDay("2013-03-05"))
	if len(missing) != 3 {
		t.Fatalf("expected 3 missing days, got %v", missing)
	}
	want := []string{"2013-03-01", "2013-03-03", "2013-03-05"}
	for i, d := range missing {
		if d.String() != want[i] {
			t.Fatalf("missing[%d] = %s, want %s", i, d, want[i])
		}
	}
}

func TestEmptySeries(t *testing.T) {
	s, err := New("tx_per_day", UnitCount, nil)
	if err != nil {
		t.Fatalf("empty input should not fail: %v", err)
	}
	if !s.IsEmpty() || s.Len() != 0 {
		t.Fatal("expected an empty series")
	}
	if !s.Start().IsZero() || !s.End().IsZero() {
		t.Fatal("empty series bounds should be zero days")
	}
}

func TestEqual(t *testing.T) {
	a, _ := New("tx_per_day", UnitCount, []DailyPoint{point("2013-03-01", 1)})
	b, _ := New("tx_per_day", UnitCount, []DailyPoint{point("2013-03-01", 1)})
	c, _ := New("tx_per_day", UnitCount, []DailyPoint{point("2013-03-01", 2)})

	if !a.Equal(b) {
		t.Fatal("identical series should be equal")
	}
	if a.Equal(c) {
		t.Fatal("differing values should not be equal")
	}
}

func TestUnitFor(t *testing.T) {
	cases := map[string]Unit{
		MetricFeesTotal:     UnitBTC,
		MetricFeesPerBlock:  UnitBTC,
		MetricMedianRate:    UnitSatPerVB,
		MetricUrgencySpread: UnitSatPerVB,
		MetricFeeToSubsidy:  UnitRatio,
		MetricBDD:           UnitCoinDays,
		MetricTxCount:       UnitCount,
		MetricBlocks:        UnitCount,
	}
	for metric, want := range cases {
		if got := UnitFor(metric); got != want {
			t.Fatalf("UnitFor(%s) = %s, want %s", metric, got, want)
		}
	}
}

func TestWindowConfigValidate(t *testing.T) {
	if err := (WindowConfig{Label: "symmetric_90", PreDays: 90, PostDays: 90}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if err := (WindowConfig{Label: "bad", PreDays: 0, PostDays: 90}).Validate(); err == nil {
		t.Fatal("zero pre_days should be rejected")
	}
	if err := (WindowConfig{Label: "bad", PreDays: 90, PostDays: -1}).Validate(); err == nil {
		t.Fatal("negative post_days should be rejected")
	}
}

func TestEventSpecValidate(t *testing.T) {
	valid := EventSpec{
		Name:    "cyprus_2013",
		Anchor:  MustParseDay("2013-03-16"),
		Windows: []WindowConfig{{Label: "symmetric_90", PreDays: 90, PostDays: 90}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	if err := (EventSpec{Anchor: valid.Anchor, Windows: valid.Windows}).Validate(); err == nil {
		t.Fatal("missing name should be rejected")
	}
	if err := (EventSpec{Name: "x", Windows: valid.Windows}).Validate(); err == nil {
		t.Fatal("zero anchor should be rejected")
	}
	if err := (EventSpec{Name: "x", Anchor: valid.Anchor}).Validate(); err == nil {
		t.Fatal("empty windows should be rejected")
	}
}
