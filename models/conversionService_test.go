package models

import (
	"testing"
	"time"
)

// Snapshot fixture: gram(1)/kilogram(2)/milligram(3) share base "gram",
// liter(4)/milliliter(5) share base "milliliter", piece(6) is count.
// One explicit override kg->g and one cup->ml style override with a
// non-round factor.
func testSnapshot() *conversionSnapshot {
	units := []*Unit{
		{ID: 1, Name: "gram", Abbreviation: "g", MeasurementType: MeasurementTypeWeight, BaseUnitName: "gram", ConversionFactor: dec("1")},
		{ID: 2, Name: "kilogram", Abbreviation: "kg", MeasurementType: MeasurementTypeWeight, BaseUnitName: "gram", ConversionFactor: dec("1000")},
		{ID: 3, Name: "milligram", Abbreviation: "mg", MeasurementType: MeasurementTypeWeight, BaseUnitName: "gram", ConversionFactor: dec("0.001")},
		{ID: 4, Name: "liter", Abbreviation: "l", MeasurementType: MeasurementTypeVolume, BaseUnitName: "milliliter", ConversionFactor: dec("1000")},
		{ID: 5, Name: "milliliter", Abbreviation: "ml", MeasurementType: MeasurementTypeVolume, BaseUnitName: "milliliter", ConversionFactor: dec("1")},
		{ID: 6, Name: "piece", Abbreviation: "pcs", MeasurementType: MeasurementTypeCount, BaseUnitName: "piece", ConversionFactor: dec("1")},
	}
	snap := &conversionSnapshot{
		Units: make(map[int]*Unit, len(units)),
		ConversionRows: []*UnitConversion{
			{ID: 1, FromUnitId: 2, ToUnitId: 1, ConversionFactor: dec("1000")},
			{ID: 2, FromUnitId: 4, ToUnitId: 5, ConversionFactor: dec("1000")},
		},
	}
	for _, u := range units {
		snap.Units[u.ID] = u
	}
	snap.index()
	return snap
}

func TestConvert_Identity(t *testing.T) {
	snap := testSnapshot()
	got, used, err := snap.convert(dec("42.5"), 2, 2)
	if err != nil {
		t.Fatalf("identity conversion failed: %v", err)
	}
	if used {
		t.Fatal("identity must not report a conversion as used")
	}
	if got.Cmp(dec("42.5")) != 0 {
		t.Fatalf("expected 42.5; got %s", got.String())
	}
}

func TestConvert_DirectOverride(t *testing.T) {
	snap := testSnapshot()
	got, used, err := snap.convert(dec("2"), 2, 1)
	if err != nil {
		t.Fatalf("direct conversion failed: %v", err)
	}
	if !used {
		t.Fatal("expected conversion_used=true")
	}
	if got.Cmp(dec("2000")) != 0 {
		t.Fatalf("expected 2kg=2000g; got %s", got.String())
	}
}

func TestConvert_ReverseOverrideDivides(t *testing.T) {
	snap := testSnapshot()
	// Only kg->g is stored; g->kg must divide by the stored factor.
	got, used, err := snap.convert(dec("500"), 1, 2)
	if err != nil {
		t.Fatalf("reverse conversion failed: %v", err)
	}
	if !used {
		t.Fatal("expected conversion_used=true")
	}
	if got.Cmp(dec("0.5")) != 0 {
		t.Fatalf("expected 500g=0.5kg; got %s", got.String())
	}
}

func TestConvert_SharedBaseUnit(t *testing.T) {
	snap := testSnapshot()
	// No explicit mg<->kg row: 500000mg -> 500g base -> 0.5kg.
	got, used, err := snap.convert(dec("500000"), 3, 2)
	if err != nil {
		t.Fatalf("base-mediated conversion failed: %v", err)
	}
	if !used {
		t.Fatal("expected conversion_used=true")
	}
	if got.Cmp(dec("0.5")) != 0 {
		t.Fatalf("expected 500000mg=0.5kg; got %s", got.String())
	}
}

func TestConvert_OverrideWinsOverBaseComputation(t *testing.T) {
	snap := testSnapshot()
	// Override the kg->g row with a deliberately wrong factor; the override
	// must win over the (correct) base-unit path.
	snap.ConversionRows[0].ConversionFactor = dec("999")
	snap.index()

	got, _, err := snap.convert(dec("1"), 2, 1)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got.Cmp(dec("999")) != 0 {
		t.Fatalf("expected override factor 999 to win; got %s", got.String())
	}
}

func TestConvert_CrossMeasurementTypeRejected(t *testing.T) {
	snap := testSnapshot()
	_, _, err := snap.convert(dec("1"), 1, 5)
	if err == nil {
		t.Fatal("expected weight->volume conversion to fail")
	}
	if !IsConversionNotFound(err) {
		t.Fatalf("expected ConversionNotFoundError; got %T: %v", err, err)
	}
}

func TestConvert_UnknownUnitRejected(t *testing.T) {
	snap := testSnapshot()
	_, _, err := snap.convert(dec("1"), 1, 99)
	if !IsConversionNotFound(err) {
		t.Fatalf("expected ConversionNotFoundError for unknown unit; got %v", err)
	}
}

func TestSnapshotFromCache_RestampsAndReindexes(t *testing.T) {
	snap := testSnapshot()
	snap.LoadedAt = time.Now().Add(-time.Hour)
	snap.Conversions = nil

	restored := snapshotFromCache(snap)

	if time.Since(restored.LoadedAt) > time.Minute {
		t.Fatalf("LoadedAt not re-stamped on restore; got %s", restored.LoadedAt)
	}
	if _, ok := restored.Conversions[unitPair{From: 2, To: 1}]; !ok {
		t.Fatal("override index not rebuilt on restore")
	}
}

func TestConvert_RoundTripIsStable(t *testing.T) {
	snap := testSnapshot()
	there, _, err := snap.convert(dec("750"), 1, 2)
	if err != nil {
		t.Fatalf("g->kg failed: %v", err)
	}
	back, _, err := snap.convert(there, 2, 1)
	if err != nil {
		t.Fatalf("kg->g failed: %v", err)
	}
	if back.Cmp(dec("750")) != 0 {
		t.Fatalf("round trip drifted: 750 -> %s -> %s", there.String(), back.String())
	}
}
