package domain

// DexaMetrics is the canonical, already-parsed body-composition record
// consumed from the scan metric source. Fields are pointers so absent values
// can be distinguished from zero readings; the record is never mutated after
// it is handed to the pipeline.
type DexaMetrics struct {
	TotalFatPercent    *float64
	LeanMassKg         *float64
	BoneMineralDensity *float64
	ArmsFatPercent     *float64
	LegsFatPercent     *float64
	TrunkFatPercent    *float64
	AndroidGynoidRatio *float64
	HeightCm           *float64
	WeightKg           *float64
}

// BMI derives body-mass index from height and weight when both are present.
func (m DexaMetrics) BMI() *float64 {
	if m.HeightCm == nil || m.WeightKg == nil || *m.HeightCm <= 0 {
		return nil
	}
	h := *m.HeightCm / 100.0
	bmi := *m.WeightKg / (h * h)
	return &bmi
}

// NormalizedMetrics holds signed deviation scores relative to clinical
// reference midpoints: 0 means "at the reference midpoint", ±1 means "at the
// edge of the reference range". Derived and immutable.
type NormalizedMetrics struct {
	Fat           float64
	Lean          float64
	BoneDensity   float64
	ArmsFat       float64
	LegsFat       float64
	TrunkFat      float64
	AndroidGynoid float64
}

// Clinical reference midpoints and half-ranges used for deviation scoring.
const (
	refFatMid    = 25.0
	refFatHalf   = 15.0
	refLeanMid   = 55.0
	refLeanHalf  = 20.0
	refBMDMid    = 1.2
	refBMDHalf   = 0.3
	refArmsMid   = 25.0
	refArmsHalf  = 10.0
	refLegsMid   = 28.0
	refLegsHalf  = 10.0
	refTrunkMid  = 25.0
	refTrunkHalf = 10.0
	refAGMid     = 1.0
	refAGHalf    = 0.5
)

// Plausibility bounds enforced on mandatory metrics.
const (
	fatPercentMin = 0.0
	fatPercentMax = 70.0
	leanMassMax   = 200.0
)

// Normalize validates a DexaMetrics record and converts it into deviation
// scores. Mandatory fields (total fat percent, lean mass) must be present and
// physiologically plausible; optional fields default to zero deviation when
// missing. Pure and deterministic.
func Normalize(m DexaMetrics) (NormalizedMetrics, error) {
	if m.TotalFatPercent == nil {
		return NormalizedMetrics{}, &ValidationError{Field: "total_fat_percent", Reason: "required"}
	}
	if *m.TotalFatPercent < fatPercentMin || *m.TotalFatPercent > fatPercentMax {
		return NormalizedMetrics{}, &ValidationError{
			Field:  "total_fat_percent",
			Reason: "must be within [0, 70]",
		}
	}
	if m.LeanMassKg == nil {
		return NormalizedMetrics{}, &ValidationError{Field: "lean_mass_kg", Reason: "required"}
	}
	if *m.LeanMassKg <= 0 || *m.LeanMassKg > leanMassMax {
		return NormalizedMetrics{}, &ValidationError{
			Field:  "lean_mass_kg",
			Reason: "must be positive and below 200",
		}
	}

	return NormalizedMetrics{
		Fat:           deviation(m.TotalFatPercent, refFatMid, refFatHalf),
		Lean:          deviation(m.LeanMassKg, refLeanMid, refLeanHalf),
		BoneDensity:   deviation(m.BoneMineralDensity, refBMDMid, refBMDHalf),
		ArmsFat:       deviation(m.ArmsFatPercent, refArmsMid, refArmsHalf),
		LegsFat:       deviation(m.LegsFatPercent, refLegsMid, refLegsHalf),
		TrunkFat:      deviation(m.TrunkFatPercent, refTrunkMid, refTrunkHalf),
		AndroidGynoid: deviation(m.AndroidGynoidRatio, refAGMid, refAGHalf),
	}, nil
}

func deviation(value *float64, mid, half float64) float64 {
	if value == nil {
		return 0
	}
	return (*value - mid) / half
}
