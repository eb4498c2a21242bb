package domain

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BMI reference used for the uniform scale factor. DefaultBMI is assumed when
// no height/weight was supplied, which yields a scale of exactly 1.0.
const (
	DefaultBMI = 22.0
	refBMIHalf = 6.0

	scalePerBMIDeviation = 0.12
	scaleMin             = 0.75
	scaleMax             = 1.30
)

// baseCoefficients maps the four whole-body deviation inputs
// [fat, lean, bone density, BMI] onto the base 10-dimensional beta vector.
// Rows are betas, columns are inputs.
var baseCoefficients = mat.NewDense(NumShapeParams, 4, []float64{
	0.90, -0.10, 0.00, 0.25, // torso thickness
	-0.20, 1.10, 0.00, 0.10, // musculature
	0.00, 0.30, 0.50, 0.00, // stature / frame length
	0.20, 0.00, 0.00, 1.00, // overall mass
	0.30, 0.00, 0.00, 0.10, // abdominal carry
	0.25, 0.00, 0.00, 0.10, // hip and thigh carry
	0.15, 0.20, 0.00, 0.00, // upper-limb girth
	0.15, 0.25, 0.00, 0.00, // lower-limb girth
	0.00, 0.00, 0.80, 0.00, // skeletal density
	0.50, -0.50, 0.00, 0.00, // fat/lean contrast
})

// Regional bias displacement vectors, each scaled by its deviation score and
// added on top of the base mapping.
var (
	androidBias = [NumShapeParams]float64{0.20, 0, 0, 0, 0.80, 0, 0, 0, 0, 0.10}
	gynoidBias  = [NumShapeParams]float64{0, 0, 0, 0, 0, 0.80, 0, 0.20, 0, 0.10}
	limbBias    = [NumShapeParams]float64{0, 0.10, 0, 0, 0, 0, 0.60, 0.60, 0, 0}
	trunkBias   = [NumShapeParams]float64{0.50, 0, 0, 0.10, 0.30, 0, 0, 0, 0, 0}
)

// Beta indices adjusted by photo personalization.
const (
	BetaUpperBodyWidth = 6
	BetaLowerBodyWidth = 5
)

// MapParameters converts normalized deviation scores into a bounded shape
// vector and a uniform scale factor. Out-of-range inputs saturate at the
// clamp bounds rather than erroring: degraded output is preferred over
// rejection at this stage. Pure and deterministic.
func MapParameters(n NormalizedMetrics, bmi *float64) ShapeParameters {
	bmiValue := DefaultBMI
	assumed := true
	if bmi != nil && *bmi > 0 {
		bmiValue = *bmi
		assumed = false
	}
	bmiDev := (bmiValue - DefaultBMI) / refBMIHalf

	inputs := mat.NewVecDense(4, []float64{n.Fat, n.Lean, n.BoneDensity, bmiDev})
	var base mat.VecDense
	base.MulVec(baseCoefficients, inputs)

	params := ShapeParameters{
		Scale:        clamp(1.0+scalePerBMIDeviation*bmiDev, scaleMin, scaleMax),
		RegionalBias: make(map[string]bool, 4),
		AssumedBMI:   assumed,
	}
	for i := 0; i < NumShapeParams; i++ {
		params.Betas[i] = base.AtVec(i)
	}

	// Android/gynoid distribution comes from the ratio deviation: a high ratio
	// biases abdominal betas, a low ratio biases hip/thigh betas.
	if n.AndroidGynoid > 0 {
		addBias(&params, androidBias, n.AndroidGynoid, "android")
	} else if n.AndroidGynoid < 0 {
		addBias(&params, gynoidBias, -n.AndroidGynoid, "gynoid")
	}

	limbDev := (n.ArmsFat + n.LegsFat) / 2
	addBias(&params, limbBias, limbDev, "limb")
	addBias(&params, trunkBias, n.TrunkFat, "trunk")

	for i := range params.Betas {
		params.Betas[i] = clamp(params.Betas[i], ShapeParamMin, ShapeParamMax)
	}

	return params
}

func addBias(params *ShapeParameters, bias [NumShapeParams]float64, deviation float64, flag string) {
	if math.Abs(deviation) < 1e-9 {
		return
	}
	for i := range params.Betas {
		params.Betas[i] += bias[i] * deviation
	}
	params.RegionalBias[flag] = true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
