// Package personalization blends photo-derived body proportions into shape
// parameters.
package personalization

import "example.com/avatar/internal/domain"

// Blend weights: photo-derived corrections never dominate metric-derived shape.
const (
	photoWeight  = 0.3
	metricWeight = 1 - photoWeight
)

// Reference landmark ratios for an average adult silhouette, relative to the
// personalization source's reference scale.
const (
	refShoulderRatio = 0.30
	refHipRatio      = 0.30
	refTorsoRatio    = 0.55
)

// betaPerRatio converts a landmark ratio offset into shape-parameter units.
const betaPerRatio = 4.0

// Adjuster converts landmark distances into correction multipliers for overall
// scale and the upper/lower body width betas.
type Adjuster struct{}

// NewAdjuster constructs an Adjuster.
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// Apply blends photo-derived proportions into params and returns a new
// ShapeParameters; the input is untouched. Failure is always soft: when the
// landmarks are missing, undetected, or unusable, the input parameters come
// back unchanged with PersonalizationApplied false.
func (a *Adjuster) Apply(params domain.ShapeParameters, landmarks *domain.Landmarks) domain.ShapeParameters {
	out := params.Clone()
	out.PersonalizationApplied = false

	if landmarks == nil || !landmarks.Detected || landmarks.ReferenceScale <= 0 {
		return out
	}
	if landmarks.ShoulderWidth <= 0 || landmarks.HipWidth <= 0 || landmarks.TorsoLength <= 0 {
		return out
	}

	shoulderRatio := landmarks.ShoulderWidth / landmarks.ReferenceScale
	hipRatio := landmarks.HipWidth / landmarks.ReferenceScale
	torsoRatio := landmarks.TorsoLength / landmarks.ReferenceScale

	upper := betaPerRatio * (shoulderRatio - refShoulderRatio)
	lower := betaPerRatio * (hipRatio - refHipRatio)

	out.Betas[domain.BetaUpperBodyWidth] = clamp(
		metricWeight*params.Betas[domain.BetaUpperBodyWidth] + photoWeight*upper)
	out.Betas[domain.BetaLowerBodyWidth] = clamp(
		metricWeight*params.Betas[domain.BetaLowerBodyWidth] + photoWeight*lower)

	// Torso length nudges the overall scale multiplier toward the photo.
	torsoMultiplier := 1 + 0.5*(torsoRatio-refTorsoRatio)
	out.Scale = params.Scale * (metricWeight + photoWeight*torsoMultiplier)

	out.RegionalBias["photo"] = true
	out.PersonalizationApplied = true
	return out
}

func clamp(v float64) float64 {
	if v < domain.ShapeParamMin {
		return domain.ShapeParamMin
	}
	if v > domain.ShapeParamMax {
		return domain.ShapeParamMax
	}
	return v
}
