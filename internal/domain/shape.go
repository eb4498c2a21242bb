package domain

// NumShapeParams is the length of the bounded shape-parameter ("beta") vector
// understood by every synthesis backend.
const NumShapeParams = 10

// Clamp bounds for every shape parameter.
const (
	ShapeParamMin = -2.0
	ShapeParamMax = 2.0
)

// ShapeParameters is the bounded parameter vector driving mesh synthesis plus
// the uniform scale factor applied after synthesis. Every beta always lies
// within [ShapeParamMin, ShapeParamMax]; the struct is never partially
// populated.
type ShapeParameters struct {
	Betas        [NumShapeParams]float64
	Scale        float64
	RegionalBias map[string]bool

	// AssumedBMI records that no height/weight was available and the default
	// BMI was used for the scale factor.
	AssumedBMI bool
	// PersonalizationApplied records whether photo-derived proportions were
	// blended into the betas.
	PersonalizationApplied bool
}

// Clone returns an independent copy, including the bias-flag map.
func (p ShapeParameters) Clone() ShapeParameters {
	out := p
	out.RegionalBias = make(map[string]bool, len(p.RegionalBias))
	for k, v := range p.RegionalBias {
		out.RegionalBias[k] = v
	}
	return out
}

// Interpolate linearly blends two parameter sets at position t in [0,1].
// Used for intermediate morph-state provenance only; bias flags are unioned.
func (p ShapeParameters) Interpolate(q ShapeParameters, t float64) ShapeParameters {
	out := ShapeParameters{
		Scale:                  (1-t)*p.Scale + t*q.Scale,
		RegionalBias:           make(map[string]bool, len(p.RegionalBias)+len(q.RegionalBias)),
		AssumedBMI:             p.AssumedBMI || q.AssumedBMI,
		PersonalizationApplied: p.PersonalizationApplied || q.PersonalizationApplied,
	}
	for i := range out.Betas {
		out.Betas[i] = (1-t)*p.Betas[i] + t*q.Betas[i]
	}
	for k, v := range p.RegionalBias {
		if v {
			out.RegionalBias[k] = true
		}
	}
	for k, v := range q.RegionalBias {
		if v {
			out.RegionalBias[k] = true
		}
	}
	return out
}
