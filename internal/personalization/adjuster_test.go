package personalization

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/avatar/internal/domain"
)

func baseParams() domain.ShapeParameters {
	return domain.ShapeParameters{Scale: 1.0, RegionalBias: map[string]bool{}}
}

func TestApplyBlendsLandmarkRatios(t *testing.T) {
	adjuster := NewAdjuster()

	landmarks := &domain.Landmarks{
		ShoulderWidth:  0.40,
		HipWidth:       0.30,
		TorsoLength:    0.55,
		ReferenceScale: 1.0,
		Detected:       true,
	}

	out := adjuster.Apply(baseParams(), landmarks)
	require.True(t, out.PersonalizationApplied)
	require.True(t, out.RegionalBias["photo"])

	// shoulder ratio 0.40 vs reference 0.30: 0.3 * 4.0 * 0.1 = 0.12.
	require.InDelta(t, 0.12, out.Betas[domain.BetaUpperBodyWidth], 1e-12)
	// hip ratio exactly at reference leaves the lower-body beta alone.
	require.InDelta(t, 0.0, out.Betas[domain.BetaLowerBodyWidth], 1e-12)
	// torso ratio at reference leaves the scale alone.
	require.InDelta(t, 1.0, out.Scale, 1e-12)
}

func TestApplyNeverDominatesMetricShape(t *testing.T) {
	adjuster := NewAdjuster()

	params := baseParams()
	params.Betas[domain.BetaUpperBodyWidth] = 1.0

	landmarks := &domain.Landmarks{
		ShoulderWidth:  2.0, // absurdly wide photo reading
		HipWidth:       0.30,
		TorsoLength:    0.55,
		ReferenceScale: 1.0,
		Detected:       true,
	}

	out := adjuster.Apply(params, landmarks)
	require.True(t, out.PersonalizationApplied)
	require.LessOrEqual(t, out.Betas[domain.BetaUpperBodyWidth], domain.ShapeParamMax)
}

func TestApplyTorsoLengthAdjustsScale(t *testing.T) {
	adjuster := NewAdjuster()

	landmarks := &domain.Landmarks{
		ShoulderWidth:  0.30,
		HipWidth:       0.30,
		TorsoLength:    0.75,
		ReferenceScale: 1.0,
		Detected:       true,
	}

	out := adjuster.Apply(baseParams(), landmarks)
	// multiplier = 1 + 0.5*0.2 = 1.1, blended: 0.7 + 0.3*1.1 = 1.03.
	require.InDelta(t, 1.03, out.Scale, 1e-12)
}

func TestApplySoftFailureLeavesParamsUnchanged(t *testing.T) {
	adjuster := NewAdjuster()

	params := baseParams()
	params.Betas[0] = 0.5
	params.Scale = 1.1

	cases := []struct {
		name      string
		landmarks *domain.Landmarks
	}{
		{"nil landmarks", nil},
		{"not detected", &domain.Landmarks{ShoulderWidth: 0.4, HipWidth: 0.3, TorsoLength: 0.5, ReferenceScale: 1, Detected: false}},
		{"zero reference scale", &domain.Landmarks{ShoulderWidth: 0.4, HipWidth: 0.3, TorsoLength: 0.5, Detected: true}},
		{"nonpositive widths", &domain.Landmarks{ShoulderWidth: 0, HipWidth: 0.3, TorsoLength: 0.5, ReferenceScale: 1, Detected: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := adjuster.Apply(params, tc.landmarks)
			require.False(t, out.PersonalizationApplied)
			require.Equal(t, params.Betas, out.Betas)
			require.Equal(t, params.Scale, out.Scale)
			require.False(t, out.RegionalBias["photo"])
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	adjuster := NewAdjuster()

	params := baseParams()
	landmarks := &domain.Landmarks{
		ShoulderWidth:  0.45,
		HipWidth:       0.35,
		TorsoLength:    0.60,
		ReferenceScale: 1.0,
		Detected:       true,
	}

	_ = adjuster.Apply(params, landmarks)
	require.Zero(t, params.Betas[domain.BetaUpperBodyWidth])
	require.Equal(t, 1.0, params.Scale)
	require.False(t, params.RegionalBias["photo"])
}
