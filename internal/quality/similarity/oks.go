package similarity

import "math"

// DefaultSigma is the per-point OKS constant used when no label-specific
// value is declared.
const DefaultSigma = 0.1

// epsilon keeps the OKS exponent finite for zero-area reference boxes.
const epsilon = 2.220446049250313e-16

// OKSOptions configures an object keypoint similarity computation.
type OKSOptions struct {
	// Sigma applies to every point unless Sigmas has one value per point.
	Sigma  float64
	Sigmas []float64

	// VisibleA and VisibleB mark which points are visible on each side.
	// A nil mask means all points are visible.
	VisibleA []bool
	VisibleB []bool

	// BBox overrides the reference box. When nil, the mean of the two point
	// sets' bounding boxes is used.
	BBox *BBox
}

func (o OKSOptions) sigma(i, n int) float64 {
	if len(o.Sigmas) == n && o.Sigmas[i] > 0 {
		return o.Sigmas[i]
	}
	if o.Sigma > 0 {
		return o.Sigma
	}
	return DefaultSigma
}

func visibleAt(mask []bool, i int) bool {
	if mask == nil {
		return true
	}
	return i < len(mask) && mask[i]
}

// OKS is the object keypoint similarity of two equal-length point lists:
//
//	Σ visA·visB·exp(-d²/(2·scale·(2σ)²)) / Σ (visA ∨ visB)
//
// where scale is the area of the reference box. A point visible on only one
// side counts against the score. Lists of different length, and lists with
// no visible point on either side, score 0.
func OKS(a, b []float64, opt OKSOptions) float64 {
	if len(a) != len(b) || len(a)%2 != 0 || len(a) == 0 {
		return 0
	}
	n := len(a) / 2

	ref := MeanBBox(BBoxOf(a), BBoxOf(b))
	if opt.BBox != nil {
		ref = *opt.BBox
	}
	scale := ref.Area()

	var sum, total float64
	for i := 0; i < n; i++ {
		va, vb := visibleAt(opt.VisibleA, i), visibleAt(opt.VisibleB, i)
		if va || vb {
			total++
		}
		if !va || !vb {
			continue
		}
		dx := a[2*i] - b[2*i]
		dy := a[2*i+1] - b[2*i+1]
		s := 2 * opt.sigma(i, n)
		sum += math.Exp(-(dx*dx + dy*dy) / (2*scale*s*s + epsilon))
	}
	if total == 0 {
		return 0
	}
	return sum / total
}
