package beam

import (
	"fmt"
	"math"

	"github.com/san-kum/beamline/internal/tensor"
)

// moments is the common output of every parametric constructor.
type moments struct {
	mean   *tensor.Tensor
	cov    *tensor.Tensor
	energy *tensor.Tensor
	batch  tensor.Shape
}

// expand broadcasts every tensor to the common batch shape and returns
// their backing slices in order.
func expand(ts ...*tensor.Tensor) (tensor.Shape, [][]float64, error) {
	shapes := make([]tensor.Shape, len(ts))
	for i, t := range ts {
		shapes[i] = t.Shape()
	}
	batch, err := tensor.BroadcastShapes(shapes...)
	if err != nil {
		return nil, nil, err
	}
	out := make([][]float64, len(ts))
	for i, t := range ts {
		b, err := t.BroadcastTo(batch)
		if err != nil {
			return nil, nil, err
		}
		out[i] = b.Raw()
	}
	return batch, out, nil
}

func checkAll(name string, vals []float64, ok func(float64) bool, want string) error {
	for _, v := range vals {
		if !ok(v) {
			return fmt.Errorf("%w: %s must be %s, got %g", ErrInvalidParameter, name, want, v)
		}
	}
	return nil
}

func positive(v float64) bool    { return v > 0 }
func nonNegative(v float64) bool { return v >= 0 }

// twissMoments maps Twiss parameters to mean and covariance:
//
//	σx²  = εx βx
//	σxp² = εx (1+αx²)/βx
//	σxxp = −εx αx
//
// and likewise for y, with an uncorrelated longitudinal block.
func twissMoments(s *settings) (*moments, error) {
	batch, v, err := expand(
		s.get(kwEnergy, DefaultEnergy),
		s.get(kwBetaX, DefaultBeta), s.get(kwAlphaX, 0), s.get(kwEmittanceX, DefaultEmittance),
		s.get(kwBetaY, DefaultBeta), s.get(kwAlphaY, 0), s.get(kwEmittanceY, DefaultEmittance),
		s.get(kwSigmaTau, DefaultSigmaTau), s.get(kwSigmaP, DefaultSigmaP),
		s.get(kwMuX, 0), s.get(kwMuXP, 0), s.get(kwMuY, 0), s.get(kwMuYP, 0), s.get(kwMuTau, 0), s.get(kwMuP, 0),
	)
	if err != nil {
		return nil, err
	}
	energy, betaX, alphaX, emitX := v[0], v[1], v[2], v[3]
	betaY, alphaY, emitY := v[4], v[5], v[6]
	sigmaTau, sigmaP := v[7], v[8]
	mus := v[9:15]

	checks := []struct {
		name string
		vals []float64
		ok   func(float64) bool
		want string
	}{
		{"beta_x", betaX, positive, "positive"},
		{"beta_y", betaY, positive, "positive"},
		{"emittance_x", emitX, nonNegative, "non-negative"},
		{"emittance_y", emitY, nonNegative, "non-negative"},
		{"sigma_tau", sigmaTau, nonNegative, "non-negative"},
		{"sigma_p", sigmaP, nonNegative, "non-negative"},
	}
	for _, c := range checks {
		if err := checkAll(c.name, c.vals, c.ok, c.want); err != nil {
			return nil, err
		}
	}

	n := batch.NumElements()
	mean := make([]float64, n*Dim)
	cov := make([]float64, n*Dim*Dim)
	for b := 0; b < n; b++ {
		for i, mu := range mus {
			mean[b*Dim+i] = mu[b]
		}
		c := cov[b*Dim*Dim : (b+1)*Dim*Dim]
		setPlane(c, X, emitX[b]*betaX[b], -emitX[b]*alphaX[b], emitX[b]*(1+alphaX[b]*alphaX[b])/betaX[b])
		setPlane(c, Y, emitY[b]*betaY[b], -emitY[b]*alphaY[b], emitY[b]*(1+alphaY[b]*alphaY[b])/betaY[b])
		setPlane(c, Tau, sigmaTau[b]*sigmaTau[b], 0, sigmaP[b]*sigmaP[b])
	}

	return &moments{
		mean:   tensor.Wrap(mean, batch.Concat(Dim)),
		cov:    tensor.Wrap(cov, batch.Concat(Dim, Dim)),
		energy: tensor.Wrap(energy, batch),
		batch:  batch,
	}, nil
}

// parameterMoments builds moments from per-coordinate sigmas, means and
// correlations, or from explicit moments.
func parameterMoments(s *settings) (*moments, error) {
	if s.mean != nil {
		return explicitMoments(s.mean, s.cov, s.get(kwEnergy, DefaultEnergy))
	}

	batch, v, err := expand(
		s.get(kwEnergy, DefaultEnergy),
		s.get(kwSigmaX, DefaultSigmaX), s.get(kwSigmaXP, DefaultSigmaXP),
		s.get(kwSigmaY, DefaultSigmaX), s.get(kwSigmaYP, DefaultSigmaXP),
		s.get(kwSigmaTau, DefaultSigmaTau), s.get(kwSigmaP, DefaultSigmaP),
		s.get(kwCorX, 0), s.get(kwCorY, 0), s.get(kwCorTau, 0),
		s.get(kwMuX, 0), s.get(kwMuXP, 0), s.get(kwMuY, 0), s.get(kwMuYP, 0), s.get(kwMuTau, 0), s.get(kwMuP, 0),
	)
	if err != nil {
		return nil, err
	}
	sigmas := v[1:7]
	cors := v[7:10]
	mus := v[10:16]

	for i, sig := range sigmas {
		if err := checkAll("sigma_"+Coordinate(i).String(), sig, nonNegative, "non-negative"); err != nil {
			return nil, err
		}
	}

	n := batch.NumElements()
	mean := make([]float64, n*Dim)
	cov := make([]float64, n*Dim*Dim)
	for b := 0; b < n; b++ {
		for i, mu := range mus {
			mean[b*Dim+i] = mu[b]
		}
		c := cov[b*Dim*Dim : (b+1)*Dim*Dim]
		for p, plane := range []Coordinate{X, Y, Tau} {
			s1, s2 := sigmas[2*p][b], sigmas[2*p+1][b]
			setPlane(c, plane, s1*s1, cors[p][b], s2*s2)
		}
	}

	return &moments{
		mean:   tensor.Wrap(mean, batch.Concat(Dim)),
		cov:    tensor.Wrap(cov, batch.Concat(Dim, Dim)),
		energy: tensor.Wrap(v[0], batch),
		batch:  batch,
	}, nil
}

func explicitMoments(mean, cov, energy *tensor.Tensor) (*moments, error) {
	ms, cs := mean.Shape(), cov.Shape()
	if len(ms) < 1 || ms[len(ms)-1] != Dim {
		return nil, fmt.Errorf("%w: mean shape %v is not (*batch, 6)", ErrShape, ms)
	}
	if len(cs) < 2 || cs[len(cs)-1] != Dim || cs[len(cs)-2] != Dim {
		return nil, fmt.Errorf("%w: covariance shape %v is not (*batch, 6, 6)", ErrShape, cs)
	}

	batch, err := tensor.BroadcastShapes(ms[:len(ms)-1], cs[:len(cs)-2], energy.Shape())
	if err != nil {
		return nil, err
	}
	m, err := mean.BroadcastTo(batch.Concat(Dim))
	if err != nil {
		return nil, err
	}
	c, err := cov.BroadcastTo(batch.Concat(Dim, Dim))
	if err != nil {
		return nil, err
	}
	e, err := energy.BroadcastTo(batch)
	if err != nil {
		return nil, err
	}
	if err := validateCovariance(c.Raw()); err != nil {
		return nil, err
	}
	return &moments{mean: m, cov: c, energy: e, batch: batch}, nil
}

// validateCovariance checks symmetry and non-negative variances of a
// stack of 6×6 matrices.
func validateCovariance(c []float64) error {
	for off := 0; off < len(c); off += Dim * Dim {
		m := c[off : off+Dim*Dim]
		for i := 0; i < Dim; i++ {
			if m[i*Dim+i] < 0 {
				return fmt.Errorf("%w: negative variance %g for %s", ErrInvalidParameter, m[i*Dim+i], Coordinate(i))
			}
			for j := i + 1; j < Dim; j++ {
				a, b := m[i*Dim+j], m[j*Dim+i]
				if math.Abs(a-b) > 1e-12*math.Max(math.Abs(a), math.Abs(b)) {
					return fmt.Errorf("%w: covariance not symmetric at (%s, %s)", ErrInvalidParameter, Coordinate(i), Coordinate(j))
				}
			}
		}
	}
	return nil
}

// setPlane fills the 2×2 block starting at coordinate c.
func setPlane(m []float64, c Coordinate, s11, s12, s22 float64) {
	i := int(c)
	m[i*Dim+i] = s11
	m[i*Dim+i+1] = s12
	m[(i+1)*Dim+i] = s12
	m[(i+1)*Dim+i+1] = s22
}
