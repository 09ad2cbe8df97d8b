package beam

import (
	"fmt"

	"github.com/san-kum/beamline/internal/tensor"
)

// LinearMap is an affine phase-space map out = R·in + D, batched over the
// leading dimensions of R (*batch, 6, 6) and D (*batch, 6).
type LinearMap struct {
	R *tensor.Tensor
	D *tensor.Tensor
}

// NewLinearMap validates the shapes of r and d. A nil d means no offset.
func NewLinearMap(r, d *tensor.Tensor) (LinearMap, error) {
	rs := r.Shape()
	if len(rs) < 2 || rs[len(rs)-1] != Dim || rs[len(rs)-2] != Dim {
		return LinearMap{}, fmt.Errorf("%w: transfer matrix shape %v is not (*batch, 6, 6)", ErrShape, rs)
	}
	batch := rs[:len(rs)-2]
	if d == nil {
		d = tensor.Zeros(batch.Concat(Dim))
	}
	ds := d.Shape()
	if !ds.Equal(batch.Concat(Dim)) {
		return LinearMap{}, fmt.Errorf("%w: offset shape %v does not match matrix batch %v", ErrShape, ds, batch)
	}
	return LinearMap{R: r, D: d}, nil
}

// Identity returns the identity map for the given batch shape.
func Identity(batch tensor.Shape) LinearMap {
	n := batch.NumElements()
	r := make([]float64, n*Dim*Dim)
	for b := 0; b < n; b++ {
		for i := 0; i < Dim; i++ {
			r[b*Dim*Dim+i*Dim+i] = 1
		}
	}
	return LinearMap{
		R: tensor.Wrap(r, batch.Concat(Dim, Dim)),
		D: tensor.Zeros(batch.Concat(Dim)),
	}
}

// BatchShape returns the map's batch shape.
func (m LinearMap) BatchShape() tensor.Shape {
	rs := m.R.Shape()
	return rs[:len(rs)-2]
}

// Then returns the map applying m first and next second.
func (m LinearMap) Then(next LinearMap) (LinearMap, error) {
	batch, err := tensor.BroadcastShapes(m.BatchShape(), next.BatchShape())
	if err != nil {
		return LinearMap{}, err
	}
	im, err := tensor.NewIndexer(m.BatchShape(), batch)
	if err != nil {
		return LinearMap{}, err
	}
	in, err := tensor.NewIndexer(next.BatchShape(), batch)
	if err != nil {
		return LinearMap{}, err
	}

	n := batch.NumElements()
	r := make([]float64, n*Dim*Dim)
	d := make([]float64, n*Dim)
	r1, d1 := m.R.Raw(), m.D.Raw()
	r2, d2 := next.R.Raw(), next.D.Raw()

	for b := 0; b < n; b++ {
		a, c := im.Index(b), in.Index(b)
		ra := r1[a*Dim*Dim : (a+1)*Dim*Dim]
		rc := r2[c*Dim*Dim : (c+1)*Dim*Dim]
		matMul(r[b*Dim*Dim:(b+1)*Dim*Dim], rc, ra)
		matVec(d[b*Dim:(b+1)*Dim], rc, d1[a*Dim:(a+1)*Dim])
		for i := 0; i < Dim; i++ {
			d[b*Dim+i] += d2[c*Dim+i]
		}
	}

	return LinearMap{R: tensor.Wrap(r, batch.Concat(Dim, Dim)), D: tensor.Wrap(d, batch.Concat(Dim))}, nil
}

// matVec writes r·v into dst.
func matVec(dst, r, v []float64) {
	for i := 0; i < Dim; i++ {
		s := 0.0
		row := r[i*Dim : (i+1)*Dim]
		for j, rij := range row {
			s += rij * v[j]
		}
		dst[i] = s
	}
}

// matMul writes a·b into dst.
func matMul(dst, a, b []float64) {
	for i := 0; i < Dim; i++ {
		for j := 0; j < Dim; j++ {
			s := 0.0
			for k := 0; k < Dim; k++ {
				s += a[i*Dim+k] * b[k*Dim+j]
			}
			dst[i*Dim+j] = s
		}
	}
}

// congruence writes r·s·rᵀ into dst, mirroring the upper triangle so the
// result is exactly symmetric.
func congruence(dst, r, s []float64) {
	var tmp [Dim * Dim]float64
	matMul(tmp[:], r, s)
	for i := 0; i < Dim; i++ {
		for j := i; j < Dim; j++ {
			v := 0.0
			for k := 0; k < Dim; k++ {
				v += tmp[i*Dim+k] * r[j*Dim+k]
			}
			dst[i*Dim+j] = v
			dst[j*Dim+i] = v
		}
	}
}
