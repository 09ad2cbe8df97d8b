package beam

import "github.com/san-kum/beamline/internal/tensor"

// Beam is the state transported through a lattice.
type Beam interface {
	// BatchShape is the leading batch shape shared by all beam tensors.
	BatchShape() tensor.Shape

	// Energy is the reference energy in eV, shaped like the batch.
	Energy() *tensor.Tensor

	// Mean returns the centroid, shape (*batch, 6).
	Mean() *tensor.Tensor

	// Cov returns the covariance about the centroid, shape (*batch, 6, 6).
	Cov() *tensor.Tensor

	// Mu returns the mean of one coordinate, shape (*batch).
	Mu(c Coordinate) *tensor.Tensor

	// Sigma returns the standard deviation of one coordinate, shape (*batch).
	Sigma(c Coordinate) *tensor.Tensor

	// Transform applies an affine map and returns a new beam of the same
	// variant. The output batch shape is the broadcast of the beam's and
	// the map's batch shapes.
	Transform(m LinearMap) (Beam, error)

	// Broadcast returns a copy whose batch shape is exactly shape.
	Broadcast(shape tensor.Shape) (Beam, error)

	// Index selects one entry along the leading batch axis.
	Index(i int) (Beam, error)
}
