package lattice_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/beamline/internal/tensor"
)

func TestLattice(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lattice Suite")
}

func mustTensor(shape tensor.Shape, values ...float64) *tensor.Tensor {
	t, err := tensor.New(values, shape)
	Expect(err).NotTo(HaveOccurred())
	return t
}
