package lattice_test

import (
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
)

var _ = Describe("Drift", func() {
	It("builds the drift transfer matrix", func() {
		drift, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(2)))
		Expect(err).NotTo(HaveOccurred())

		energy := 10 * beam.ElectronMassEV
		m, err := drift.TransferMap(tensor.Scalar(energy))
		Expect(err).NotTo(HaveOccurred())
		Expect(m.R.Shape()).To(Equal(tensor.Shape{6, 6}))

		Expect(m.R.At(0, 1)).To(Equal(2.0))
		Expect(m.R.At(2, 3)).To(Equal(2.0))
		Expect(m.R.At(4, 5)).To(BeNumerically("~", -2*0.01/0.99, 1e-12))
		Expect(m.R.At(1, 1)).To(Equal(1.0))
		Expect(m.D.Sum()).To(BeZero())
	})

	It("moves x by L·xp and keeps the input beam intact", func() {
		incoming, err := beam.FromParameters(beam.WithMuXP(tensor.Scalar(1e-3)))
		Expect(err).NotTo(HaveOccurred())
		before := incoming.Mean()

		drift, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(0.5)))
		Expect(err).NotTo(HaveOccurred())
		out, err := drift.Track(incoming)
		Expect(err).NotTo(HaveOccurred())

		Expect(out.Mu(beam.X).Item()).To(BeNumerically("~", 5e-4, 1e-15))
		Expect(tensor.Equal(incoming.Mean(), before)).To(BeTrue())
	})

	It("accepts zero and negative lengths", func() {
		for _, l := range []float64{0, -0.2} {
			drift, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(l)))
			Expect(err).NotTo(HaveOccurred())
			_, err = drift.TransferMap(tensor.Scalar(1e8))
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("rejects options of other elements", func() {
		_, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(1)), lattice.WithK1(tensor.Scalar(1)))
		Expect(err).To(MatchError(beam.ErrConfiguration))
		_, err = lattice.NewDrift()
		Expect(err).To(MatchError(beam.ErrConfiguration))
		_, err = lattice.NewDrift(lattice.WithLength(tensor.Scalar(1)), lattice.WithLength(tensor.Scalar(2)))
		Expect(err).To(MatchError(beam.ErrConfiguration))
	})

	It("broadcasts its batch against the beam", func() {
		incoming, err := beam.FromParameters(beam.WithMuXP(tensor.Vector(1e-3, 2e-3)))
		Expect(err).NotTo(HaveOccurred())
		drift, err := lattice.NewDrift(lattice.WithLength(mustTensor(tensor.Shape{3, 1}, 1, 2, 3)))
		Expect(err).NotTo(HaveOccurred())

		out, err := drift.Track(incoming)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.BatchShape()).To(Equal(tensor.Shape{3, 2}))
		Expect(out.Mu(beam.X).At(2, 1)).To(BeNumerically("~", 6e-3, 1e-15))
	})

	It("names incompatible shapes", func() {
		incoming, err := beam.FromParameters(beam.WithMuXP(tensor.Vector(1, 2)))
		Expect(err).NotTo(HaveOccurred())
		drift, err := lattice.NewDrift(lattice.WithLength(tensor.Vector(1, 2, 3)))
		Expect(err).NotTo(HaveOccurred())

		_, err = drift.Track(incoming)
		Expect(err).To(MatchError(beam.ErrShape))
		Expect(err.Error()).To(ContainSubstring("(3,)"))
		Expect(err.Error()).To(ContainSubstring("(2,)"))

		_, err = drift.Broadcast(tensor.Shape{2})
		Expect(err).To(MatchError(beam.ErrShape))
	})

	It("generates unique names of the form kind_n", func() {
		a, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(1)))
		Expect(err).NotTo(HaveOccurred())
		b, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(1)))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Name()).To(HavePrefix("drift_"))
		Expect(a.Name()).NotTo(Equal(b.Name()))
		Expect(a.Name()).To(Equal(a.Name()))

		named, err := lattice.NewDrift(lattice.WithName("D1"), lattice.WithLength(tensor.Scalar(1)))
		Expect(err).NotTo(HaveOccurred())
		Expect(named.Name()).To(Equal("D1"))

		wide, err := named.Broadcast(tensor.Shape{4})
		Expect(err).NotTo(HaveOccurred())
		Expect(wide.Name()).To(Equal("D1"))
	})
})

var _ = Describe("Quadrupole", func() {
	It("focuses in x and defocuses in y for positive k1", func() {
		q, err := lattice.NewQuadrupole(lattice.WithLength(tensor.Scalar(0.2)), lattice.WithK1(tensor.Scalar(4)))
		Expect(err).NotTo(HaveOccurred())
		m, err := q.TransferMap(tensor.Scalar(1e8))
		Expect(err).NotTo(HaveOccurred())

		phi := 2 * 0.2
		Expect(m.R.At(0, 0)).To(BeNumerically("~", math.Cos(phi), 1e-12))
		Expect(m.R.At(0, 1)).To(BeNumerically("~", math.Sin(phi)/2, 1e-12))
		Expect(m.R.At(1, 0)).To(BeNumerically("~", -2*math.Sin(phi), 1e-12))
		Expect(m.R.At(2, 2)).To(BeNumerically("~", math.Cosh(phi), 1e-12))
		Expect(m.R.At(3, 2)).To(BeNumerically("~", 2*math.Sinh(phi), 1e-12))
	})

	It("reduces to a drift when k1 is zero", func() {
		q, err := lattice.NewQuadrupole(lattice.WithLength(tensor.Scalar(0.7)))
		Expect(err).NotTo(HaveOccurred())
		d, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(0.7)))
		Expect(err).NotTo(HaveOccurred())

		mq, err := q.TransferMap(tensor.Scalar(1e8))
		Expect(err).NotTo(HaveOccurred())
		md, err := d.TransferMap(tensor.Scalar(1e8))
		Expect(err).NotTo(HaveOccurred())
		Expect(tensor.Equal(mq.R, md.R)).To(BeTrue())
	})

	It("is symplectic in each transverse plane", func() {
		q, err := lattice.NewQuadrupole(lattice.WithLength(tensor.Scalar(0.3)), lattice.WithK1(tensor.Vector(-5, 3)))
		Expect(err).NotTo(HaveOccurred())
		m, err := q.TransferMap(tensor.Scalar(1e8))
		Expect(err).NotTo(HaveOccurred())
		for b := 0; b < 2; b++ {
			for _, i := range []int{0, 2} {
				det := m.R.At(b, i, i)*m.R.At(b, i+1, i+1) - m.R.At(b, i, i+1)*m.R.At(b, i+1, i)
				Expect(det).To(BeNumerically("~", 1, 1e-12))
			}
		}
	})
})

var _ = Describe("Marker and BPM", func() {
	It("pass the beam through unchanged", func() {
		incoming, err := beam.FromParameters(beam.WithMuX(tensor.Scalar(1e-3)))
		Expect(err).NotTo(HaveOccurred())

		marker, err := lattice.NewMarker(lattice.WithName("M"))
		Expect(err).NotTo(HaveOccurred())
		out, err := marker.Track(incoming)
		Expect(err).NotTo(HaveOccurred())
		Expect(tensor.Equal(out.Mean(), incoming.Mean())).To(BeTrue())
		Expect(marker.Parameters()).To(BeEmpty())

		_, err = lattice.NewMarker(lattice.WithLength(tensor.Scalar(1)))
		Expect(err).To(MatchError(beam.ErrConfiguration))
	})

	It("records the centroid at a BPM", func() {
		bpm, err := lattice.NewBPM()
		Expect(err).NotTo(HaveOccurred())
		_, _, ok := bpm.Reading()
		Expect(ok).To(BeFalse())

		incoming, err := beam.FromParameters(beam.WithMuX(tensor.Scalar(1e-3)), beam.WithMuY(tensor.Scalar(-2e-3)))
		Expect(err).NotTo(HaveOccurred())
		_, err = bpm.Track(incoming)
		Expect(err).NotTo(HaveOccurred())

		x, y, ok := bpm.Reading()
		Expect(ok).To(BeTrue())
		Expect(x.Item()).To(Equal(1e-3))
		Expect(y.Item()).To(Equal(-2e-3))
		Expect(strings.HasPrefix(bpm.Name(), "bpm_")).To(BeTrue())

		length, err := bpm.Length()
		Expect(err).NotTo(HaveOccurred())
		Expect(length.Item()).To(BeZero())
	})
})
