package lattice_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
)

var _ = Describe("HorizontalCorrector", func() {
	var incoming *beam.ParameterBeam

	BeforeEach(func() {
		var err error
		incoming, err = beam.FromTwiss(
			beam.WithEnergy(tensor.Vector(1.8e7)),
			beam.WithBetaX(tensor.Vector(5)),
			beam.WithBetaY(tensor.Vector(5)),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("with zero angle", func() {
		It("behaves like a drift of the same length", func() {
			corrector, err := lattice.NewHorizontalCorrector(
				lattice.WithLength(tensor.Vector(0.3)),
				lattice.WithHorizontalAngle(tensor.Vector(0)),
			)
			Expect(err).NotTo(HaveOccurred())
			drift, err := lattice.NewDrift(lattice.WithLength(tensor.Vector(0.3)))
			Expect(err).NotTo(HaveOccurred())

			viaCorrector, err := corrector.Track(incoming)
			Expect(err).NotTo(HaveOccurred())
			viaDrift, err := drift.Track(incoming)
			Expect(err).NotTo(HaveOccurred())

			Expect(tensor.AllClose(viaCorrector.Mu(beam.XP), viaDrift.Mu(beam.XP), 1e-9, 1e-15)).To(BeTrue())
			Expect(tensor.AllClose(viaCorrector.Mean(), viaDrift.Mean(), 1e-9, 1e-15)).To(BeTrue())
			Expect(tensor.AllClose(viaCorrector.Cov(), viaDrift.Cov(), 1e-9, 1e-24)).To(BeTrue())
		})

		It("defaults the angle to zero", func() {
			corrector, err := lattice.NewHorizontalCorrector(lattice.WithLength(tensor.Scalar(0.1)))
			Expect(err).NotTo(HaveOccurred())
			Expect(corrector.HorizontalAngle().Item()).To(BeZero())
		})
	})

	Context("with a kick", func() {
		It("sets mu_xp to the angle and leaves the vertical plane alone", func() {
			corrector, err := lattice.NewHorizontalCorrector(
				lattice.WithLength(tensor.Vector(0.3)),
				lattice.WithHorizontalAngle(tensor.Vector(0)),
			)
			Expect(err).NotTo(HaveOccurred())
			drift, err := lattice.NewDrift(lattice.WithLength(tensor.Vector(1.0)))
			Expect(err).NotTo(HaveOccurred())
			viaDrift, err := drift.Track(incoming)
			Expect(err).NotTo(HaveOccurred())

			Expect(corrector.SetHorizontalAngle(tensor.Vector(7.0))).To(Succeed())
			on, err := corrector.Track(incoming)
			Expect(err).NotTo(HaveOccurred())

			Expect(corrector.Name()).NotTo(BeEmpty())
			Expect(tensor.AllClose(on.Mu(beam.YP), viaDrift.Mu(beam.YP), 1e-9, 1e-15)).To(BeTrue())
			Expect(tensor.AllClose(on.Mu(beam.XP), corrector.HorizontalAngle(), 1e-9, 0)).To(BeTrue())
			Expect(tensor.AllClose(on.Mu(beam.XP), viaDrift.Mu(beam.XP), 1e-9, 1e-15)).To(BeFalse())
		})

		It("does not change the covariance", func() {
			corrector, err := lattice.NewHorizontalCorrector(
				lattice.WithLength(tensor.Scalar(0.3)),
				lattice.WithHorizontalAngle(tensor.Scalar(1e-3)),
			)
			Expect(err).NotTo(HaveOccurred())
			drift, err := lattice.NewDrift(lattice.WithLength(tensor.Scalar(0.3)))
			Expect(err).NotTo(HaveOccurred())

			kicked, err := corrector.Track(incoming)
			Expect(err).NotTo(HaveOccurred())
			drifted, err := drift.Track(incoming)
			Expect(err).NotTo(HaveOccurred())
			Expect(tensor.AllClose(kicked.Cov(), drifted.Cov(), 1e-12, 0)).To(BeTrue())
		})

		It("uses the new angle after SetParameter", func() {
			corrector, err := lattice.NewHorizontalCorrector(lattice.WithLength(tensor.Scalar(0)))
			Expect(err).NotTo(HaveOccurred())

			Expect(corrector.SetParameter(lattice.ParamHorizontalAngle, tensor.Scalar(2e-3))).To(Succeed())
			out, err := corrector.Track(incoming)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Mu(beam.XP).Item()).To(BeNumerically("~", 2e-3, 1e-15))

			Expect(corrector.SetAngle(tensor.Scalar(-1e-3))).To(Succeed())
			out, err = corrector.Track(incoming)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Mu(beam.XP).Item()).To(BeNumerically("~", -1e-3, 1e-15))
		})
	})

	Context("parameter exclusivity", func() {
		It("rejects a vertical angle at construction", func() {
			_, err := lattice.NewHorizontalCorrector(
				lattice.WithLength(tensor.Vector(0.3)),
				lattice.WithHorizontalAngle(tensor.Vector(5.0)),
				lattice.WithVerticalAngle(tensor.Vector(7.0)),
			)
			Expect(err).To(MatchError(beam.ErrConfiguration))
		})

		It("accepts the horizontal angle alone", func() {
			corrector, err := lattice.NewHorizontalCorrector(
				lattice.WithLength(tensor.Vector(0.3)),
				lattice.WithHorizontalAngle(tensor.Vector(5.0)),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(corrector.HorizontalAngle().At(0)).To(Equal(5.0))
			Expect(corrector.Parameters()).To(Equal([]string{lattice.ParamLength, lattice.ParamHorizontalAngle}))
		})

		It("rejects access to a vertical angle", func() {
			corrector, err := lattice.NewHorizontalCorrector(
				lattice.WithLength(tensor.Vector(0.3)),
				lattice.WithHorizontalAngle(tensor.Vector(5.0)),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = corrector.Parameter(lattice.ParamVerticalAngle)
			Expect(err).To(MatchError(beam.ErrConfiguration))
			Expect(corrector.SetParameter(lattice.ParamVerticalAngle, tensor.Scalar(1))).To(MatchError(beam.ErrConfiguration))
		})

		It("requires a length", func() {
			_, err := lattice.NewHorizontalCorrector(lattice.WithHorizontalAngle(tensor.Scalar(1e-3)))
			Expect(err).To(MatchError(beam.ErrConfiguration))
		})

		It("rejects nil values", func() {
			corrector, err := lattice.NewHorizontalCorrector(lattice.WithLength(tensor.Scalar(0.3)))
			Expect(err).NotTo(HaveOccurred())
			Expect(corrector.SetHorizontalAngle(nil)).To(MatchError(beam.ErrInvalidParameter))
		})
	})

	Context("batched execution", func() {
		It("gives equal outputs for equal angles and different outputs otherwise", func() {
			shape := tensor.Shape{3}
			pb, err := beam.ParticleFromParameters(
				beam.WithNumParticles(10_000),
				beam.WithEnergy(tensor.Vector(1.8e7)),
			)
			Expect(err).NotTo(HaveOccurred())
			incoming, err := pb.Broadcast(shape)
			Expect(err).NotTo(HaveOccurred())

			corrector, err := lattice.NewHorizontalCorrector(
				lattice.WithLength(tensor.Vector(0.04, 0.04, 0.04)),
				lattice.WithHorizontalAngle(tensor.Vector(0.001, 0.003, 0.001)),
			)
			Expect(err).NotTo(HaveOccurred())
			drift, err := lattice.NewDrift(lattice.WithLength(tensor.Vector(0.5)))
			Expect(err).NotTo(HaveOccurred())
			wideDrift, err := drift.Broadcast(shape)
			Expect(err).NotTo(HaveOccurred())

			segment, err := lattice.NewSegment([]lattice.Element{corrector, wideDrift})
			Expect(err).NotTo(HaveOccurred())
			outgoing, err := segment.Track(incoming)
			Expect(err).NotTo(HaveOccurred())
			Expect(outgoing.BatchShape()).To(Equal(shape))

			particles := func(i int) *tensor.Tensor {
				entry, err := outgoing.Index(i)
				Expect(err).NotTo(HaveOccurred())
				return entry.(*beam.ParticleBeam).Particles()
			}
			Expect(tensor.AllClose(particles(0), particles(2), 1e-9, 1e-15)).To(BeTrue())
			Expect(tensor.AllClose(particles(0), particles(1), 1e-9, 1e-15)).To(BeFalse())
			Expect(outgoing.(*beam.ParticleBeam).NumParticles()).To(Equal(10_000))
		})
	})
})

var _ = Describe("VerticalCorrector", func() {
	It("kicks yp only", func() {
		incoming, err := beam.FromParameters(beam.WithEnergy(tensor.Scalar(1e8)))
		Expect(err).NotTo(HaveOccurred())
		corrector, err := lattice.NewVerticalCorrector(
			lattice.WithLength(tensor.Scalar(0.2)),
			lattice.WithVerticalAngle(tensor.Scalar(4e-4)),
		)
		Expect(err).NotTo(HaveOccurred())

		out, err := corrector.Track(incoming)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Mu(beam.YP).Item()).To(BeNumerically("~", 4e-4, 1e-15))
		Expect(out.Mu(beam.XP).Item()).To(BeZero())
		Expect(corrector.Plane()).To(Equal(beam.Vertical))
	})

	It("rejects a horizontal angle", func() {
		_, err := lattice.NewVerticalCorrector(
			lattice.WithLength(tensor.Scalar(0.2)),
			lattice.WithHorizontalAngle(tensor.Scalar(1)),
		)
		Expect(err).To(MatchError(beam.ErrConfiguration))

		corrector, err := lattice.NewVerticalCorrector(lattice.WithLength(tensor.Scalar(0.2)))
		Expect(err).NotTo(HaveOccurred())
		_, err = corrector.Parameter(lattice.ParamHorizontalAngle)
		Expect(err).To(MatchError(beam.ErrConfiguration))
	})

	It("satisfies Corrector alongside the horizontal variant", func() {
		h, err := lattice.NewHorizontalCorrector(lattice.WithLength(tensor.Scalar(0)))
		Expect(err).NotTo(HaveOccurred())
		v, err := lattice.NewVerticalCorrector(lattice.WithLength(tensor.Scalar(0)))
		Expect(err).NotTo(HaveOccurred())

		for _, c := range []lattice.Corrector{h, v} {
			Expect(c.SetAngle(tensor.Scalar(1e-3))).To(Succeed())
			Expect(c.Angle().Item()).To(Equal(1e-3))
		}
		Expect(h.Plane()).To(Equal(beam.Horizontal))
	})
})
