package lattice_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/beamline/internal/beam"
	"github.com/san-kum/beamline/internal/lattice"
	"github.com/san-kum/beamline/internal/tensor"
)

var _ = Describe("Segment", func() {
	var (
		incoming  beam.Beam
		corrector *lattice.HorizontalCorrector
		quad      *lattice.Quadrupole
	)

	BeforeEach(func() {
		var err error
		incoming, err = beam.FromTwiss(
			beam.WithEnergy(tensor.Scalar(1.8e7)),
			beam.WithBetaX(tensor.Scalar(5)),
			beam.WithAlphaX(tensor.Scalar(-0.5)),
			beam.WithMuX(tensor.Scalar(1e-3)),
		)
		Expect(err).NotTo(HaveOccurred())
		corrector, err = lattice.NewHorizontalCorrector(
			lattice.WithName("HCOR"),
			lattice.WithLength(tensor.Scalar(0.1)),
			lattice.WithHorizontalAngle(tensor.Scalar(2e-3)),
		)
		Expect(err).NotTo(HaveOccurred())
		quad, err = lattice.NewQuadrupole(
			lattice.WithName("Q1"),
			lattice.WithLength(tensor.Scalar(0.2)),
			lattice.WithK1(tensor.Scalar(8)),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	It("tracks elements in declaration order", func() {
		segment, err := lattice.NewSegment([]lattice.Element{corrector, quad})
		Expect(err).NotTo(HaveOccurred())
		viaSegment, err := segment.Track(incoming)
		Expect(err).NotTo(HaveOccurred())

		first, err := corrector.Track(incoming)
		Expect(err).NotTo(HaveOccurred())
		manual, err := quad.Track(first)
		Expect(err).NotTo(HaveOccurred())

		Expect(tensor.AllClose(viaSegment.Mean(), manual.Mean(), 1e-12, 1e-18)).To(BeTrue())
		Expect(tensor.AllClose(viaSegment.Cov(), manual.Cov(), 1e-12, 1e-24)).To(BeTrue())

		reversed, err := lattice.NewSegment([]lattice.Element{quad, corrector})
		Expect(err).NotTo(HaveOccurred())
		other, err := reversed.Track(incoming)
		Expect(err).NotTo(HaveOccurred())
		Expect(tensor.AllClose(other.Mean(), manual.Mean(), 1e-9, 1e-15)).To(BeFalse())
	})

	It("flattens nested segments", func() {
		marker, err := lattice.NewMarker(lattice.WithName("END"))
		Expect(err).NotTo(HaveOccurred())
		inner, err := lattice.NewSegment([]lattice.Element{corrector, quad}, lattice.WithName("inner"))
		Expect(err).NotTo(HaveOccurred())
		outer, err := lattice.NewSegment([]lattice.Element{inner, marker})
		Expect(err).NotTo(HaveOccurred())

		var names []string
		for _, e := range outer.Flatten() {
			names = append(names, e.Name())
		}
		Expect(names).To(Equal([]string{"HCOR", "Q1", "END"}))
		Expect(outer.Elements()).To(HaveLen(2))
		Expect(outer.Kind()).To(Equal(lattice.KindSegment))

		found, ok := outer.Element("Q1")
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(quad))
		_, ok = outer.Element("missing")
		Expect(ok).To(BeFalse())

		length, err := outer.Length()
		Expect(err).NotTo(HaveOccurred())
		Expect(length.Item()).To(BeNumerically("~", 0.3, 1e-15))
	})

	It("exposes leaf parameters by qualified name", func() {
		segment, err := lattice.NewSegment([]lattice.Element{corrector, quad})
		Expect(err).NotTo(HaveOccurred())
		Expect(segment.Parameters()).To(ContainElements("HCOR.horizontal_angle", "Q1.k1", "Q1.length"))

		Expect(segment.SetParameter("HCOR.horizontal_angle", tensor.Scalar(0))).To(Succeed())
		Expect(corrector.HorizontalAngle().Item()).To(BeZero())

		k1, err := segment.Parameter("Q1.k1")
		Expect(err).NotTo(HaveOccurred())
		Expect(k1.Item()).To(Equal(8.0))

		_, err = segment.Parameter("HCOR.vertical_angle")
		Expect(err).To(MatchError(beam.ErrConfiguration))
		_, err = segment.Parameter("k1")
		Expect(err).To(MatchError(beam.ErrConfiguration))
	})

	It("wraps element failures with the element name and position", func() {
		wide, err := lattice.NewDrift(lattice.WithName("WIDE"), lattice.WithLength(tensor.Vector(1, 2, 3)))
		Expect(err).NotTo(HaveOccurred())
		segment, err := lattice.NewSegment([]lattice.Element{corrector, wide})
		Expect(err).NotTo(HaveOccurred())

		batched, err := incoming.Broadcast(tensor.Shape{2})
		Expect(err).NotTo(HaveOccurred())
		_, err = segment.Track(batched)
		Expect(err).To(MatchError(beam.ErrShape))
		Expect(err.Error()).To(ContainSubstring("element 1 (WIDE)"))
	})

	It("broadcasts every element", func() {
		segment, err := lattice.NewSegment([]lattice.Element{corrector, quad})
		Expect(err).NotTo(HaveOccurred())
		wide, err := segment.Broadcast(tensor.Shape{4})
		Expect(err).NotTo(HaveOccurred())
		Expect(wide.BatchShape()).To(Equal(tensor.Shape{4}))
		Expect(wide.Name()).To(Equal(segment.Name()))
		Expect(segment.BatchShape()).To(Equal(tensor.Shape{}))

		out, err := wide.Track(incoming)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.BatchShape()).To(Equal(tensor.Shape{4}))
	})

	It("rejects children with incompatible batches", func() {
		a, err := lattice.NewDrift(lattice.WithLength(tensor.Vector(1, 2)))
		Expect(err).NotTo(HaveOccurred())
		b, err := lattice.NewDrift(lattice.WithLength(tensor.Vector(1, 2, 3)))
		Expect(err).NotTo(HaveOccurred())
		_, err = lattice.NewSegment([]lattice.Element{a, b})
		Expect(err).To(MatchError(beam.ErrShape))

		_, err = lattice.NewSegment([]lattice.Element{a, nil})
		Expect(err).To(MatchError(beam.ErrInvalidParameter))
	})
})
