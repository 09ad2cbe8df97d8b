package beam

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/san-kum/beamline/internal/tensor"
)

func TestParticleFromParametersStatistics(t *testing.T) {
	b, err := ParticleFromParameters(
		WithNumParticles(20_000),
		WithSeed(42),
		WithMuX(tensor.Scalar(1e-4)),
		WithSigmaX(tensor.Scalar(2e-4)),
		WithSigmaXP(tensor.Scalar(3e-6)),
		WithCorX(tensor.Scalar(-2e-10)),
	)
	if err != nil {
		t.Fatalf("ParticleFromParameters: %v", err)
	}
	if b.NumParticles() != 20_000 {
		t.Fatalf("n = %d", b.NumParticles())
	}
	if !b.Particles().Shape().Equal(tensor.Shape{20_000, 6}) {
		t.Fatalf("particles shape = %v", b.Particles().Shape())
	}

	if got := b.MuX().Item(); math.Abs(got-1e-4) > 5*2e-4/math.Sqrt(20_000) {
		t.Errorf("mu_x = %g, want ~1e-4", got)
	}
	if got := b.SigmaX().Item(); math.Abs(got-2e-4) > 0.03*2e-4 {
		t.Errorf("sigma_x = %g, want ~2e-4", got)
	}
	if got := b.SigmaXP().Item(); math.Abs(got-3e-6) > 0.03*3e-6 {
		t.Errorf("sigma_xp = %g, want ~3e-6", got)
	}
	corr := b.Cov().At(0, 1) / (b.SigmaX().Item() * b.SigmaXP().Item())
	if math.Abs(corr-(-2e-10/(2e-4*3e-6))) > 0.05 {
		t.Errorf("correlation = %g", corr)
	}
}

func TestParticleSeedIsDeterministic(t *testing.T) {
	a, _ := ParticleFromTwiss(WithNumParticles(100), WithSeed(7))
	b, _ := ParticleFromTwiss(WithNumParticles(100), WithSeed(7))
	c, _ := ParticleFromTwiss(WithNumParticles(100), WithSeed(8))

	if !tensor.Equal(a.Particles(), b.Particles()) {
		t.Error("same seed produced different ensembles")
	}
	if tensor.Equal(a.Particles(), c.Particles()) {
		t.Error("different seeds produced identical ensembles")
	}
}

func TestParticleBatchSharesNoise(t *testing.T) {
	b, err := ParticleFromParameters(
		WithNumParticles(50),
		WithSigmaX(tensor.Vector(1e-4, 2e-4)),
	)
	if err != nil {
		t.Fatalf("ParticleFromParameters: %v", err)
	}
	if !b.BatchShape().Equal(tensor.Shape{2}) {
		t.Fatalf("batch = %v", b.BatchShape())
	}
	first, _ := b.Index(0)
	second, _ := b.Index(1)
	x0 := first.(*ParticleBeam).Particles()
	x1 := second.(*ParticleBeam).Particles()
	for k := 0; k < 50; k++ {
		if a, c := x0.At(k, 0), x1.At(k, 0); math.Abs(2*a-c) > 1e-18 {
			t.Fatalf("particle %d: x = %g and %g, want a 1:2 ratio", k, a, c)
		}
	}
}

func TestParticleInvalidOptions(t *testing.T) {
	if _, err := ParticleFromTwiss(WithNumParticles(0)); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := ParticleFromTwiss(WithSigmaX(tensor.Scalar(1))); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewParticleBeam(tensor.Zeros(tensor.Shape{3, 6}), WithSeed(1)); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewParticleBeam(tensor.Zeros(tensor.Shape{3, 5})); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
	if _, err := NewParticleBeam(tensor.Zeros(tensor.Shape{3, 6}), WithWeights(tensor.Vector(1, -1, 1))); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestParticleTransformPreservesOrder(t *testing.T) {
	data := []float64{
		1, 0.1, 0, 0, 0, 0,
		2, 0.2, 0, 0, 0, 0,
		3, -0.3, 0, 0, 0, 0,
	}
	p, _ := tensor.New(data, tensor.Shape{3, 6})
	b, err := NewParticleBeam(p, WithEnergy(tensor.Scalar(1e9)))
	if err != nil {
		t.Fatalf("NewParticleBeam: %v", err)
	}

	r := Identity(tensor.Shape{}).R.Data()
	r[1] = 10
	m, _ := NewLinearMap(tensor.Wrap(r, tensor.Shape{6, 6}), nil)
	out, err := b.Transform(m)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	got := out.(*ParticleBeam).Particles()
	want := []float64{2, 4, 0}
	for k, w := range want {
		if x := got.At(k, 0); math.Abs(x-w) > 1e-12 {
			t.Errorf("particle %d: x = %g, want %g", k, x, w)
		}
	}
	if diff := cmp.Diff(data, b.Particles().Data(), cmpopts.EquateApprox(0, 0)); diff != "" {
		t.Errorf("Transform mutated its input (-want +got):\n%s", diff)
	}
	if got := out.Energy().Item(); got != 1e9 {
		t.Errorf("energy = %g", got)
	}
}

func TestParticleWeights(t *testing.T) {
	p, _ := tensor.New([]float64{
		0, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0,
	}, tensor.Shape{3, 6})
	b, err := NewParticleBeam(p, WithWeights(tensor.Vector(1, 0, 3)))
	if err != nil {
		t.Fatalf("NewParticleBeam: %v", err)
	}
	if got := b.MuX().Item(); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("weighted mu_x = %g, want 1.5", got)
	}
	if got := b.Weights().At(2); got != 3 {
		t.Errorf("weight = %g", got)
	}
}

func TestParticleWeightScaleInvariance(t *testing.T) {
	p, _ := tensor.New([]float64{
		-2, -1, 0, 0, 0, 0,
		-1, -0.5, 0, 0, 0, 0,
		1, 0.5, 0, 0, 0, 0,
		2, 1, 0, 0, 0, 0,
	}, tensor.Shape{4, 6})

	ref, err := NewParticleBeam(p)
	if err != nil {
		t.Fatalf("NewParticleBeam: %v", err)
	}
	if got, want := ref.SigmaX().Item(), math.Sqrt(10.0/3); math.Abs(got-want) > 1e-12 {
		t.Fatalf("unweighted sigma_x = %g, want %g", got, want)
	}

	tests := []struct {
		name    string
		weights []float64
		base    []float64
	}{
		{"uniform unit", []float64{1, 1, 1, 1}, nil},
		{"uniform quarter", []float64{0.25, 0.25, 0.25, 0.25}, nil},
		{"uniform charge", []float64{1e-15, 1e-15, 1e-15, 1e-15}, nil},
		{"ramp quarter", []float64{0.25, 0.5, 0.75, 1}, []float64{1, 2, 3, 4}},
		{"ramp charge", []float64{1e-15, 2e-15, 3e-15, 4e-15}, []float64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := Beam(ref)
			if tt.base != nil {
				if want, err = NewParticleBeam(p, WithWeights(tensor.Vector(tt.base...))); err != nil {
					t.Fatalf("NewParticleBeam: %v", err)
				}
			}
			b, err := NewParticleBeam(p, WithWeights(tensor.Vector(tt.weights...)))
			if err != nil {
				t.Fatalf("NewParticleBeam: %v", err)
			}

			for _, c := range []Coordinate{X, XP} {
				got := b.Sigma(c).Item()
				if math.IsNaN(got) || math.IsInf(got, 0) {
					t.Fatalf("sigma_%s = %g", c, got)
				}
				if w := want.Sigma(c).Item(); math.Abs(got-w) > 1e-9*w {
					t.Errorf("sigma_%s = %g, want %g", c, got, w)
				}
			}

			cov, wantCov := b.Cov(), want.Cov()
			for i := 0; i < Dim; i++ {
				if v := cov.At(i, i); v < 0 {
					t.Errorf("cov[%d][%d] = %g is negative", i, i, v)
				}
			}
			if got, w := cov.At(0, 1), wantCov.At(0, 1); math.Abs(got-w) > 1e-9*math.Abs(w) {
				t.Errorf("cov_x_xp = %g, want %g", got, w)
			}
		})
	}
}

func TestParticleBroadcastAndIndex(t *testing.T) {
	b, _ := ParticleFromTwiss(WithNumParticles(10), WithSeed(3))
	wide, err := b.Broadcast(tensor.Shape{3})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	pb := wide.(*ParticleBeam)
	if !pb.Particles().Shape().Equal(tensor.Shape{3, 10, 6}) {
		t.Fatalf("particles shape = %v", pb.Particles().Shape())
	}
	last, err := pb.Index(2)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !tensor.Equal(last.(*ParticleBeam).Particles(), b.Particles()) {
		t.Error("broadcast changed particle coordinates or order")
	}
	if _, err := wide.Broadcast(tensor.Shape{4}); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestAsParameterBeam(t *testing.T) {
	b, _ := ParticleFromParameters(WithNumParticles(500), WithSeed(11))
	pb := b.AsParameterBeam()
	if !tensor.AllClose(pb.Mean(), b.Mean(), 0, 0) {
		t.Error("means differ")
	}
	if !tensor.AllClose(pb.SigmaY(), b.SigmaY(), 1e-12, 0) {
		t.Error("sigma_y differs")
	}
}
