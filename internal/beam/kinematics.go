package beam

import "math"

// ElectronMassEV is the electron rest energy in eV.
const ElectronMassEV = 0.51099895e6

// Kinematics returns the Lorentz factor gamma, 1/gamma² and the velocity
// beta = v/c of an electron with total energy energy (eV). A zero energy
// yields gamma = 0 and 1/gamma² = 0. Energies below the rest mass give
// beta = 0.
func Kinematics(energy float64) (gamma, igamma2, beta float64) {
	gamma = energy / ElectronMassEV
	if gamma != 0 {
		igamma2 = 1 / (gamma * gamma)
	}
	beta = math.Sqrt(math.Max(1-igamma2, 0))
	return gamma, igamma2, beta
}
