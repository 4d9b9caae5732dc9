package spectrum

import "math"

// Frequency is the dispersion relation ω(k) for finite depth. The tanh
// argument saturates at 20 where it is 1 to float precision.
func Frequency(k, g, depth float64) float64 {
	return math.Sqrt(g * k * math.Tanh(math.Min(k*depth, 20)))
}

// FrequencyDerivative returns dω/dk. omega must be Frequency(k, g, depth) > 0.
func FrequencyDerivative(k, g, depth, omega float64) float64 {
	kh := k * depth
	ch := math.Cosh(kh)
	return g * (depth*k/(ch*ch) + math.Tanh(math.Min(kh, 20))) / (2 * omega)
}

// tmaCorrection attenuates the deep water spectrum for finite depth.
func tmaCorrection(omega, g, depth float64) float64 {
	omegaH := omega * math.Sqrt(depth/g)
	switch {
	case omegaH <= 1:
		return 0.5 * omegaH * omegaH
	case omegaH < 2:
		return 1 - 0.5*(2-omegaH)*(2-omegaH)
	default:
		return 1
	}
}

// JONSWAP is the spectral energy density at omega.
func JONSWAP(omega float64, p Parameters, d Derived) float64 {
	sigma := 0.09
	if omega <= d.PeakOmega {
		sigma = 0.07
	}
	dw := omega - d.PeakOmega
	r := math.Exp(-dw * dw / (2 * sigma * sigma * d.PeakOmega * d.PeakOmega))

	inv := 1 / omega
	peak := d.PeakOmega * inv
	return p.Scale * tmaCorrection(omega, p.Gravity, p.Depth) * d.Alpha * p.Gravity * p.Gravity *
		inv * inv * inv * inv * inv *
		math.Exp(-1.25*peak*peak*peak*peak) *
		math.Pow(math.Abs(p.PeakEnhancement), r)
}

// NormalisationFactor makes the cos-2s spread integrate to one over θ.
func NormalisationFactor(s float64) float64 {
	s2 := s * s
	s3 := s2 * s
	s4 := s3 * s
	if s < 5 {
		return -0.000564*s4 + 0.00776*s3 - 0.044*s2 + 0.192*s + 0.163
	}
	return -4.80e-8*s4 + 1.07e-5*s3 - 9.53e-4*s2 + 5.90e-2*s + 3.93e-1
}

// SpreadPower is the cos-2s exponent for a wave at omega.
func SpreadPower(omega, peakOmega float64) float64 {
	if omega > peakOmega {
		return 9.77 * math.Pow(math.Abs(omega/peakOmega), -2.5)
	}
	return 6.97 * math.Pow(math.Abs(omega/peakOmega), 5)
}

func cosine2s(theta, s float64) float64 {
	return NormalisationFactor(s) * math.Pow(math.Abs(math.Cos(0.5*theta)), 2*s)
}

// Direction is the directional spreading D(θ, ω), blending a plain cos²
// spread with the swell narrowed cos-2s spread around the wind angle.
func Direction(theta, omega float64, p Parameters, d Derived) float64 {
	s := SpreadPower(omega, d.PeakOmega) +
		16*math.Tanh(math.Min(omega/d.PeakOmega, 20))*d.Swell*d.Swell
	c := math.Cos(theta)
	return lerp(2/math.Pi*c*c, cosine2s(theta-d.Angle, s), p.SpreadBlend)
}

// ShortWavesFade damps wavelengths well below the grid resolution.
func ShortWavesFade(k, fade float64) float64 {
	return math.Exp(-fade * fade * k * k)
}

// Density returns S(k) including the dω/dk / k Jacobian, so that
// h0 = gauss·√(2·S·Δk²).
func Density(kx, kz float64, p Parameters, d Derived) (s, omega float64) {
	k := math.Hypot(kx, kz)
	if k == 0 {
		return 0, 0
	}
	omega = Frequency(k, p.Gravity, p.Depth)
	dOmega := FrequencyDerivative(k, p.Gravity, p.Depth, omega)
	theta := math.Atan2(kz, kx)
	s = JONSWAP(omega, p, d) * Direction(theta, omega, p, d) * ShortWavesFade(k, p.ShortWavesFade) *
		math.Abs(dOmega) / k
	return s, omega
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
