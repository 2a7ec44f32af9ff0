// Package stability filters surrogate features by the entropy of their
// coefficient sign distribution across repeated bootstrap refits. A
// feature whose coefficient flips sign freely between resamples is not
// explaining anything local and gets eliminated.
package stability

import "math"

// SignEntropy returns the Shannon entropy (base 2) of the sign
// distribution of a coefficient sample. Signs are bucketed as -1, 0,
// +1; a single-bucket distribution has entropy 0.
func SignEntropy(coefs []float64) float64 {
	if len(coefs) == 0 {
		return 0
	}
	var neg, zero, pos float64
	for _, c := range coefs {
		switch {
		case c > 0:
			pos++
		case c < 0:
			neg++
		default:
			zero++
		}
	}
	n := float64(len(coefs))
	var h float64
	for _, cnt := range []float64{neg, zero, pos} {
		if cnt == 0 {
			continue
		}
		p := cnt / n
		h -= p * math.Log2(p)
	}
	return h
}
