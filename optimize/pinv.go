package optimize

import (
	"gonum.org/v1/gonum/mat"
)

// Rcond is the default relative cutoff for small singular values.
const Rcond = 1e-15

// Pinv computes the Moore-Penrose pseudoinverse of a using the
// singular value decomposition. Singular values smaller than
// Rcond times the largest one are treated as zero.
func Pinv(a mat.Matrix) (*mat.Dense, error) {
	return PinvCond(a, Rcond)
}

// PinvCond is Pinv with a custom relative cutoff.
func PinvCond(a mat.Matrix, rcond float64) (*mat.Dense, error) {
	r, c := a.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, &StatusError{Solver: "pinv", Status: Singular}
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	cutoff := 0.0
	if len(s) > 0 {
		cutoff = rcond * s[0]
	}
	// v * diag(1/s) * u^T
	vs := mat.NewDense(c, len(s), nil)
	for j, sv := range s {
		if sv <= cutoff {
			continue
		}
		for i := 0; i < c; i++ {
			vs.Set(i, j, v.At(i, j)/sv)
		}
	}
	res := mat.NewDense(c, r, nil)
	res.Mul(vs, u.T())
	return res, nil
}

// PinvSolve returns the minimum norm least squares solution of
// a*x = b.
func PinvSolve(a mat.Matrix, b []float64) ([]float64, error) {
	return PinvSolveCond(a, b, Rcond)
}

// PinvSolveCond is PinvSolve with a custom relative cutoff.
func PinvSolveCond(a mat.Matrix, b []float64, rcond float64) ([]float64, error) {
	pa, err := PinvCond(a, rcond)
	if err != nil {
		return nil, err
	}
	r, _ := pa.Dims()
	x := mat.NewVecDense(r, nil)
	x.MulVec(pa, mat.NewVecDense(len(b), b))
	return x.RawVector().Data, nil
}
