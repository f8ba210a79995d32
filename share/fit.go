package share

import (
	"fmt"
	"math"

	"picveil/pixgrid"

	"gonum.org/v1/gonum/mat"
)

// Polynomial holds coefficients from the constant term upwards.
type Polynomial []float64

func (p Polynomial) Eval(x float64) float64 {
	var y float64
	for i := len(p) - 1; i >= 0; i-- {
		y = y*x + p[i]
	}
	return y
}

func (p Polynomial) Degree() int {
	return len(p) - 1
}

// Fit returns the polynomial of the given degree minimizing the squared
// error over the points (x[i], y[i]).
func Fit(x, y []float64, degree int) (Polynomial, error) {
	if err := checkPoints(x, degree); err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d abscissas for %d values", pixgrid.ErrDimensionMismatch, len(x), len(y))
	}

	var c mat.VecDense
	if err := c.SolveVec(vandermonde(x, degree), mat.NewVecDense(len(y), append([]float64(nil), y...))); err != nil {
		return nil, fmt.Errorf("share: least-squares fit of degree %d: %w", degree, err)
	}

	p := make(Polynomial, degree+1)
	for i := range p {
		p[i] = c.AtVec(i)
	}
	return p, nil
}

// evalWeights returns w such that Fit(x, y, degree).Eval(at) equals the dot
// product of w and y for every y.
func evalWeights(x []float64, degree int, at float64) ([]float64, error) {
	if err := checkPoints(x, degree); err != nil {
		return nil, err
	}

	n := len(x)
	ident := mat.NewDense(n, n, nil)
	for i := range n {
		ident.Set(i, i, 1)
	}

	// columns of c are the least-squares coefficients of each unit vector
	var c mat.Dense
	if err := c.Solve(vandermonde(x, degree), ident); err != nil {
		return nil, fmt.Errorf("share: least-squares fit of degree %d: %w", degree, err)
	}

	w := make([]float64, n)
	for i := range n {
		w[i] = Polynomial(mat.Col(nil, i, &c)).Eval(at)
	}
	return w, nil
}

func vandermonde(x []float64, degree int) *mat.Dense {
	v := mat.NewDense(len(x), degree+1, nil)
	for i, xi := range x {
		p := 1.0
		for j := 0; j <= degree; j++ {
			v.Set(i, j, p)
			p *= xi
		}
	}
	return v
}

func checkPoints(x []float64, degree int) error {
	if degree < 0 {
		return fmt.Errorf("%w: negative degree %d", pixgrid.ErrInvalidInput, degree)
	}
	if len(x) < degree+1 {
		return fmt.Errorf("%w: %d points for a degree %d fit", ErrInsufficientShares, len(x), degree)
	}
	for i, xi := range x {
		if math.IsNaN(xi) || math.IsInf(xi, 0) {
			return fmt.Errorf("%w: abscissa %d is %v", pixgrid.ErrInvalidInput, i, xi)
		}
	}
	return nil
}
