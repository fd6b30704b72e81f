package tiled

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reductions over float64 arrays. Each is an Operation whose partials can
// be combined without materializing shared regions.

// SumOf sums the cells of every region.
func SumOf[M any]() Operation[float64, M, float64, float64] {
	return Uniform(sumWindow[M], sumPartials[M])
}

// MinOf returns the smallest cell of every region.
func MinOf[M any]() Operation[float64, M, float64, float64] {
	return Uniform(
		func(w Window[float64], _ *M) (float64, error) { return floats.Min(w.Data), nil },
		func(ps []float64, _ *M, _ Ranges) (float64, error) { return floats.Min(ps), nil },
	)
}

// MaxOf returns the largest cell of every region.
func MaxOf[M any]() Operation[float64, M, float64, float64] {
	return Uniform(
		func(w Window[float64], _ *M) (float64, error) { return floats.Max(w.Data), nil },
		func(ps []float64, _ *M, _ Ranges) (float64, error) { return floats.Max(ps), nil },
	)
}

// CountOf counts the cells of every region inside the array.
func CountOf[T, M any]() Operation[T, M, int, int] {
	return Uniform(
		func(w Window[T], _ *M) (int, error) { return w.Len(), nil },
		func(ps []int, _ *M, _ Ranges) (int, error) {
			n := 0
			for _, p := range ps {
				n += p
			}
			return n, nil
		},
	)
}

// Moments is the partial state of a mean.
type Moments struct {
	Sum   float64
	Count int
}

// MeanOf averages the cells of every region.
func MeanOf[M any]() Operation[float64, M, Moments, float64] {
	return NewSplit(
		func(w Window[float64], _ *M) (float64, error) { return stat.Mean(w.Data, nil), nil },
		func(w Window[float64], _ *M) (Moments, error) {
			return Moments{Sum: floats.Sum(w.Data), Count: w.Len()}, nil
		},
		func(ps []Moments, _ *M, _ Ranges) (float64, error) {
			var total Moments
			for _, p := range ps {
				total.Sum += p.Sum
				total.Count += p.Count
			}
			return total.Sum / float64(total.Count), nil
		},
	)
}

func sumWindow[M any](w Window[float64], _ *M) (float64, error) {
	return floats.Sum(w.Data), nil
}

func sumPartials[M any](ps []float64, _ *M, _ Ranges) (float64, error) {
	return floats.Sum(ps), nil
}
