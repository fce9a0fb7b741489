// Package floatutils provides utilities for working with floats and
// allocation vectors on the probability simplex
package floatutils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// SimplexTolerance is the tolerance allowed on the sum of an allocation
// vector
const SimplexTolerance float64 = 1e-5

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// WithCash returns the full allocation vector for a non-cash
// allocation. The cash weight 1 - sum(nonCash) is prepended.
//
// This is the only place where the full allocation is rebuilt from
// its non-cash part.
func WithCash(nonCash []float64) []float64 {
	full := make([]float64, len(nonCash)+1)
	full[0] = 1.0 - floats.Sum(nonCash)
	copy(full[1:], nonCash)
	return full
}

// NonCash returns a copy of the non-cash part of a full allocation
func NonCash(full []float64) []float64 {
	if len(full) == 0 {
		return nil
	}
	nonCash := make([]float64, len(full)-1)
	copy(nonCash, full[1:])
	return nonCash
}

// Softmax returns the softmax of the logits. The maximum logit is
// subtracted before exponentiating.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	max := floats.Max(logits)
	for i, l := range logits {
		out[i] = math.Exp(l - max)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// UniformSimplex draws m independent Uniform(0, 1) values and
// normalises them by their sum.
func UniformSimplex(m int, rng distuv.Uniform) []float64 {
	out := make([]float64, m)
	for i := range out {
		out[i] = rng.Rand()
	}
	sum := floats.Sum(out)
	if sum == 0 {
		// Every draw was exactly zero
		for i := range out {
			out[i] = 1.0 / float64(m)
		}
		return out
	}
	floats.Scale(1/sum, out)
	return out
}

// OnSimplex returns an error if the full allocation vector has a
// negative entry or does not sum to one within SimplexTolerance
func OnSimplex(full []float64) error {
	for i, w := range full {
		if w < -SimplexTolerance || math.IsNaN(w) {
			return fmt.Errorf("onSimplex: weight %d is invalid (%v)", i, w)
		}
	}
	if sum := floats.Sum(full); math.Abs(sum-1.0) > SimplexTolerance {
		return fmt.Errorf("onSimplex: weights sum to %v", sum)
	}
	return nil
}

// Flatten concatenates the rows into a single row-major slice
func Flatten(rows [][]float64) []float64 {
	size := 0
	for _, row := range rows {
		size += len(row)
	}
	out := make([]float64, 0, size)
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// Rows splits a row-major slice into rows of the given width
func Rows(data []float64, width int) [][]float64 {
	rows := make([][]float64, len(data)/width)
	for i := range rows {
		row := make([]float64, width)
		copy(row, data[i*width:(i+1)*width])
		rows[i] = row
	}
	return rows
}
