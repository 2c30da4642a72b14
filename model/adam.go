package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Adam is the Adam optimizer with bias correction.
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64
	t       int
}

// NewAdam returns Adam with the usual moment decay rates.
func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Step applies the accumulated gradients, scaled by scale, and clears them.
func (a *Adam) Step(params []*Param, scale float64) {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	lr := a.LR * math.Sqrt(c2) / c1
	for _, p := range params {
		w, g := p.data(), p.grad()
		m, v := p.m.RawMatrix().Data, p.v.RawMatrix().Data
		for i, gi := range g {
			gi *= scale
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*gi
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*gi*gi
			w[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
		}
		p.zeroGrad()
	}
}

// gradNorm is the L2 norm of all gradients together.
func gradNorm(params []*Param) float64 {
	var sum float64
	for _, p := range params {
		g := p.grad()
		sum += floats.Dot(g, g)
	}
	return math.Sqrt(sum)
}
