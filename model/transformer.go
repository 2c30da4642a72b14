package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const layerNormEps = 1e-6

// layerNorm normalizes each row to zero mean and unit variance, then scales
// and shifts it.
type layerNorm struct {
	gamma, beta *Param
	xhat        [][]float64
	inv         []float64
}

func newLayerNorm(name string, dim int) *layerNorm {
	ln := &layerNorm{gamma: newParam(name+"/gamma", 1, dim), beta: newParam(name+"/beta", 1, dim)}
	fill(ln.gamma, 1)
	return ln
}

func (ln *layerNorm) params() []*Param { return []*Param{ln.gamma, ln.beta} }

func (ln *layerNorm) forward(x [][]float64) [][]float64 {
	n, d := len(x), len(x[0])
	ln.xhat = matrix(n, d)
	ln.inv = make([]float64, n)
	out := matrix(n, d)
	g, b := ln.gamma.row(0), ln.beta.row(0)
	for t, row := range x {
		mean := floats.Sum(row) / float64(d)
		var variance float64
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(d)
		inv := 1 / math.Sqrt(variance+layerNormEps)
		ln.inv[t] = inv
		for j, v := range row {
			ln.xhat[t][j] = (v - mean) * inv
			out[t][j] = g[j]*ln.xhat[t][j] + b[j]
		}
	}
	return out
}

func (ln *layerNorm) backward(dy [][]float64) [][]float64 {
	n, d := len(dy), len(dy[0])
	dx := matrix(n, d)
	g := ln.gamma.row(0)
	dg, db := ln.gamma.G.RawRowView(0), ln.beta.G.RawRowView(0)
	dxhat := make([]float64, d)
	for t, row := range dy {
		xh := ln.xhat[t]
		var sum, dot float64
		for j, v := range row {
			dg[j] += v * xh[j]
			db[j] += v
			dxhat[j] = v * g[j]
			sum += dxhat[j]
			dot += dxhat[j] * xh[j]
		}
		scale := ln.inv[t] / float64(d)
		for j := range dx[t] {
			dx[t][j] = scale * (float64(d)*dxhat[j] - sum - xh[j]*dot)
		}
	}
	return dx
}

// selfAttention is multi-head scaled dot-product self attention with
// dropout on the attention weights.
type selfAttention struct {
	heads      int
	q, k, v, o *dense
	rate       float64

	qs, ks, vs [][]float64
	probs      [][][]float64 // per head, softmax weights
	dropped    [][][]float64 // per head, weights after dropout
	masks      [][][]float64
}

func newSelfAttention(name string, dim, heads int, rate float64, rng *rand.Rand) *selfAttention {
	return &selfAttention{
		heads: heads,
		q:     newDense(name+"/query", dim, dim, false, rng),
		k:     newDense(name+"/key", dim, dim, false, rng),
		v:     newDense(name+"/value", dim, dim, false, rng),
		o:     newDense(name+"/output", dim, dim, false, rng),
		rate:  rate,
	}
}

func (sa *selfAttention) params() []*Param {
	var ps []*Param
	for _, d := range []*dense{sa.q, sa.k, sa.v, sa.o} {
		ps = append(ps, d.params()...)
	}
	return ps
}

func (sa *selfAttention) forward(x [][]float64, rng *rand.Rand) [][]float64 {
	n, dim := len(x), len(x[0])
	dk := dim / sa.heads
	scale := 1 / math.Sqrt(float64(dk))
	sa.qs = sa.q.forwardSeq(x)
	sa.ks = sa.k.forwardSeq(x)
	sa.vs = sa.v.forwardSeq(x)
	sa.probs = make([][][]float64, sa.heads)
	sa.dropped = make([][][]float64, sa.heads)
	sa.masks = make([][][]float64, sa.heads)

	ctx := matrix(n, dim)
	for h := 0; h < sa.heads; h++ {
		lo, hi := h*dk, (h+1)*dk
		p := matrix(n, n)
		pd := matrix(n, n)
		sa.masks[h] = make([][]float64, n)
		for t := 0; t < n; t++ {
			for u := 0; u < n; u++ {
				p[t][u] = floats.Dot(sa.qs[t][lo:hi], sa.ks[u][lo:hi]) * scale
			}
			softmax(p[t])
			copy(pd[t], p[t])
			m := dropoutMask(rng, n, sa.rate)
			sa.masks[h][t] = m
			applyMask(pd[t], m)
			for u := 0; u < n; u++ {
				floats.AddScaled(ctx[t][lo:hi], pd[t][u], sa.vs[u][lo:hi])
			}
		}
		sa.probs[h], sa.dropped[h] = p, pd
	}
	return sa.o.forwardSeq(ctx)
}

func (sa *selfAttention) backward(dy [][]float64) [][]float64 {
	n, dim := len(dy), len(dy[0])
	dk := dim / sa.heads
	scale := 1 / math.Sqrt(float64(dk))
	dctx := sa.o.backwardSeq(dy)
	dq, dkm, dv := matrix(n, dim), matrix(n, dim), matrix(n, dim)
	da := make([]float64, n)

	for h := 0; h < sa.heads; h++ {
		lo, hi := h*dk, (h+1)*dk
		p, pd := sa.probs[h], sa.dropped[h]
		for t := 0; t < n; t++ {
			for u := 0; u < n; u++ {
				da[u] = floats.Dot(dctx[t][lo:hi], sa.vs[u][lo:hi])
				floats.AddScaled(dv[u][lo:hi], pd[t][u], dctx[t][lo:hi])
			}
			applyMask(da, sa.masks[h][t])
			dot := floats.Dot(p[t], da)
			for u := 0; u < n; u++ {
				ds := p[t][u] * (da[u] - dot) * scale
				floats.AddScaled(dq[t][lo:hi], ds, sa.ks[u][lo:hi])
				floats.AddScaled(dkm[u][lo:hi], ds, sa.qs[t][lo:hi])
			}
		}
	}

	dx := sa.q.backwardSeq(dq)
	for _, part := range [][][]float64{sa.k.backwardSeq(dkm), sa.v.backwardSeq(dv)} {
		for t := range dx {
			floats.Add(dx[t], part[t])
		}
	}
	return dx
}

// encoderBlock is attention and a feed-forward network, each wrapped in a
// residual connection followed by layer normalization.
type encoderBlock struct {
	att      *selfAttention
	norm1    *layerNorm
	ff1, ff2 *dense
	ffDrop   *dropout
	norm2    *layerNorm
}

func newEncoderBlock(name string, dim, heads, ffDim int, rate float64, rng *rand.Rand) *encoderBlock {
	return &encoderBlock{
		att:    newSelfAttention(name+"/attention", dim, heads, rate, rng),
		norm1:  newLayerNorm(name+"/norm1", dim),
		ff1:    newDense(name+"/ffn1", dim, ffDim, true, rng),
		ff2:    newDense(name+"/ffn2", ffDim, dim, false, rng),
		ffDrop: &dropout{rate: rate},
		norm2:  newLayerNorm(name+"/norm2", dim),
	}
}

func (e *encoderBlock) params() []*Param {
	ps := e.att.params()
	ps = append(ps, e.norm1.params()...)
	ps = append(ps, e.ff1.params()...)
	ps = append(ps, e.ff2.params()...)
	return append(ps, e.norm2.params()...)
}

func (e *encoderBlock) forward(x [][]float64, rng *rand.Rand) [][]float64 {
	a := e.att.forward(x, rng)
	x1 := e.norm1.forward(addRows(x, a))
	f := e.ff2.forwardSeq(e.ffDrop.forwardSeq(e.ff1.forwardSeq(x1), rng))
	return e.norm2.forward(addRows(x1, f))
}

func (e *encoderBlock) backward(dy [][]float64) [][]float64 {
	d1 := e.norm2.backward(dy)
	df := e.ff1.backwardSeq(e.ffDrop.backwardSeq(e.ff2.backwardSeq(d1)))
	d1 = addRows(d1, df)
	d0 := e.norm1.backward(d1)
	return addRows(d0, e.att.backward(d0))
}

func addRows(a, b [][]float64) [][]float64 {
	out := matrix(len(a), len(a[0]))
	for t := range a {
		floats.AddTo(out[t], a[t], b[t])
	}
	return out
}

// meanPool averages rows.
func meanPool(x [][]float64) []float64 {
	out := make([]float64, len(x[0]))
	for _, row := range x {
		floats.Add(out, row)
	}
	floats.Scale(1/float64(len(x)), out)
	return out
}

func meanPoolBackward(dy []float64, n int) [][]float64 {
	dx := matrix(n, len(dy))
	for t := range dx {
		floats.AddScaled(dx[t], 1/float64(n), dy)
	}
	return dx
}
