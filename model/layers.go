package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// embedding looks up one row per token id.
type embedding struct {
	w   *Param
	ids []int
}

func newEmbedding(name string, vocab, dim int, rng *rand.Rand) *embedding {
	w := newParam(name, vocab, dim)
	uniform(w, rng, 0.05)
	return &embedding{w: w}
}

func (e *embedding) forward(ids []int) [][]float64 {
	vocab, dim := e.w.W.Dims()
	e.ids = e.ids[:0]
	out := matrix(len(ids), dim)
	for t, id := range ids {
		if id < 0 || id >= vocab {
			id = 1
		}
		e.ids = append(e.ids, id)
		copy(out[t], e.w.row(id))
	}
	return out
}

func (e *embedding) backward(dy [][]float64) {
	for t, id := range e.ids {
		floats.Add(e.w.G.RawRowView(id), dy[t])
	}
}

// dense is a fully connected layer applied to every row of its input.
type dense struct {
	w, b *Param
	relu bool
	xs   [][]float64
	ys   [][]float64
}

func newDense(name string, in, out int, relu bool, rng *rand.Rand) *dense {
	d := &dense{w: newParam(name+"/kernel", in, out), b: newParam(name+"/bias", 1, out), relu: relu}
	glorotUniform(d.w, rng)
	return d
}

func (d *dense) params() []*Param { return []*Param{d.w, d.b} }

func (d *dense) forwardSeq(x [][]float64) [][]float64 {
	_, out := d.w.W.Dims()
	d.xs = x
	d.ys = matrix(len(x), out)
	for t, xt := range x {
		y := d.ys[t]
		copy(y, d.b.row(0))
		addVecMat(y, xt, d.w.W)
		if d.relu {
			for j, v := range y {
				if v < 0 {
					y[j] = 0
				}
			}
		}
	}
	return d.ys
}

func (d *dense) backwardSeq(dy [][]float64) [][]float64 {
	in, _ := d.w.W.Dims()
	dx := matrix(len(dy), in)
	for t, g := range dy {
		if d.relu {
			g = append([]float64(nil), g...)
			for j, y := range d.ys[t] {
				if y <= 0 {
					g[j] = 0
				}
			}
		}
		addOuter(d.w.G, d.xs[t], g)
		floats.Add(d.b.G.RawRowView(0), g)
		addMatVec(dx[t], g, d.w.W)
	}
	return dx
}

func (d *dense) forward(x []float64) []float64 {
	return d.forwardSeq([][]float64{x})[0]
}

func (d *dense) backward(dy []float64) []float64 {
	return d.backwardSeq([][]float64{dy})[0]
}

// dropout zeroes elements independently. spatial drops whole feature
// channels across all time steps.
type dropout struct {
	rate    float64
	spatial bool
	masks   [][]float64
}

func (d *dropout) forwardSeq(x [][]float64, rng *rand.Rand) [][]float64 {
	d.masks = nil
	if rng == nil || d.rate <= 0 || len(x) == 0 {
		return x
	}
	out := matrix(len(x), len(x[0]))
	d.masks = make([][]float64, len(x))
	var shared []float64
	if d.spatial {
		shared = dropoutMask(rng, len(x[0]), d.rate)
	}
	for t, xt := range x {
		m := shared
		if !d.spatial {
			m = dropoutMask(rng, len(xt), d.rate)
		}
		d.masks[t] = m
		copy(out[t], xt)
		applyMask(out[t], m)
	}
	return out
}

func (d *dropout) backwardSeq(dy [][]float64) [][]float64 {
	if d.masks == nil {
		return dy
	}
	out := matrix(len(dy), len(dy[0]))
	for t, g := range dy {
		copy(out[t], g)
		applyMask(out[t], d.masks[t])
	}
	return out
}

func (d *dropout) forward(x []float64, rng *rand.Rand) []float64 {
	return d.forwardSeq([][]float64{x}, rng)[0]
}

func (d *dropout) backward(dy []float64) []float64 {
	return d.backwardSeq([][]float64{dy})[0]
}

// lstm is a single-direction LSTM with gate layout (i, f, c, o).
// Input and recurrent dropout masks are fixed across time steps.
type lstm struct {
	units          int
	reverse        bool
	kernel         *Param // in × 4u
	recurrent      *Param // u × 4u
	bias           *Param // 1 × 4u
	dropIn, dropRe float64

	maskX, maskH []float64
	xs, hm       [][]float64 // masked inputs and previous states per step
	cs           [][]float64 // cs[k] is the cell state before step k
	gates        [][]float64 // activated gates per step
	tcs          [][]float64 // tanh of the new cell state per step
}

func newLSTM(name string, in, units int, reverse bool, dropIn, dropRe float64, rng *rand.Rand) *lstm {
	l := &lstm{
		units:     units,
		reverse:   reverse,
		kernel:    newParam(name+"/kernel", in, 4*units),
		recurrent: newParam(name+"/recurrent_kernel", units, 4*units),
		bias:      newParam(name+"/bias", 1, 4*units),
		dropIn:    dropIn,
		dropRe:    dropRe,
	}
	glorotUniform(l.kernel, rng)
	orthogonal(l.recurrent, rng)
	b := l.bias.row(0)
	for j := units; j < 2*units; j++ {
		b[j] = 1 // unit forget bias
	}
	return l
}

func (l *lstm) params() []*Param { return []*Param{l.kernel, l.recurrent, l.bias} }

func (l *lstm) pos(k, n int) int {
	if l.reverse {
		return n - 1 - k
	}
	return k
}

// forward returns the hidden state at every input position.
func (l *lstm) forward(x [][]float64, rng *rand.Rand) [][]float64 {
	n, u := len(x), l.units
	in, _ := l.kernel.W.Dims()
	l.maskX = dropoutMask(rng, in, l.dropIn)
	l.maskH = dropoutMask(rng, u, l.dropRe)
	l.xs = matrix(n, in)
	l.hm = matrix(n, u)
	l.cs = matrix(n+1, u)
	l.gates = matrix(n, 4*u)
	l.tcs = matrix(n, u)

	out := matrix(n, u)
	h := make([]float64, u)
	for k := 0; k < n; k++ {
		t := l.pos(k, n)
		copy(l.xs[k], x[t])
		applyMask(l.xs[k], l.maskX)
		copy(l.hm[k], h)
		applyMask(l.hm[k], l.maskH)

		z := l.gates[k]
		copy(z, l.bias.row(0))
		addVecMat(z, l.xs[k], l.kernel.W)
		addVecMat(z, l.hm[k], l.recurrent.W)

		c, cPrev, tc := l.cs[k+1], l.cs[k], l.tcs[k]
		for j := 0; j < u; j++ {
			i := sigmoid(z[j])
			f := sigmoid(z[u+j])
			g := math.Tanh(z[2*u+j])
			o := sigmoid(z[3*u+j])
			z[j], z[u+j], z[2*u+j], z[3*u+j] = i, f, g, o
			c[j] = f*cPrev[j] + i*g
			tc[j] = math.Tanh(c[j])
			h[j] = o * tc[j]
		}
		copy(out[t], h)
	}
	return out
}

// backward takes the loss gradient for each output position (nil rows count
// as zero) and returns the gradient for each input position.
func (l *lstm) backward(dout [][]float64) [][]float64 {
	n, u := len(l.xs), l.units
	in, _ := l.kernel.W.Dims()
	dx := matrix(n, in)
	dh := make([]float64, u)
	dhNext := make([]float64, u)
	dcNext := make([]float64, u)
	dz := make([]float64, 4*u)

	for k := n - 1; k >= 0; k-- {
		t := l.pos(k, n)
		copy(dh, dhNext)
		if dout[t] != nil {
			floats.Add(dh, dout[t])
		}
		gt, tc, cPrev := l.gates[k], l.tcs[k], l.cs[k]
		for j := 0; j < u; j++ {
			i, f, g, o := gt[j], gt[u+j], gt[2*u+j], gt[3*u+j]
			do := dh[j] * tc[j]
			dc := dcNext[j] + dh[j]*o*(1-tc[j]*tc[j])
			dcNext[j] = dc * f
			dz[j] = dc * g * i * (1 - i)
			dz[u+j] = dc * cPrev[j] * f * (1 - f)
			dz[2*u+j] = dc * i * (1 - g*g)
			dz[3*u+j] = do * o * (1 - o)
		}
		addOuter(l.kernel.G, l.xs[k], dz)
		addOuter(l.recurrent.G, l.hm[k], dz)
		floats.Add(l.bias.G.RawRowView(0), dz)

		addMatVec(dx[t], dz, l.kernel.W)
		applyMask(dx[t], l.maskX)
		for j := range dhNext {
			dhNext[j] = 0
		}
		addMatVec(dhNext, dz, l.recurrent.W)
		applyMask(dhNext, l.maskH)
	}
	return dx
}

// bilstm runs a forward and a backward LSTM and concatenates their states.
// Without sequences it returns one row: the last forward state and the
// first backward state.
type bilstm struct {
	fwd, bwd  *lstm
	sequences bool
	n         int
}

func newBiLSTM(name string, in, units int, sequences bool, drop float64, rng *rand.Rand) *bilstm {
	return &bilstm{
		fwd:       newLSTM(name+"/forward", in, units, false, drop, drop, rng),
		bwd:       newLSTM(name+"/backward", in, units, true, drop, drop, rng),
		sequences: sequences,
	}
}

func (b *bilstm) params() []*Param { return append(b.fwd.params(), b.bwd.params()...) }

func (b *bilstm) forward(x [][]float64, rng *rand.Rand) [][]float64 {
	b.n = len(x)
	hf := b.fwd.forward(x, rng)
	hb := b.bwd.forward(x, rng)
	u := b.fwd.units
	if !b.sequences {
		out := matrix(1, 2*u)
		copy(out[0][:u], hf[b.n-1])
		copy(out[0][u:], hb[0])
		return out
	}
	out := matrix(b.n, 2*u)
	for t := range out {
		copy(out[t][:u], hf[t])
		copy(out[t][u:], hb[t])
	}
	return out
}

func (b *bilstm) backward(dy [][]float64) [][]float64 {
	u := b.fwd.units
	df := make([][]float64, b.n)
	db := make([][]float64, b.n)
	if b.sequences {
		for t, g := range dy {
			df[t], db[t] = g[:u], g[u:]
		}
	} else {
		df[b.n-1], db[0] = dy[0][:u], dy[0][u:]
	}
	dx := b.fwd.backward(df)
	dxb := b.bwd.backward(db)
	for t := range dx {
		floats.Add(dx[t], dxb[t])
	}
	return dx
}

// attention pools a sequence with per-feature softmax weights over time:
// s = tanh(H·W + b), a = softmax_t(s), c_j = Σ_t a_tj h_tj.
type attention struct {
	w, b    *Param
	h, s, a [][]float64
}

func newAttention(name string, dim int, rng *rand.Rand) *attention {
	at := &attention{w: newParam(name+"/W", dim, dim), b: newParam(name+"/b", 1, dim)}
	glorotUniform(at.w, rng)
	return at
}

func (at *attention) params() []*Param { return []*Param{at.w, at.b} }

func (at *attention) forward(h [][]float64) []float64 {
	n, d := len(h), len(h[0])
	at.h = h
	at.s = matrix(n, d)
	at.a = matrix(n, d)
	for t := range h {
		copy(at.s[t], at.b.row(0))
		addVecMat(at.s[t], h[t], at.w.W)
		for j, v := range at.s[t] {
			at.s[t][j] = math.Tanh(v)
		}
	}
	col := make([]float64, n)
	ctx := make([]float64, d)
	for j := 0; j < d; j++ {
		for t := 0; t < n; t++ {
			col[t] = at.s[t][j]
		}
		softmax(col)
		for t := 0; t < n; t++ {
			at.a[t][j] = col[t]
			ctx[j] += col[t] * h[t][j]
		}
	}
	return ctx
}

func (at *attention) backward(dctx []float64) [][]float64 {
	n, d := len(at.h), len(dctx)
	dh := matrix(n, d)
	da := matrix(n, d)
	for t := 0; t < n; t++ {
		for j := 0; j < d; j++ {
			dh[t][j] = at.a[t][j] * dctx[j]
			da[t][j] = at.h[t][j] * dctx[j]
		}
	}
	dz := make([]float64, d)
	for j := 0; j < d; j++ {
		var dot float64
		for t := 0; t < n; t++ {
			dot += at.a[t][j] * da[t][j]
		}
		for t := 0; t < n; t++ {
			da[t][j] = at.a[t][j] * (da[t][j] - dot) // now ds
		}
	}
	for t := 0; t < n; t++ {
		for j := 0; j < d; j++ {
			dz[j] = da[t][j] * (1 - at.s[t][j]*at.s[t][j])
		}
		addOuter(at.w.G, at.h[t], dz)
		floats.Add(at.b.G.RawRowView(0), dz)
		addMatVec(dh[t], dz, at.w.W)
	}
	return dh
}
