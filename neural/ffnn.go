package neural

import (
	"math"
	"math/rand"
)

// Network dimensions (compile-time constants for array sizing).
// NumInputs must match systems.NumObservations.
const (
	NumInputs  = 12
	NumHidden  = 16
	NumOutputs = 2 // forward, turn
)

// NumParams is the length of the flat parameter vector used by optimizers.
const NumParams = NumHidden*NumInputs + NumHidden + NumOutputs*NumHidden + NumOutputs

// FFNN is a simple two-layer feedforward neural network.
type FFNN struct {
	W1 [NumHidden][NumInputs]float32  // input -> hidden weights
	B1 [NumHidden]float32             // hidden biases
	W2 [NumOutputs][NumHidden]float32 // hidden -> output weights
	B2 [NumOutputs]float32            // output biases
}

// NewFFNN creates a randomly initialized network. The forward output is
// biased positive so an untrained network still walks.
func NewFFNN(rng *rand.Rand) *FFNN {
	nn := &FFNN{}
	// Xavier initialization
	scale1 := float32(math.Sqrt(2.0 / float64(NumInputs)))
	scale2 := float32(math.Sqrt(2.0 / float64(NumHidden)))

	for i := range nn.W1 {
		for j := range nn.W1[i] {
			nn.W1[i][j] = float32(rng.NormFloat64()) * scale1
		}
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			nn.W2[i][j] = float32(rng.NormFloat64()) * scale2
		}
	}
	nn.B2[0] = 0.5

	return nn
}

// Forward computes the network output. Both outputs are in [-1, 1].
func (nn *FFNN) Forward(inputs []float32) (forward, turn float32) {
	var hidden [NumHidden]float32
	for i := 0; i < NumHidden; i++ {
		sum := nn.B1[i]
		for j := 0; j < NumInputs && j < len(inputs); j++ {
			sum += nn.W1[i][j] * inputs[j]
		}
		hidden[i] = tanh(sum)
	}

	var outputs [NumOutputs]float32
	for i := 0; i < NumOutputs; i++ {
		sum := nn.B2[i]
		for j := 0; j < NumHidden; j++ {
			sum += nn.W2[i][j] * hidden[j]
		}
		outputs[i] = tanh(sum)
	}
	return outputs[0], outputs[1]
}

// Decide implements Policy.
func (nn *FFNN) Decide(obs []float32) Action {
	f, t := nn.Forward(obs)
	return Action{Forward: f, Turn: t}
}

// Clone creates a deep copy of the network.
func (nn *FFNN) Clone() *FFNN {
	clone := *nn
	return &clone
}

// tanh uses a fast rational approximation avoiding float64 conversion.
func tanh(x float32) float32 {
	if x > 4 {
		return 1
	}
	if x < -4 {
		return -1
	}
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}

// Params flattens every weight and bias into dst, W1 first.
func (nn *FFNN) Params(dst []float64) []float64 {
	dst = dst[:0]
	for i := range nn.W1 {
		for _, w := range nn.W1[i] {
			dst = append(dst, float64(w))
		}
	}
	for _, b := range nn.B1 {
		dst = append(dst, float64(b))
	}
	for i := range nn.W2 {
		for _, w := range nn.W2[i] {
			dst = append(dst, float64(w))
		}
	}
	for _, b := range nn.B2 {
		dst = append(dst, float64(b))
	}
	return dst
}

// SetParams is the inverse of Params. Short vectors leave the remaining
// parameters unchanged.
func (nn *FFNN) SetParams(p []float64) {
	k := 0
	next := func(dst *float32) {
		if k < len(p) {
			*dst = float32(p[k])
		}
		k++
	}
	for i := range nn.W1 {
		for j := range nn.W1[i] {
			next(&nn.W1[i][j])
		}
	}
	for i := range nn.B1 {
		next(&nn.B1[i])
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			next(&nn.W2[i][j])
		}
	}
	for i := range nn.B2 {
		next(&nn.B2[i])
	}
}

// BrainWeights holds flattened network weights for serialization.
type BrainWeights struct {
	W1 []float32 `json:"w1"` // [NumHidden * NumInputs]
	B1 []float32 `json:"b1"` // [NumHidden]
	W2 []float32 `json:"w2"` // [NumOutputs * NumHidden]
	B2 []float32 `json:"b2"` // [NumOutputs]
}

// MarshalWeights flattens the network weights for JSON serialization.
func (nn *FFNN) MarshalWeights() BrainWeights {
	bw := BrainWeights{
		W1: make([]float32, 0, NumHidden*NumInputs),
		B1: append([]float32(nil), nn.B1[:]...),
		W2: make([]float32, 0, NumOutputs*NumHidden),
		B2: append([]float32(nil), nn.B2[:]...),
	}
	for i := range nn.W1 {
		bw.W1 = append(bw.W1, nn.W1[i][:]...)
	}
	for i := range nn.W2 {
		bw.W2 = append(bw.W2, nn.W2[i][:]...)
	}
	return bw
}

// UnmarshalWeights restores network weights from flattened form.
func (nn *FFNN) UnmarshalWeights(bw BrainWeights) {
	for i := 0; i < NumHidden; i++ {
		for j := 0; j < NumInputs; j++ {
			if i*NumInputs+j < len(bw.W1) {
				nn.W1[i][j] = bw.W1[i*NumInputs+j]
			}
		}
	}
	for i := 0; i < NumHidden && i < len(bw.B1); i++ {
		nn.B1[i] = bw.B1[i]
	}
	for i := 0; i < NumOutputs; i++ {
		for j := 0; j < NumHidden; j++ {
			if i*NumHidden+j < len(bw.W2) {
				nn.W2[i][j] = bw.W2[i*NumHidden+j]
			}
		}
	}
	for i := 0; i < NumOutputs && i < len(bw.B2); i++ {
		nn.B2[i] = bw.B2[i]
	}
}
