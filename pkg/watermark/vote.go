package watermark

import "fmt"

// Sample is one observation of a payload: the extracted bits and the weight
// of the observation (frame quality, or 1 for repeated passes).
type Sample struct {
	Bits   []byte
	Weight float64
}

// VoteResult is the outcome of Vote.
type VoteResult struct {
	// Bits is the winning value per position.
	Bits []byte

	// PerBit is winning weight / total weight per position.
	PerBit []float64

	// Confidence is the mean of PerBit, in [0,1].
	Confidence float64
}

// Vote reconciles samples by weighted majority per bit position. The
// result is as long as the longest sample; a shorter sample does not vote
// on positions it lacks. Ties resolve to 0. Positions with zero total
// weight resolve to 0 with confidence 0.
func Vote(samples []Sample) VoteResult {
	n := 0
	for _, s := range samples {
		n = max(n, len(s.Bits))
	}
	res := VoteResult{Bits: make([]byte, n), PerBit: make([]float64, n)}
	if n == 0 {
		return res
	}

	ones := make([]float64, n)
	zeros := make([]float64, n)
	for _, s := range samples {
		w := s.Weight
		if w < 0 {
			w = 0
		}
		for i, b := range s.Bits {
			if b != 0 {
				ones[i] += w
			} else {
				zeros[i] += w
			}
		}
	}

	var sum float64
	for i := range n {
		total := ones[i] + zeros[i]
		if total <= 0 {
			continue
		}
		win := zeros[i]
		if ones[i] > zeros[i] {
			res.Bits[i] = 1
			win = ones[i]
		}
		res.PerBit[i] = win / total
		sum += res.PerBit[i]
	}
	res.Confidence = sum / float64(n)
	return res
}

// ExtractWithVoting extracts n bits from each grid (for example the three
// channels of a colour image) and reconciles them with Vote at uniform
// weight. Grids that fail to extract are skipped; ErrProcessing is returned
// when none succeed.
func ExtractWithVoting(alg Algorithm, grids []*Grid, n int) (VoteResult, error) {
	samples := make([]Sample, 0, len(grids))
	var lastErr error
	for _, g := range grids {
		bits, err := alg.Extract(g, n)
		if err != nil {
			lastErr = err
			continue
		}
		samples = append(samples, Sample{Bits: bits, Weight: 1})
	}
	if len(samples) == 0 {
		return VoteResult{}, fmt.Errorf("%w: no grid yielded %d bits: %v", ErrProcessing, n, lastErr)
	}
	return Vote(samples), nil
}
