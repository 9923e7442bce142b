package stats

import fp "github.com/tworjaga/flipper-rf-lab/internal/fixedpoint"

// entropyFromCounts H = log2(n) − Σ c·log2(c) / n
func entropyFromCounts(counts []uint32, n uint64) fp.Fixed {
	if n == 0 {
		return 0
	}
	var acc int64
	for _, c := range counts {
		if c > 1 {
			acc += int64(c) * int64(fp.Log2Uint(uint64(c)))
		}
	}
	h := int64(fp.Log2Uint(n)) - acc/int64(n)
	if h < 0 {
		return 0
	}
	return fp.Fixed(h)
}

// Entropy энтропия Шеннона байтового буфера в битах на байт; 0 для пустого входа
func Entropy(data []byte) fp.Fixed {
	var freq [256]uint32
	for _, b := range data {
		freq[b]++
	}
	return entropyFromCounts(freq[:], uint64(len(data)))
}

// EntropyFromFrequencies энтропия по готовой таблице частот
func EntropyFromFrequencies(freq *[256]uint32) fp.Fixed {
	var n uint64
	for _, c := range freq {
		n += uint64(c)
	}
	return entropyFromCounts(freq[:], n)
}

// KLDivergence расхождение Кульбака-Лейблера D(p||q) в битах.
// Если q[i] == 0 при p[i] > 0, результат Max
func KLDivergence(p, q []fp.Fixed) fp.Fixed {
	n := min(len(p), len(q))
	var acc int64
	for i := 0; i < n; i++ {
		if p[i] <= 0 {
			continue
		}
		if q[i] <= 0 {
			return fp.Max
		}
		acc += int64(fp.MulSat(p[i], fp.Log2(p[i])-fp.Log2(q[i])))
	}
	return fp.Fixed(clampRaw(acc))
}

// MutualInformation I(X;Y) = H(X) + H(Y) − H(X,Y) по общей длине
func MutualInformation(xs, ys []byte) fp.Fixed {
	n := min(len(xs), len(ys))
	if n == 0 {
		return 0
	}
	var fx, fy [256]uint32
	joint := make(map[uint16]uint32)
	for i := 0; i < n; i++ {
		fx[xs[i]]++
		fy[ys[i]]++
		joint[uint16(xs[i])<<8|uint16(ys[i])]++
	}
	jc := make([]uint32, 0, len(joint))
	for _, c := range joint {
		jc = append(jc, c)
	}
	hx := entropyFromCounts(fx[:], uint64(n))
	hy := entropyFromCounts(fy[:], uint64(n))
	hxy := entropyFromCounts(jc, uint64(n))
	mi := hx + hy - hxy
	if mi < 0 {
		return 0
	}
	return mi
}
