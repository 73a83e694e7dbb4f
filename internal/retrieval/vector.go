package retrieval

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into buf, reusing its
// capacity. A length that is not a multiple of 4 means corrupt data.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine returns dot(a,b) / (aNorm * |b|). Mismatched dimensions score 0.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) || aNorm == 0 {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	if bNormSq == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * math.Sqrt(bNormSq)))
}

type idScore struct {
	ID    string
	Score float32
}

// topK keeps the k best scores seen so far in a min-heap.
type topK struct {
	k int
	h idScoreHeap
}

func newTopK(k int) *topK {
	return &topK{k: k}
}

func (t *topK) offer(id string, score float32) {
	if t.k <= 0 {
		return
	}
	if t.h.Len() < t.k {
		heap.Push(&t.h, idScore{ID: id, Score: score})
	} else if score > t.h[0].Score {
		t.h[0] = idScore{ID: id, Score: score}
		heap.Fix(&t.h, 0)
	}
}

// sorted drains the heap, best first.
func (t *topK) sorted() []idScore {
	out := make([]idScore, t.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(idScore)
	}
	return out
}

type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func sortByScore(results []ScoredRecord) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
}
