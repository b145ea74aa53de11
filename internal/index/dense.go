package index

import (
	"fmt"
	"math"
	"sort"
)

// denseIndex is the vector side of a generation: L2-normalized embeddings
// searched by inner product (equals cosine after normalization).
type denseIndex interface {
	search(query []float32, k int) []ScoredID
	size() int
	// memoryBytes estimates the vector footprint: count * dims * 4.
	memoryBytes() int64
}

// newDenseIndex picks the structure by corpus size: an exact flat scan below
// flatThreshold, an inverted-file approximation above it.
func newDenseIndex(ids []string, vectors [][]float32, dims, flatThreshold int) (denseIndex, error) {
	if len(ids) != len(vectors) {
		return nil, fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", ids[i], len(v), dims)
		}
	}
	if len(ids) >= flatThreshold && flatThreshold > 0 {
		return newIVFIndex(ids, vectors, dims), nil
	}
	return &flatIndex{dims: dims, ids: ids, vectors: vectors}, nil
}

// flatIndex is an exact brute-force inner-product scan.
type flatIndex struct {
	dims    int
	ids     []string
	vectors [][]float32
}

func (f *flatIndex) search(query []float32, k int) []ScoredID {
	if k <= 0 || len(f.ids) == 0 || len(query) != f.dims {
		return nil
	}
	hits := make([]ScoredID, len(f.ids))
	for i, vec := range f.vectors {
		hits[i] = ScoredID{ID: f.ids[i], Score: dot(query, vec)}
	}
	sortScored(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func (f *flatIndex) size() int { return len(f.ids) }

func (f *flatIndex) memoryBytes() int64 { return int64(len(f.ids)) * int64(f.dims) * 4 }

// ivfEntry is one vector in an inverted-file partition list.
type ivfEntry struct {
	id  string
	vec []float32
}

// ivfIndex partitions vectors around ~sqrt(N) centroids and probes only the
// partitions nearest the query, trading recall for latency on large corpora.
type ivfIndex struct {
	dims      int
	count     int
	centroids [][]float32
	lists     [][]ivfEntry
	nprobe    int
}

// kmeansIterations bounds centroid refinement; the initial centroids are
// evenly spaced vectors, so the build is fully deterministic.
const kmeansIterations = 5

func newIVFIndex(ids []string, vectors [][]float32, dims int) *ivfIndex {
	n := len(ids)
	parts := int(math.Round(math.Sqrt(float64(n))))
	if parts < 1 {
		parts = 1
	}
	centroids := make([][]float32, parts)
	for p := 0; p < parts; p++ {
		src := vectors[p*n/parts]
		c := make([]float32, dims)
		copy(c, src)
		centroids[p] = c
	}

	assign := make([]int, n)
	for iter := 0; iter < kmeansIterations; iter++ {
		for i, vec := range vectors {
			assign[i] = nearestCentroid(centroids, vec)
		}
		sums := make([][]float64, parts)
		counts := make([]int, parts)
		for p := range sums {
			sums[p] = make([]float64, dims)
		}
		for i, vec := range vectors {
			p := assign[i]
			counts[p]++
			for j, v := range vec {
				sums[p][j] += float64(v)
			}
		}
		for p := range centroids {
			if counts[p] == 0 {
				continue
			}
			for j := range centroids[p] {
				centroids[p][j] = float32(sums[p][j] / float64(counts[p]))
			}
		}
	}

	lists := make([][]ivfEntry, parts)
	for i, vec := range vectors {
		p := nearestCentroid(centroids, vec)
		lists[p] = append(lists[p], ivfEntry{id: ids[i], vec: vec})
	}

	nprobe := int(math.Ceil(math.Sqrt(float64(parts))))
	if nprobe < 1 {
		nprobe = 1
	}
	return &ivfIndex{dims: dims, count: n, centroids: centroids, lists: lists, nprobe: nprobe}
}

func (ix *ivfIndex) search(query []float32, k int) []ScoredID {
	if k <= 0 || ix.count == 0 || len(query) != ix.dims {
		return nil
	}
	type ranked struct {
		part  int
		score float64
	}
	order := make([]ranked, len(ix.centroids))
	for p, c := range ix.centroids {
		order[p] = ranked{part: p, score: dot(query, c)}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].part < order[j].part
	})

	var hits []ScoredID
	for p := 0; p < ix.nprobe && p < len(order); p++ {
		for _, e := range ix.lists[order[p].part] {
			hits = append(hits, ScoredID{ID: e.id, Score: dot(query, e.vec)})
		}
	}
	sortScored(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func (ix *ivfIndex) size() int { return ix.count }

func (ix *ivfIndex) memoryBytes() int64 { return int64(ix.count) * int64(ix.dims) * 4 }

func nearestCentroid(centroids [][]float32, vec []float32) int {
	best := 0
	bestScore := math.Inf(-1)
	for p, c := range centroids {
		if s := dot(vec, c); s > bestScore {
			bestScore = s
			best = p
		}
	}
	return best
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
