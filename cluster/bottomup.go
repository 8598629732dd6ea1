package cluster

import (
	"container/heap"
	"fmt"
)

type candidate struct {
	cost   float64
	i, j   int // i < j
	vi, vj int // versions of i and j when the cost was computed
}

type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(a, b int) bool {
	if h[a].cost != h[b].cost {
		return h[a].cost < h[b].cost
	}
	if h[a].i != h[b].i {
		return h[a].i < h[b].i
	}
	return h[a].j < h[b].j
}
func (h candidateHeap) Swap(a, b int) { h[a], h[b] = h[b], h[a] }
func (h *candidateHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// BottomUp greedily merges the pair of clusters with the smallest cost
// increase while that increase is at most thresh. Points may be nil (no
// data). The inputs are not modified. Only pairs within thresh are queued,
// so the queue stays small when few merges are possible.
//
// assignment[k] is the cluster of point k. Clusters are numbered densely
// in order of their lowest-numbered member.
func BottomUp(points []Clusterable, thresh float64) ([]int, int, error) {
	n := len(points)
	stats := make([]Clusterable, n)
	for k, p := range points {
		if p != nil {
			stats[k] = p.Copy()
		}
	}
	active := make([]bool, n)
	version := make([]int, n)
	owner := make([]int, n)
	for k := range owner {
		active[k] = true
		owner[k] = k
	}

	var h candidateHeap
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c, err := MergeCost(stats[i], stats[j])
			if err != nil {
				return nil, 0, fmt.Errorf("cluster %d with %d: %w", i, j, err)
			}
			if c <= thresh {
				h = append(h, candidate{cost: c, i: i, j: j})
			}
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		c := heap.Pop(&h).(candidate)
		if !active[c.i] || !active[c.j] || version[c.i] != c.vi || version[c.j] != c.vj {
			continue // stale
		}
		switch {
		case stats[c.i] == nil:
			stats[c.i] = stats[c.j]
		case stats[c.j] != nil:
			if err := stats[c.i].Merge(stats[c.j]); err != nil {
				return nil, 0, err
			}
		}
		stats[c.j] = nil
		active[c.j] = false
		owner[c.j] = c.i
		version[c.i]++

		for k := 0; k < n; k++ {
			if k == c.i || !active[k] {
				continue
			}
			cost, err := MergeCost(stats[c.i], stats[k])
			if err != nil {
				return nil, 0, err
			}
			if cost > thresh {
				continue
			}
			lo, hi := c.i, k
			if hi < lo {
				lo, hi = hi, lo
			}
			heap.Push(&h, candidate{cost: cost, i: lo, j: hi, vi: version[lo], vj: version[hi]})
		}
	}

	// owner chains always point to a lower index, so roots are minimal members
	root := func(k int) int {
		for owner[k] != k {
			k = owner[k]
		}
		return k
	}
	ids := make(map[int]int)
	assignment := make([]int, n)
	for k := 0; k < n; k++ {
		r := root(k)
		id, ok := ids[r]
		if !ok {
			id = len(ids)
			ids[r] = id
		}
		assignment[k] = id
	}
	return assignment, len(ids), nil
}
