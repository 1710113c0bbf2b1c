package route

import (
	"math"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/geom"
	"github.com/chazu/bobbin/pkg/scene"
	"github.com/chazu/bobbin/pkg/thread"
)

const (
	// exactBlocks and exactCandidates bound the buckets solved exactly.
	exactBlocks     = 10
	exactCandidates = 64
)

// placement is a block chosen for a position in the route.
type placement struct {
	block *Block
	cand  candidate
}

// node is one (block, orientation) pair in a bucket's search space.
type node struct {
	block int // index into the bucket
	cand  candidate
}

// travel is the stitched-through distance of a transition: zero when the
// needle can reach the entry with one ordinary stitch.
func (r *Router) travel(from, to geom.Point) float64 {
	d := from.Dist(to)
	if d <= r.length {
		return 0
	}
	return d
}

// cost estimates a transition between two placed blocks.
func (r *Router) cost(from, to geom.Point, colorChange bool) float64 {
	t := r.travel(from, to)
	if r.opts.Policy == PolicyMinTravel {
		return t
	}
	w := r.opts.Policy.Weights()
	c := w.TravelPerMm * t
	if t > 0 {
		c += w.Jump * math.Ceil(t/r.opts.MaxJumpMm)
	}
	if colorChange || t > r.opts.TrimThresholdMm {
		c += w.Trim
	}
	if colorChange {
		c += w.ColorChange
	}
	return c
}

func (r *Router) colorChange(a, b *Block) bool {
	return a.Color != b.Color && !r.opts.AllowColorMerge
}

// Order picks the sewing order and orientation of every block.
func (r *Router) Order(blocks []*Block) []placement {
	if len(blocks) == 0 {
		return nil
	}
	if r.opts.SequenceMode == SequenceStrict {
		return r.orderStrict(blocks)
	}
	var out []placement
	var prev *placement
	for _, bucket := range r.buckets(blocks) {
		placed := r.orderBucket(bucket, prev)
		out = append(out, placed...)
		tail := out[len(out)-1]
		prev = &tail
	}
	return out
}

// orderStrict keeps track order and chooses orientations by dynamic
// programming over consecutive transitions.
func (r *Router) orderStrict(blocks []*Block) []placement {
	cands := lo.Map(blocks, func(b *Block, _ int) []candidate { return candidates(b) })
	best := make([][]float64, len(blocks))
	from := make([][]int, len(blocks))
	best[0] = make([]float64, len(cands[0]))
	for i := 1; i < len(blocks); i++ {
		cc := r.colorChange(blocks[i-1], blocks[i])
		best[i] = make([]float64, len(cands[i]))
		from[i] = make([]int, len(cands[i]))
		for k, c := range cands[i] {
			best[i][k] = math.Inf(1)
			for j, p := range cands[i-1] {
				v := best[i-1][j] + r.cost(p.exit, c.entry, cc)
				if v < best[i][k] {
					best[i][k], from[i][k] = v, j
				}
			}
		}
	}
	last := len(blocks) - 1
	k := argmin(best[last])
	out := make([]placement, len(blocks))
	for i := last; i >= 0; i-- {
		out[i] = placement{block: blocks[i], cand: cands[i][k]}
		if i > 0 {
			k = from[i][k]
		}
	}
	return out
}

// buckets splits blocks into groups that must be sewn in sequence. Within a
// bucket the optimizer may reorder freely.
func (r *Router) buckets(blocks []*Block) [][]*Block {
	type key struct {
		layer scene.NodeID
		color thread.Color
	}
	keyOf := func(b *Block) key {
		var k key
		if r.opts.PreserveLayerOrder {
			k.layer = b.Layer
		}
		if r.opts.PreserveColorOrder {
			k.color = b.Color
		}
		return k
	}
	var order []key
	groups := make(map[key][]*Block)
	for _, b := range blocks {
		k := keyOf(b)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], b)
	}
	if r.opts.PreserveLayerOrder {
		// Layers are sewn in first-appearance order, colors within a layer
		// likewise.
		layerRank := make(map[scene.NodeID]int)
		for _, k := range order {
			if _, ok := layerRank[k.layer]; !ok {
				layerRank[k.layer] = len(layerRank)
			}
		}
		slices.SortStableFunc(order, func(a, b key) int { return layerRank[a.layer] - layerRank[b.layer] })
	}
	return lo.Map(order, func(k key, _ int) []*Block { return groups[k] })
}

func (r *Router) orderBucket(bucket []*Block, prev *placement) []placement {
	var nodes []node
	for i, b := range bucket {
		for _, c := range candidates(b) {
			nodes = append(nodes, node{block: i, cand: c})
		}
	}
	if len(bucket) <= exactBlocks && len(nodes) <= exactCandidates {
		return r.exact(bucket, nodes, prev)
	}
	r.log.Debug("ordering bucket greedily", zap.Int("blocks", len(bucket)), zap.Int("candidates", len(nodes)))
	return r.greedy(bucket, nodes, prev)
}

func (r *Router) startCost(prev *placement, b *Block, c candidate) float64 {
	if prev == nil {
		return 0
	}
	return r.cost(prev.cand.exit, c.entry, r.colorChange(prev.block, b))
}

// exact solves the bucket as a shortest Hamiltonian path over
// (visited set, last node) states.
func (r *Router) exact(bucket []*Block, nodes []node, prev *placement) []placement {
	n := len(bucket)
	full := 1<<n - 1
	states := (full + 1) * len(nodes)
	best := make([]float64, states)
	parent := make([]int, states)
	for i := range best {
		best[i] = math.Inf(1)
		parent[i] = -1
	}
	at := func(mask, v int) int { return mask*len(nodes) + v }
	for v, nd := range nodes {
		best[at(1<<nd.block, v)] = r.startCost(prev, bucket[nd.block], nd.cand)
	}
	for mask := 1; mask <= full; mask++ {
		for v, nv := range nodes {
			cur := best[at(mask, v)]
			if mask&(1<<nv.block) == 0 || math.IsInf(cur, 1) {
				continue
			}
			for u, nu := range nodes {
				if mask&(1<<nu.block) != 0 {
					continue
				}
				cc := r.colorChange(bucket[nv.block], bucket[nu.block])
				next := at(mask|1<<nu.block, u)
				if c := cur + r.cost(nv.cand.exit, nu.cand.entry, cc); c < best[next] {
					best[next] = c
					parent[next] = v
				}
			}
		}
	}
	end := 0
	for v := range nodes {
		if best[at(full, v)] < best[at(full, end)] {
			end = v
		}
	}
	out := make([]placement, n)
	mask, v := full, end
	for i := n - 1; i >= 0; i-- {
		nd := nodes[v]
		out[i] = placement{block: bucket[nd.block], cand: nd.cand}
		p := parent[at(mask, v)]
		mask &^= 1 << nd.block
		v = p
	}
	return out
}

// greedy repeatedly sews the cheapest next block. Ties go to the earlier
// block in track order, then to the authored orientation.
func (r *Router) greedy(bucket []*Block, nodes []node, prev *placement) []placement {
	used := make([]bool, len(bucket))
	out := make([]placement, 0, len(bucket))
	last := prev
	for len(out) < len(bucket) {
		pick := -1
		pickCost := math.Inf(1)
		for v, nd := range nodes {
			if used[nd.block] {
				continue
			}
			var c float64
			if last != nil {
				c = r.cost(last.cand.exit, nd.cand.entry, r.colorChange(last.block, bucket[nd.block]))
			}
			if c < pickCost {
				pick, pickCost = v, c
			}
		}
		nd := nodes[pick]
		used[nd.block] = true
		out = append(out, placement{block: bucket[nd.block], cand: nd.cand})
		last = &out[len(out)-1]
	}
	return out
}

func argmin(vs []float64) int {
	k := 0
	for i, v := range vs {
		if v < vs[k] {
			k = i
		}
	}
	return k
}
