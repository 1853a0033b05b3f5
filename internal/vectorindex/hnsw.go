package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// nodeID is the graph-internal node key. The chunk index layer maps it
// back to (docID, chunkIndex).
type nodeID uint32

// gnode is one HNSW node. The vector and level are immutable after
// creation; neighbor lists are guarded by the node's own lock so an
// insert splicing edges into one node never blocks searches through
// unrelated nodes.
type gnode struct {
	mu        sync.RWMutex
	id        nodeID
	level     int
	vector    []float32
	neighbors [][]nodeID // per layer, 0..level

	// linked flips once the node is spliced into the graph. Written
	// under the shared graph lock, read only under the exclusive one.
	linked bool
}

// neighborsAt copies the node's layer adjacency under its read lock.
func (n *gnode) neighborsAt(layer int) []nodeID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if layer > n.level {
		return nil
	}
	out := make([]nodeID, len(n.neighbors[layer]))
	copy(out, n.neighbors[layer])
	return out
}

// graph is a hierarchical navigable small world index.
//
// Locking: the graph lock is held shared by searches and inserts, and
// exclusively by removals. Inserts upgrade to the exclusive lock only for
// the brief node-registration and entry-publication steps; edge splicing
// happens under the shared lock plus per-node locks. Removal repairs
// every affected adjacency list before releasing the exclusive lock, so
// shared-mode holders never observe an edge to a missing node.
type graph struct {
	m              int     // max out-degree, upper layers
	m0             int     // max out-degree, layer 0 (2·m)
	efConstruction int     // candidate breadth while inserting
	levelMul       float64 // 1/ln(m), geometric level assignment

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.RWMutex
	nodes    map[nodeID]*gnode
	entryID  nodeID
	hasEntry bool
	maxLevel int
	nextID   nodeID
}

func newGraph(m, efConstruction int, seed int64) *graph {
	if m < 2 {
		m = 2
	}
	if efConstruction < m {
		efConstruction = m
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &graph{
		m:              m,
		m0:             2 * m,
		efConstruction: efConstruction,
		levelMul:       1 / math.Log(float64(m)),
		rng:            rand.New(rand.NewSource(seed)),
		nodes:          make(map[nodeID]*gnode),
	}
}

// maxDegree is the out-degree cap for a layer.
func (g *graph) maxDegree(layer int) int {
	if layer == 0 {
		return g.m0
	}
	return g.m
}

// randomLevel draws ⌊−ln(U)·(1/ln m)⌋ with U uniform on (0, 1].
func (g *graph) randomLevel() int {
	g.rngMu.Lock()
	u := 1 - g.rng.Float64()
	g.rngMu.Unlock()
	return int(math.Floor(-math.Log(u) * g.levelMul))
}

// cand pairs a node with its distance to the vector under consideration.
type cand struct {
	id   nodeID
	dist float64
}

// nearestHeap pops the closest candidate first.
type nearestHeap []cand

func (h nearestHeap) Len() int            { return len(h) }
func (h nearestHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h nearestHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nearestHeap) Push(x interface{}) { *h = append(*h, x.(cand)) }
func (h *nearestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// farthestHeap pops the farthest candidate first, bounding the result set.
type farthestHeap []cand

func (h farthestHeap) Len() int            { return len(h) }
func (h farthestHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h farthestHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *farthestHeap) Push(x interface{}) { *h = append(*h, x.(cand)) }
func (h *farthestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// insert adds a vector and links it into every layer up to its drawn
// level. The returned id is stable for the node's lifetime.
func (g *graph) insert(vec []float32) nodeID {
	level := g.randomLevel()

	// Register first: edges may only reference nodes already in the map.
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	n := &gnode{
		id:        id,
		level:     level,
		vector:    vec,
		neighbors: make([][]nodeID, level+1),
	}
	g.nodes[id] = n
	if !g.hasEntry {
		g.entryID = id
		g.hasEntry = true
		g.maxLevel = level
		n.linked = true
		g.mu.Unlock()
		return id
	}
	g.mu.Unlock()

	g.mu.RLock()
	if !g.hasEntry {
		// The graph was emptied between registration and linking.
		g.mu.RUnlock()
		g.mu.Lock()
		if !g.hasEntry {
			g.entryID = id
			g.hasEntry = true
			g.maxLevel = level
			n.linked = true
		}
		g.mu.Unlock()
		return id
	}
	entry := g.entryID
	top := g.maxLevel

	cur := cand{id: entry, dist: Distance(vec, g.nodes[entry].vector)}
	for layer := top; layer > level; layer-- {
		cur = g.greedyDescend(vec, cur, layer)
	}

	linkFrom := level
	if top < linkFrom {
		linkFrom = top
	}
	for layer := linkFrom; layer >= 0; layer-- {
		found := g.searchLayer(vec, cur, g.efConstruction, layer)
		selected := g.selectNeighbors(vec, found, g.m)

		ids := make([]nodeID, len(selected))
		for i, s := range selected {
			ids[i] = s.id
		}
		n.mu.Lock()
		n.neighbors[layer] = ids
		n.mu.Unlock()

		for _, s := range selected {
			g.addEdge(g.nodes[s.id], id, layer)
		}
		if len(selected) > 0 {
			cur = selected[0]
		}
	}
	n.linked = true
	g.mu.RUnlock()

	// Publish the node as entry point only after it is linked; doing it
	// earlier would hand searches an isolated start node.
	if level > top {
		g.mu.Lock()
		if level > g.maxLevel {
			g.maxLevel = level
			g.entryID = id
		}
		g.mu.Unlock()
	}
	return id
}

// greedyDescend walks layer edges until no neighbor improves the distance.
func (g *graph) greedyDescend(vec []float32, start cand, layer int) cand {
	cur := start
	for {
		improved := false
		for _, nb := range g.nodes[cur.id].neighborsAt(layer) {
			d := Distance(vec, g.nodes[nb].vector)
			if d < cur.dist {
				cur = cand{id: nb, dist: d}
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer is the best-first beam search of one layer, returning up to
// ef candidates ordered nearest first.
func (g *graph) searchLayer(vec []float32, entry cand, ef int, layer int) []cand {
	visited := map[nodeID]struct{}{entry.id: {}}

	candidates := nearestHeap{entry}
	heap.Init(&candidates)
	results := farthestHeap{entry}
	heap.Init(&results)

	for candidates.Len() > 0 {
		closest := heap.Pop(&candidates).(cand)
		if closest.dist > results[0].dist && results.Len() >= ef {
			break
		}
		for _, nb := range g.nodes[closest.id].neighborsAt(layer) {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			d := Distance(vec, g.nodes[nb].vector)
			if results.Len() < ef || d < results[0].dist {
				heap.Push(&candidates, cand{id: nb, dist: d})
				heap.Push(&results, cand{id: nb, dist: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]cand, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&results).(cand)
	}
	return out
}

// selectNeighbors applies the diversity heuristic: scanning nearest
// first, a candidate is kept only while it is closer to the base vector
// than to every neighbor kept so far. Remaining slots are refilled with
// the nearest rejected candidates.
func (g *graph) selectNeighbors(base []float32, candidates []cand, max int) []cand {
	if len(candidates) <= max {
		return candidates
	}

	kept := make([]cand, 0, max)
	var rejected []cand
	for _, c := range candidates {
		if len(kept) >= max {
			break
		}
		diverse := true
		for _, k := range kept {
			if Distance(g.nodes[c.id].vector, g.nodes[k.id].vector) < c.dist {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, c)
		} else {
			rejected = append(rejected, c)
		}
	}
	for _, c := range rejected {
		if len(kept) >= max {
			break
		}
		kept = append(kept, c)
	}
	return kept
}

// addEdge links target into y's layer list, pruning with the diversity
// heuristic when the degree cap is exceeded.
func (g *graph) addEdge(y *gnode, target nodeID, layer int) {
	y.mu.Lock()
	defer y.mu.Unlock()

	for _, nb := range y.neighbors[layer] {
		if nb == target {
			return
		}
	}
	y.neighbors[layer] = append(y.neighbors[layer], target)

	maxDeg := g.maxDegree(layer)
	if len(y.neighbors[layer]) <= maxDeg {
		return
	}

	current := make([]cand, 0, len(y.neighbors[layer]))
	for _, nb := range y.neighbors[layer] {
		current = append(current, cand{id: nb, dist: Distance(y.vector, g.nodes[nb].vector)})
	}
	sortCands(current)
	selected := g.selectNeighbors(y.vector, current, maxDeg)

	pruned := make([]nodeID, len(selected))
	for i, s := range selected {
		pruned[i] = s.id
	}
	y.neighbors[layer] = pruned
}

// search returns the k nearest nodes to vec, nearest first, exploring
// with beam width ef (raised to k when smaller).
func (g *graph) search(vec []float32, k, ef int) []cand {
	if ef < k {
		ef = k
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry {
		return nil
	}
	entry := g.entryID
	cur := cand{id: entry, dist: Distance(vec, g.nodes[entry].vector)}
	for layer := g.maxLevel; layer > 0; layer-- {
		cur = g.greedyDescend(vec, cur, layer)
	}

	found := g.searchLayer(vec, cur, ef, 0)
	if len(found) > k {
		found = found[:k]
	}
	return found
}

// remove deletes a batch of nodes and repairs every adjacency list that
// referenced them, leaving no dangling edges. Runs under the exclusive
// graph lock: removal is the rare path (replace/delete of a document) and
// exclusivity is what makes the no-dangling invariant straightforward to
// uphold.
func (g *graph) remove(ids []nodeID) {
	if len(ids) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := make(map[nodeID]*gnode, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			removed[id] = n
			delete(g.nodes, id)
		}
	}
	if len(removed) == 0 {
		return
	}

	// Sweep surviving adjacency lists; collect the holes for repair.
	type hole struct {
		n     *gnode
		layer int
	}
	var holes []hole
	for _, n := range g.nodes {
		for layer := 0; layer <= n.level; layer++ {
			kept := n.neighbors[layer][:0]
			lost := false
			for _, nb := range n.neighbors[layer] {
				if _, gone := removed[nb]; gone {
					lost = true
					continue
				}
				kept = append(kept, nb)
			}
			n.neighbors[layer] = kept
			if lost {
				holes = append(holes, hole{n: n, layer: layer})
			}
		}
	}

	// Bridge each hole with the removed nodes' former neighbors, so the
	// layer stays navigable where it was before.
	for _, h := range holes {
		g.repairNode(h.n, h.layer, removed)
	}

	// Re-elect the entry point if it was removed. A node registered by an
	// in-flight insert but not yet spliced in is skipped: electing it would
	// hand searches an isolated start node. Its insert claims the entry
	// itself if nothing linked survives.
	if _, gone := removed[g.entryID]; gone || len(g.nodes) == 0 {
		g.hasEntry = false
		g.maxLevel = 0
		for _, n := range g.nodes {
			if !n.linked {
				continue
			}
			if !g.hasEntry || n.level > g.maxLevel {
				g.entryID = n.id
				g.maxLevel = n.level
				g.hasEntry = true
			}
		}
	}
}

// repairNode refills n's layer list from the removed nodes' adjacency.
// Caller holds the exclusive graph lock, so plain field access is safe.
func (g *graph) repairNode(n *gnode, layer int, removed map[nodeID]*gnode) {
	existing := make(map[nodeID]struct{}, len(n.neighbors[layer]))
	for _, nb := range n.neighbors[layer] {
		existing[nb] = struct{}{}
	}

	var candidates []cand
	seen := make(map[nodeID]struct{})
	for _, dead := range removed {
		if layer > dead.level {
			continue
		}
		for _, nb := range dead.neighbors[layer] {
			if nb == n.id {
				continue
			}
			if _, dup := seen[nb]; dup {
				continue
			}
			seen[nb] = struct{}{}
			if _, gone := removed[nb]; gone {
				continue
			}
			if _, have := existing[nb]; have {
				continue
			}
			candidates = append(candidates, cand{id: nb, dist: Distance(n.vector, g.nodes[nb].vector)})
		}
	}
	if len(candidates) == 0 {
		return
	}
	sortCands(candidates)

	maxDeg := g.maxDegree(layer)
	for _, c := range candidates {
		if len(n.neighbors[layer]) >= maxDeg {
			break
		}
		n.neighbors[layer] = append(n.neighbors[layer], c.id)
	}
}

// size returns the live node count.
func (g *graph) size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// checkIntegrity walks the whole graph verifying structural invariants:
// every edge targets a live node that owns the layer, no self-loops or
// duplicate edges, degrees within caps, and a live entry point at the top
// level. Retraction bugs surface here rather than as silent recall loss.
func (g *graph) checkIntegrity() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry {
		if len(g.nodes) != 0 {
			return fmt.Errorf("graph has %d nodes but no entry point", len(g.nodes))
		}
		return nil
	}
	entry, ok := g.nodes[g.entryID]
	if !ok {
		return fmt.Errorf("entry point %d is not a live node", g.entryID)
	}
	if entry.level != g.maxLevel {
		return fmt.Errorf("entry level %d does not match max level %d", entry.level, g.maxLevel)
	}

	for id, n := range g.nodes {
		if n.level > g.maxLevel {
			return fmt.Errorf("node %d level %d exceeds max level %d", id, n.level, g.maxLevel)
		}
		for layer := 0; layer <= n.level; layer++ {
			if deg := len(n.neighbors[layer]); deg > g.maxDegree(layer) {
				return fmt.Errorf("node %d layer %d degree %d exceeds cap %d", id, layer, deg, g.maxDegree(layer))
			}
			seen := make(map[nodeID]struct{}, len(n.neighbors[layer]))
			for _, nb := range n.neighbors[layer] {
				if nb == id {
					return fmt.Errorf("node %d layer %d links to itself", id, layer)
				}
				if _, dup := seen[nb]; dup {
					return fmt.Errorf("node %d layer %d has duplicate edge to %d", id, layer, nb)
				}
				seen[nb] = struct{}{}
				target, live := g.nodes[nb]
				if !live {
					return fmt.Errorf("node %d layer %d has dangling edge to removed node %d", id, layer, nb)
				}
				if target.level < layer {
					return fmt.Errorf("node %d layer %d links to node %d which only reaches layer %d", id, layer, nb, target.level)
				}
			}
		}
	}
	return nil
}

// sortCands orders candidates ascending by distance, ties by id so the
// outcome is deterministic.
func sortCands(cs []cand) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].dist != cs[j].dist {
			return cs[i].dist < cs[j].dist
		}
		return cs[i].id < cs[j].id
	})
}
