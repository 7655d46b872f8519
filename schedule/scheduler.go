package schedule

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/copse-ml/copse/internal/randutil"
	"github.com/copse-ml/copse/split"
	"github.com/copse-ml/copse/storedtree"
	"github.com/copse-ml/copse/tree"
)

// DefaultNumWorkers mirrors the teacher's DefaultMaxConcurrency
// (pkg/botanic/queue.go), used when a trainer leaves num_threads unset.
const DefaultNumWorkers = 10

// linkJoin accumulates a node's two children's refs before SetChildren can
// be called — the "single all-children-processed propagation" of spec.md
// §4.6 synchronization discipline point (4).
type linkJoin struct {
	mu               sync.Mutex
	have             int
	leftRef          int32
	rightRef         int32
}

// treeState is one tree's scheduling state: its Builder, a seed for
// deterministic per-node RNG derivation, the join table for parallel-build
// fan-in, and an outstanding-node token count that reaches zero exactly
// when every node has resolved to a cell or leaf.
type treeState struct {
	id      int
	builder *tree.Builder
	seed    int64

	linksMu sync.Mutex
	links   map[int32]*linkJoin

	pending  int64 // atomic: outstanding node-resolution tokens
	rootCost float64

	result *storedtree.Tree
}

// Scheduler drives one or more trees to completion concurrently through a
// single shared JobQueue and a fixed-size worker pool (spec.md §4.6).
// Builders for distinct trees never share arena state, so growing several
// trees (a forest) through one Scheduler just interleaves their jobs.
type Scheduler struct {
	queue      *JobQueue
	numWorkers int

	trees          []*treeState
	remainingTrees int64 // atomic
}

// NewScheduler returns a Scheduler with the given worker pool size,
// defaulting to DefaultNumWorkers when numWorkers <= 0.
func NewScheduler(numWorkers int) *Scheduler {
	if numWorkers <= 0 {
		numWorkers = DefaultNumWorkers
	}
	return &Scheduler{queue: NewJobQueue(), numWorkers: numWorkers}
}

// AddTree registers a tree to be grown and returns its tree id, used to
// retrieve its StoredTree from Results after Run. seed derives every node's
// RNG for that tree (per-node, not per-thread: see DESIGN.md — this is what
// makes the result independent of how jobs happen to be scheduled across
// workers).
func (s *Scheduler) AddTree(builder *tree.Builder, seed int64) int {
	id := len(s.trees)
	s.trees = append(s.trees, &treeState{
		id:      id,
		builder: builder,
		seed:    seed,
		links:   make(map[int32]*linkJoin),
	})
	return id
}

// Run grows every registered tree to completion using the worker pool and
// returns the first fatal error encountered, if any (spec.md §4.6
// "Cancellation": no graceful signal — the driver runs to completion or
// fails fatally, matching golang.org/x/sync/errgroup's first-error-wins
// semantics).
func (s *Scheduler) Run() error {
	s.remainingTrees = int64(len(s.trees))
	if len(s.trees) == 0 {
		return nil
	}

	g := &errgroup.Group{}
	for i := 0; i < s.numWorkers; i++ {
		g.Go(s.worker)
	}

	for _, t := range s.trees {
		atomic.AddInt64(&t.pending, 1)
		s.queue.Push(&Job{
			Kind:      SplitRawNode,
			TreeID:    t.id,
			NodeIdx:   0,
			ParentIdx: noParentIdx,
			Rng:       randutil.New(t.seed, 0),
		})
	}

	return g.Wait()
}

// Results returns the finalized StoredTree for every registered tree, in
// AddTree order. Valid only after Run returns nil.
func (s *Scheduler) Results() []*storedtree.Tree {
	out := make([]*storedtree.Tree, len(s.trees))
	for i, t := range s.trees {
		out[i] = t.result
	}
	return out
}

func (s *Scheduler) worker() error {
	for {
		j, ok := s.queue.Poll()
		if !ok {
			return nil
		}
		err := s.dispatch(j)
		s.queue.Done()
		if err != nil {
			s.queue.Finish()
			return err
		}
	}
}

func (s *Scheduler) dispatch(j *Job) error {
	switch j.Kind {
	case SplitRawNode:
		return s.runSplitRawNode(j)
	case SplitOnFeature:
		return s.runSplitOnFeature(j)
	case SplitProcessedNode:
		return s.runSplitProcessedNode(j)
	case WriteToTree:
		return s.runWriteToTree(j)
	default:
		return nil
	}
}

// runSplitRawNode implements the parallel-build worker loop of spec.md
// §4.6: a node at or below MaxNumSampleForSerialBuild runs its whole
// subtree inline; a node above MaxNumSampleForSerialSplit hands off to
// parallel-split (async, via SplitOnFeature/SplitProcessedNode jobs);
// anything in between processes just this node, enqueues the smaller child
// as a new job, and loops to process the larger child inline in this same
// goroutine (the work-stealing imbalance fix).
func (s *Scheduler) runSplitRawNode(j *Job) error {
	t := s.trees[j.TreeID]
	idx, parentIdx, parentCellID, isLeft := j.NodeIdx, j.ParentIdx, j.ParentCellID, j.IsLeftChild
	rng := j.Rng

	for {
		size := t.builder.NodeSize(idx)
		switch {
		case size <= tree.MaxNumSampleForSerialBuild:
			ref, cost, err := t.builder.RunSerial(idx, rng)
			if err != nil {
				return err
			}
			s.resolveLeaf(t, parentIdx, parentCellID, isLeft, ref, cost)
			return nil

		case size > tree.MaxNumSampleForSerialSplit:
			return s.startParallelSplit(t, idx, parentIdx, parentCellID, isLeft, rng)

		default:
			res, err := t.builder.ProcessNode(idx, rng)
			if err != nil {
				return err
			}
			if res.IsLeaf {
				s.resolveLeaf(t, parentIdx, parentCellID, isLeft, res.Ref, res.Cost)
				return nil
			}
			s.link(t, parentIdx, parentCellID, isLeft, res.CellID, res.Cost)

			// Process the larger child inline in this goroutine; queue the
			// smaller one for another worker to pick up.
			nextIdx, nextIsLeft := res.LeftIdx, true
			forkIdx, forkIsLeft := res.RightIdx, false
			if res.LeftSubsetSize < res.RightSubsetSize {
				nextIdx, nextIsLeft = res.RightIdx, false
				forkIdx, forkIsLeft = res.LeftIdx, true
			}
			s.enqueueChild(t, forkIdx, idx, res.CellID, forkIsLeft)

			idx, parentIdx, parentCellID, isLeft = nextIdx, idx, res.CellID, nextIsLeft
			rng = randutil.New(t.seed, int(idx))
		}
	}
}

// startParallelSplit samples num_features_for_split features and enqueues
// one SplitOnFeature job per feature, each sharing a target-counted
// SplitInfo (spec.md §4.6 "Parallel-split").
func (s *Scheduler) startParallelSplit(t *treeState, idx, parentIdx, parentCellID int32, isLeft bool, rng *rand.Rand) error {
	stats, isLeaf, leafRef, err := t.builder.PrepareStats(idx)
	if err != nil {
		return err
	}
	if isLeaf {
		s.resolveLeaf(t, parentIdx, parentCellID, isLeft, leafRef, stats.Cost)
		return nil
	}

	ids := t.builder.SampleFeatures(rng)
	info := split.NewSplitInfo(len(ids))
	for _, featureIdx := range ids {
		s.queue.Push(&Job{
			Kind:         SplitOnFeature,
			TreeID:       t.id,
			NodeIdx:      idx,
			ParentIdx:    parentIdx,
			ParentCellID: parentCellID,
			IsLeftChild:  isLeft,
			FeatureIdx:   featureIdx,
			SplitInfo:    info,
			Rng:          randutil.New(t.seed, int(idx)*4096+featureIdx),
		})
	}
	return nil
}

// runSplitOnFeature merges one feature's candidate into the node's shared
// SplitInfo; the worker whose merge brings NumUpdates to TargetUpdates
// enqueues SplitProcessedNode (spec.md §4.6).
func (s *Scheduler) runSplitOnFeature(j *Job) error {
	t := s.trees[j.TreeID]
	cand, _ := t.builder.SearchFeature(j.NodeIdx, j.FeatureIdx, j.Rng)
	if j.SplitInfo.Merge(cand) {
		j.SplitInfo.FinishUpdate()
		s.queue.Push(&Job{
			Kind:         SplitProcessedNode,
			TreeID:       j.TreeID,
			NodeIdx:      j.NodeIdx,
			ParentIdx:    j.ParentIdx,
			ParentCellID: j.ParentCellID,
			IsLeftChild:  j.IsLeftChild,
			Gain:         j.SplitInfo.Gain,
			SplitInfo:    j.SplitInfo,
		})
	}
	return nil
}

// runSplitProcessedNode finalizes a parallel-split node: partition,
// allocate its cell and children, and enqueue both children as fresh
// SplitRawNode jobs (spec.md §4.6).
func (s *Scheduler) runSplitProcessedNode(j *Job) error {
	t := s.trees[j.TreeID]
	res, err := t.builder.FinalizeSplit(j.NodeIdx, j.SplitInfo)
	if err != nil {
		return err
	}
	if res.IsLeaf {
		s.resolveLeaf(t, j.ParentIdx, j.ParentCellID, j.IsLeftChild, res.Ref, res.Cost)
		return nil
	}
	s.link(t, j.ParentIdx, j.ParentCellID, j.IsLeftChild, res.CellID, res.Cost)
	s.enqueueChild(t, res.LeftIdx, j.NodeIdx, res.CellID, true)
	s.enqueueChild(t, res.RightIdx, j.NodeIdx, res.CellID, false)
	// Both children minted their own token via enqueueChild; this node's
	// own token, held since it was first dispatched, retires here.
	if atomic.AddInt64(&t.pending, -1) == 0 {
		s.queue.Push(&Job{Kind: WriteToTree, TreeID: t.id})
	}
	return nil
}

// runWriteToTree finalizes one tree's StoredTree — the single finalizing
// worker of spec.md §5 — and, once every registered tree has finalized,
// marks the queue finished so idle workers drain and exit.
func (s *Scheduler) runWriteToTree(j *Job) error {
	t := s.trees[j.TreeID]
	t.result = t.builder.Finish(t.rootCost)
	if atomic.AddInt64(&s.remainingTrees, -1) == 0 {
		s.queue.Finish()
	}
	return nil
}

// enqueueChild mints a new outstanding-node token and enqueues childIdx as
// a SplitRawNode job against its parent's already-known cell id.
func (s *Scheduler) enqueueChild(t *treeState, childIdx, parentIdx, parentCellID int32, isLeft bool) {
	atomic.AddInt64(&t.pending, 1)
	s.queue.Push(&Job{
		Kind:         SplitRawNode,
		TreeID:       t.id,
		NodeIdx:      childIdx,
		ParentIdx:    parentIdx,
		ParentCellID: parentCellID,
		IsLeftChild:  isLeft,
		Rng:          randutil.New(t.seed, int(childIdx)),
	})
}

// resolveLeaf links a leaf's ref into its parent and retires its node token,
// enqueuing WriteToTree once the tree's last token retires.
func (s *Scheduler) resolveLeaf(t *treeState, parentIdx, parentCellID int32, isLeft bool, ref int32, cost float64) {
	s.link(t, parentIdx, parentCellID, isLeft, ref, cost)
	if atomic.AddInt64(&t.pending, -1) == 0 {
		s.queue.Push(&Job{Kind: WriteToTree, TreeID: t.id})
	}
}

// link records one child's resolved ref against its parent's join entry,
// calling SetChildren and discarding the parent's Subset once both
// siblings have reported (spec.md §4.6 synchronization discipline point 4).
// parentIdx == noParentIdx means idx is itself a tree's root: there is no
// sibling to join with, just the tree's overall init cost to record.
func (s *Scheduler) link(t *treeState, parentIdx, parentCellID int32, isLeft bool, ref int32, cost float64) {
	if parentIdx == noParentIdx {
		t.rootCost = cost
		return
	}

	t.linksMu.Lock()
	join, ok := t.links[parentCellID]
	if !ok {
		join = &linkJoin{}
		t.links[parentCellID] = join
	}
	t.linksMu.Unlock()

	join.mu.Lock()
	if isLeft {
		join.leftRef = ref
	} else {
		join.rightRef = ref
	}
	join.have++
	ready := join.have == 2
	left, right := join.leftRef, join.rightRef
	join.mu.Unlock()

	if !ready {
		return
	}
	t.builder.SetChildren(parentCellID, left, right)
	t.builder.DiscardSubset(parentIdx)
	t.linksMu.Lock()
	delete(t.links, parentCellID)
	t.linksMu.Unlock()
}
