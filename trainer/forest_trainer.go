package trainer

import (
	"math/rand"

	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/internal/randutil"
	"github.com/copse-ml/copse/storedtree"
)

// ForestTrainer bootstrap-aggregates num_trees StoredTrees over one
// Dataset, per spec.md §6: `ForestTrainer(cost_function,
// num_features_for_split, min_leaf_node, min_split_node, max_depth,
// max_num_nodes, random_state, num_threads, num_trees)`. It presorts every
// continuous feature once and reuses the result across every tree, and
// accumulates out-of-bag accounting the way wlattner-rf's forest.go does
// (spec.md §11 Supplemented Features).
type ForestTrainer struct {
	costKind            cost.Kind
	numFeaturesForSplit int
	minLeafNode         int
	minSplitNode        int
	maxDepth            int
	maxNumNodes         int
	randomState         int64
	numThreads          int
	numTrees            int

	opts options

	ds *dataset.Dataset
}

// NewForestTrainer constructs a ForestTrainer.
func NewForestTrainer(costKind cost.Kind, numFeaturesForSplit, minLeafNode, minSplitNode, maxDepth, maxNumNodes int, randomState int64, numThreads, numTrees int, opts ...TrainerOption) *ForestTrainer {
	return &ForestTrainer{
		costKind:            costKind,
		numFeaturesForSplit: numFeaturesForSplit,
		minLeafNode:         minLeafNode,
		minSplitNode:        minSplitNode,
		maxDepth:            maxDepth,
		maxNumNodes:         maxNumNodes,
		randomState:         randomState,
		numThreads:          numThreads,
		numTrees:            numTrees,
		opts:                newOptions(opts),
	}
}

// LoadData attaches the Dataset every tree in the forest bootstraps from.
func (f *ForestTrainer) LoadData(ds *dataset.Dataset) {
	f.ds = ds
}

// LoadSampleWeights sets the base sample weights: a weight of 0 excludes a
// sample from bagging entirely, across every tree (spec.md §3).
func (f *ForestTrainer) LoadSampleWeights(weights []uint32) error {
	return f.ds.AddSampleWeights(weights)
}

// LoadDefaultSampleWeights sets every base sample weight to 1.
func (f *ForestTrainer) LoadDefaultSampleWeights() error {
	return f.ds.AddDefaultSampleWeights()
}

// ForestResult bundles a forest's StoredTrees with their out-of-bag
// accounting.
type ForestResult struct {
	Trees []*storedtree.Tree
	OOB   OOBResult
}

// Train presorts every continuous feature once, then for each tree samples
// a with-replacement bootstrap over the base population, grows a
// TreeTrainer reusing the presorted indices, and folds its out-of-bag
// predictions into the running accumulator (spec.md §6).
func (f *ForestTrainer) Train() (*ForestResult, error) {
	if err := f.ds.Validate(); err != nil {
		return nil, err
	}

	rootAll := dataset.MakeRoot(f.ds)
	presorted := f.presortContinuous(rootAll)
	f.opts.log("presorted %d continuous features over %d samples", len(presorted), rootAll.Size())

	oob := newOOBAccumulator(f.ds)
	trees := make([]*storedtree.Tree, f.numTrees)

	// One bootstrap draw sequence, seeded once from random_state: each
	// tree's draw consumes from the same rng in tree order, so the whole
	// forest reproduces byte-identically for a fixed random_state and
	// thread count (testable property 8) regardless of how many trees
	// happen to run concurrently against each other — only a tree's own
	// internal node scheduling is reordered by thread count, never which
	// samples it bootstrapped.
	bootstrapRNG := randutil.New(f.randomState, -1)

	for i := 0; i < f.numTrees; i++ {
		weights := f.bootstrapWeights(rootAll, bootstrapRNG)
		boot := dataset.MakeBootstrap(f.ds, weights)

		tt := NewTreeTrainer(f.costKind, f.numFeaturesForSplit, f.minLeafNode, f.minSplitNode, f.maxDepth, randutil.SubSeed(f.randomState, i), f.numThreads)
		tt.LoadData(f.ds)

		result, err := tt.trainFrom(boot, presorted, f.maxNumNodes)
		if err != nil {
			return nil, err
		}
		trees[i] = result
		oob.update(f.ds, result, rootAll, weights)
		f.opts.log("tree %d/%d finished", i+1, f.numTrees)
	}

	return &ForestResult{Trees: trees, OOB: oob.compute(f.ds, rootAll)}, nil
}

// presortContinuous sorts every continuous feature once over the full
// bagging population and converts each Subset-local order into the
// global sample-id order tree.Config.Presorted expects (spec.md §6
// "internally performs presorting of all continuous features once").
func (f *ForestTrainer) presortContinuous(rootAll *dataset.Subset) map[int][]uint32 {
	presorted := make(map[int][]uint32, f.ds.NumFeatures())
	for i := 0; i < f.ds.NumFeatures(); i++ {
		if f.ds.FeatureType(i) != dataset.Continuous {
			continue
		}
		local := rootAll.Sort(i)
		global := make([]uint32, len(local))
		for j, li := range local {
			global[j] = rootAll.SampleIDs[li]
		}
		presorted[i] = global
	}
	return presorted
}

// bootstrapWeights draws len(rootAll) samples with replacement from
// rootAll's population, producing a dataset-sized weight histogram — the
// with-replacement analogue of wlattner-rf's bootstrapInx, adapted from a
// boolean in-bag vector to an integer multiplicity vector since spec.md §3
// represents bagging as sample_weights multiplicity, not a 0/1 flag.
func (f *ForestTrainer) bootstrapWeights(rootAll *dataset.Subset, rng *rand.Rand) []uint32 {
	weights := make([]uint32, f.ds.Size())
	m := rootAll.Size()
	for i := 0; i < m; i++ {
		pick := rng.Intn(m)
		weights[rootAll.SampleIDs[pick]]++
	}
	return weights
}
