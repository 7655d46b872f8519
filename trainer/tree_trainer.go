package trainer

import (
	"github.com/copse-ml/copse/cost"
	"github.com/copse-ml/copse/dataset"
	"github.com/copse-ml/copse/schedule"
	"github.com/copse-ml/copse/storedtree"
	"github.com/copse-ml/copse/tree"
)

// TreeTrainer grows a single StoredTree from a Dataset, per spec.md §6:
// `TreeTrainer(cost_function, num_features_for_split, min_leaf_node,
// min_split_node, max_depth, random_state, num_threads)`.
type TreeTrainer struct {
	costKind            cost.Kind
	numFeaturesForSplit int
	minLeafNode         int
	minSplitNode        int
	maxDepth            int
	randomState         int64
	numThreads          int

	opts options

	ds *dataset.Dataset
}

// NewTreeTrainer constructs a TreeTrainer. table construction (only needed
// for cost.Entropy) happens lazily in Train, once the Dataset's class
// weights are known.
func NewTreeTrainer(costKind cost.Kind, numFeaturesForSplit, minLeafNode, minSplitNode, maxDepth int, randomState int64, numThreads int, opts ...TrainerOption) *TreeTrainer {
	return &TreeTrainer{
		costKind:            costKind,
		numFeaturesForSplit: numFeaturesForSplit,
		minLeafNode:         minLeafNode,
		minSplitNode:        minSplitNode,
		maxDepth:            maxDepth,
		randomState:         randomState,
		numThreads:          numThreads,
		opts:                newOptions(opts),
	}
}

// LoadData attaches the Dataset this trainer grows a tree from (spec.md §6
// "load_data(&mut dataset)").
func (t *TreeTrainer) LoadData(ds *dataset.Dataset) {
	t.ds = ds
}

// LoadSampleWeights sets explicit sample weights on the loaded Dataset.
func (t *TreeTrainer) LoadSampleWeights(weights []uint32) error {
	return t.ds.AddSampleWeights(weights)
}

// LoadDefaultSampleWeights sets every sample weight to 1.
func (t *TreeTrainer) LoadDefaultSampleWeights() error {
	return t.ds.AddDefaultSampleWeights()
}

// Train validates the loaded Dataset and grows a tree from its full root
// Subset (spec.md §4.1 MakeRoot), always through a schedule.Scheduler so
// the parallel-build/parallel-split thresholds and the RunSerial fast path
// are exercised uniformly regardless of num_threads.
func (t *TreeTrainer) Train() (*storedtree.Tree, error) {
	if err := t.ds.Validate(); err != nil {
		return nil, err
	}
	return t.trainFrom(dataset.MakeRoot(t.ds), nil, 0)
}

// trainFrom is ForestTrainer's hook into the same machinery Train uses,
// letting it supply a bootstrap root Subset, forest-level presorted
// indices, and max_num_nodes — none of which a bare TreeTrainer carries.
func (t *TreeTrainer) trainFrom(root *dataset.Subset, presorted map[int][]uint32, maxNumNodes int) (*storedtree.Tree, error) {
	var table *cost.NLogNTable
	if t.costKind == cost.Entropy {
		tbl, err := cost.NewNLogNTable(t.ds.ClassWeights())
		if err != nil {
			return nil, err
		}
		table = tbl
	}

	cfg := tree.Config{
		CostKind:            t.costKind,
		NumFeaturesForSplit: t.numFeaturesForSplit,
		MinLeafNode:         t.minLeafNode,
		MinSplitNode:        t.minSplitNode,
		MaxDepth:            t.maxDepth,
		MaxNumNodes:         maxNumNodes,
		Presorted:           presorted,
	}
	builder := tree.NewBuilder(t.ds, cfg, table)
	builder.SeedRoot(root)
	t.opts.log("root seeded: %d samples", root.Size())

	sched := schedule.NewScheduler(t.numThreads)
	sched.AddTree(builder, t.randomState)
	if err := sched.Run(); err != nil {
		return nil, err
	}
	result := sched.Results()[0]
	t.opts.log("tree finished: %d cells, %d leaves", result.NumCell(), result.NumLeaf())
	return result, nil
}
