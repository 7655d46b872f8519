package schedule

import (
	"container/heap"
	"sync"
)

// jobHeap is the container/heap backing store, ordered by less.
type jobHeap []*Job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(*Job)) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// JobQueue is the priority job queue of spec.md §4.6. The design notes
// (spec.md §9) accept a lock-based queue over a lock-free skip list when
// job granularity is coarse — one entry per tree node, not per sample — so
// this is a container/heap ordered set behind a single mutex, with a
// condition variable standing in for the lock-free queue's blocking Poll.
type JobQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	heap     jobHeap
	pending  int
	running  int
	finished bool
}

// NewJobQueue returns an empty, unfinished queue.
func NewJobQueue() *JobQueue {
	q := &JobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push inserts a job and wakes one blocked Poll.
func (q *JobQueue) Push(j *Job) {
	q.mu.Lock()
	heap.Push(&q.heap, j)
	q.pending++
	q.mu.Unlock()
	q.cond.Signal()
}

// Poll takes and removes the smallest pending job, blocking while the
// queue is empty and not finished. ok is false once Finish has been called
// and no job remains — the signal every worker uses to drain and exit.
func (q *JobQueue) Poll() (j *Job, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.heap) == 0 && !q.finished {
		q.cond.Wait()
	}
	if len(q.heap) == 0 {
		return nil, false
	}
	j = heap.Pop(&q.heap).(*Job)
	q.pending--
	q.running++
	return j, true
}

// Done marks a polled job as completed.
func (q *JobQueue) Done() {
	q.mu.Lock()
	q.running--
	q.mu.Unlock()
}

// Finish marks the queue finished and wakes every blocked Poll; called once
// the final WriteToTree job completes (spec.md §4.6 "Worker loop").
func (q *JobQueue) Finish() {
	q.mu.Lock()
	q.finished = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Count reports the number of pending and running jobs.
func (q *JobQueue) Count() (pending, running int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending, q.running
}
