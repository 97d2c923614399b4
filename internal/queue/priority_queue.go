package queue

import (
	"container/heap"
	"sync"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

// DeliveryJob is one queued channel delivery
type DeliveryJob struct {
	ID           string
	Priority     domain.Priority
	Notification *domain.Notification
	Attempt      *domain.DeliveryAttempt
	Index        int // Index in the heap
	seq          uint64
}

// jobHeap implements heap.Interface ordered by priority, FIFO within a
// priority level
type jobHeap []*DeliveryJob

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	ri, rj := h[i].Priority.Rank(), h[j].Priority.Rank()
	if ri != rj {
		return ri > rj
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].Index = i
	h[j].Index = j
}

func (h *jobHeap) Push(x interface{}) {
	n := len(*h)
	job := x.(*DeliveryJob)
	job.Index = n
	*h = append(*h, job)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil // Avoid memory leak
	job.Index = -1
	*h = old[0 : n-1]
	return job
}

// PriorityQueue is a thread-safe priority queue for delivery jobs
type PriorityQueue struct {
	jobs   jobHeap
	mu     sync.Mutex
	cond   *sync.Cond
	seq    uint64
	closed bool
}

// NewPriorityQueue creates a new priority queue
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{
		jobs: make(jobHeap, 0),
	}
	pq.cond = sync.NewCond(&pq.mu)
	heap.Init(&pq.jobs)
	return pq
}

// Push adds a job to the queue. Pushing to a closed queue drops the job.
func (pq *PriorityQueue) Push(job *DeliveryJob) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return
	}

	pq.seq++
	job.seq = pq.seq
	heap.Push(&pq.jobs, job)
	pq.cond.Signal() // Wake up a waiting worker
}

// Pop removes and returns the highest priority job, blocking while the
// queue is empty. Returns nil once the queue is closed and drained.
func (pq *PriorityQueue) Pop() *DeliveryJob {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for pq.jobs.Len() == 0 && !pq.closed {
		pq.cond.Wait()
	}
	if pq.jobs.Len() == 0 {
		return nil
	}

	return heap.Pop(&pq.jobs).(*DeliveryJob)
}

// TryPop pops a job without blocking, returning nil if the queue is empty
func (pq *PriorityQueue) TryPop() *DeliveryJob {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.jobs.Len() == 0 {
		return nil
	}

	return heap.Pop(&pq.jobs).(*DeliveryJob)
}

// Close wakes all blocked workers; subsequent pushes are dropped
func (pq *PriorityQueue) Close() {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	pq.closed = true
	pq.cond.Broadcast()
}

// Len returns the number of jobs in the queue
func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.jobs.Len()
}
