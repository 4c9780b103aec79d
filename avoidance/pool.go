package avoidance

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum agent count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workChunk represents a range of agents for a worker to process.
type workChunk struct {
	start, end int
}

// workerPool runs chunks of a step on persistent goroutines.
type workerPool struct {
	numWorkers int
	compute    func(start, end int, scratch *[]Neighbor)
	scratches  [][]Neighbor

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newWorkerPool(workers int, compute func(start, end int, scratch *[]Neighbor)) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scratches := make([][]Neighbor, workers)
	for i := range scratches {
		scratches[i] = make([]Neighbor, 0, 64)
	}
	return &workerPool{numWorkers: workers, compute: compute, scratches: scratches}
}

// start launches persistent worker goroutines.
func (p *workerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker processes chunks until stopped.
func (p *workerPool) worker(workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.compute(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// run processes n items, fanning out when n is large enough. It returns
// only after every chunk has completed.
func (p *workerPool) run(n int) {
	if n == 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		p.compute(0, n, &p.scratches[0])
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
