package flock

import (
	"runtime"
	"sync"
)

// defaultParallelThreshold is the minimum agent count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const defaultParallelThreshold = 64

// kernel processes agents in [i0, i1) for one stage.
type kernel func(i0, i1 int)

// workChunk is one (stage, index range) job for a worker.
type workChunk struct {
	run        kernel
	start, end int
}

// workerPool runs stage chunks on persistent goroutines.
type workerPool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newWorkerPool(numWorkers int) *workerPool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &workerPool{numWorkers: numWorkers}
}

// start launches the worker goroutines.
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
		go p.worker()
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
func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.run(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// runPhase splits every kernel into chunks over n agents, dispatches all of
// them and returns once each has completed. This is the barrier between
// phases.
func (p *workerPool) runPhase(n int, kernels []kernel) {
	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	// Dispatch and collect concurrently: the channels hold at most
	// numWorkers items and a phase may have several times that many chunks.
	pending := 0
	for _, k := range kernels {
		for w := 0; w < p.numWorkers; w++ {
			start := w * chunkSize
			end := start + chunkSize
			if end > n {
				end = n
			}
			if start >= end {
				continue
			}

			chunk := workChunk{run: k, start: start, end: end}
			for sent := false; !sent; {
				select {
				case p.workChan <- chunk:
					sent = true
					pending++
				case <-p.doneChan:
					pending--
				}
			}
		}
	}

	// Wait for all chunks to complete
	for ; pending > 0; pending-- {
		<-p.doneChan
	}
}
