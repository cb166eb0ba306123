package classifier

import (
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/debounce"
)

// Output is one classification result, stamped with the capture time of
// the frame it was computed from.
type Output struct {
	Observation debounce.Observation
	At          time.Time
	Err         error
}

type job struct {
	frame *gocv.Mat
	at    time.Time
}

// Async runs a Classifier on a single worker goroutine. At most one frame is
// in flight; frames submitted while the worker is busy are dropped, the same
// way a live-stream recognizer skips frames it cannot keep up with. Results
// are delivered in submission order.
type Async struct {
	classifier Classifier
	in         chan job
	out        chan Output
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
	dropped    atomic.Int64
}

// NewAsync starts a worker around c. buffer is the capacity of the output
// channel.
func NewAsync(c Classifier, buffer int) *Async {
	if buffer < 0 {
		buffer = 0
	}
	a := &Async{
		classifier: c,
		in:         make(chan job),
		out:        make(chan Output, buffer),
		done:       make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Submit hands a copy of frame to the worker if it is idle. It returns
// false when the frame was dropped. The caller keeps ownership of frame.
func (a *Async) Submit(frame *gocv.Mat, at time.Time) bool {
	select {
	case <-a.done:
		return false
	default:
	}

	clone := frame.Clone()
	select {
	case a.in <- job{frame: &clone, at: at}:
		return true
	default:
		clone.Close()
		a.dropped.Add(1)
		return false
	}
}

// Results returns the channel classification results are delivered on. It
// is closed by Close.
func (a *Async) Results() <-chan Output {
	return a.out
}

// Dropped returns the number of frames skipped because the worker was busy.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops the worker and closes the wrapped classifier.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		err = a.classifier.Close()
	})
	return err
}

func (a *Async) run() {
	defer a.wg.Done()
	defer close(a.out)

	for {
		select {
		case <-a.done:
			return
		case j := <-a.in:
			gestures, err := a.classifier.Classify(j.frame)
			j.frame.Close()

			out := Output{At: j.at, Err: err}
			if err == nil {
				out.Observation = Top(gestures)
			}

			select {
			case a.out <- out:
			case <-a.done:
				return
			}
		}
	}
}
