package crawler

// fifoQueue is a plain first-in first-out queue.
type fifoQueue[T any] []T

func (q *fifoQueue[T]) enqueue(item T) {
	*q = append(*q, item)
}

// dequeue reports false when the queue is empty.
func (q *fifoQueue[T]) dequeue() (T, bool) {
	var zero T
	if len(*q) == 0 {
		return zero, false
	}
	head := (*q)[0]
	*q = (*q)[1:]
	return head, true
}

type set[T comparable] map[T]struct{}

func (s set[T]) add(item T) bool {
	if _, seen := s[item]; seen {
		return false
	}
	s[item] = struct{}{}
	return true
}

/*
destinationFrontier
  - Admits each destination code once, first occurrence wins
  - Hands destinations out in admission order
  - Never admits the sweep's own origin
*/
type destinationFrontier struct {
	queue    fifoQueue[string]
	admitted set[string]
}

func newDestinationFrontier(origin string, destinations []string) *destinationFrontier {
	f := &destinationFrontier{admitted: make(set[string])}
	f.admitted.add(origin)
	for _, code := range destinations {
		if code == "" {
			continue
		}
		if f.admitted.add(code) {
			f.queue.enqueue(code)
		}
	}
	return f
}

func (f *destinationFrontier) next() (string, bool) {
	return f.queue.dequeue()
}

func (f *destinationFrontier) size() int {
	return len(f.queue)
}
