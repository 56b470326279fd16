package xpool

import "container/heap"

// pendingQueue 是等待队列，所有方法在池锁内调用。
type pendingQueue interface {
	push(e entry)
	// pop 取出下一个将被执行的任务。
	pop() (entry, bool)
	len() int
}

func newPendingQueue(cfg Config) pendingQueue {
	switch cfg.QueueOrder {
	case OrderLIFO:
		return &dequeQueue{lifo: true}
	case OrderPriority:
		less := cfg.Less
		if less == nil {
			less = byPriority
		}
		return &priorityQueue{less: less}
	default:
		return &dequeQueue{}
	}
}

// byPriority 是默认比较器：Priority() 大的优先，未实现 Prioritized 的视为 0。
func byPriority(a, b Task) bool {
	return priorityOf(a) > priorityOf(b)
}

// unwrapTask 返回调度包装内的用户任务，比较器只看到用户提交的对象。
func unwrapTask(t Task) Task {
	if w, ok := t.(interface{ unwrap() Task }); ok {
		return w.unwrap()
	}
	return t
}

func priorityOf(t Task) int {
	if p, ok := t.(Prioritized); ok {
		return p.Priority()
	}
	return 0
}

// dequeQueue 是环形缓冲区，FIFO 从头部出队，LIFO 从尾部出队。
type dequeQueue struct {
	buf  []entry
	head int
	n    int
	lifo bool
}

func (q *dequeQueue) push(e entry) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = e
	q.n++
}

func (q *dequeQueue) pop() (entry, bool) {
	if q.n == 0 {
		return entry{}, false
	}
	idx := q.head
	if q.lifo {
		idx = (q.head + q.n - 1) % len(q.buf)
	} else {
		q.head = (q.head + 1) % len(q.buf)
	}
	e := q.buf[idx]
	q.buf[idx] = entry{}
	q.n--
	if q.n == 0 {
		q.head = 0
	}
	return e, true
}

func (q *dequeQueue) len() int {
	return q.n
}

func (q *dequeQueue) grow() {
	size := 2 * len(q.buf)
	if size < 8 {
		size = 8
	}
	buf := make([]entry, size)
	for i := range q.n {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}

// priorityQueue 按 less 排序，less 不能区分时按 TaskID 升序（提交顺序）。
type priorityQueue struct {
	items []entry
	less  func(a, b Task) bool
}

func (q *priorityQueue) push(e entry) {
	heap.Push((*entryHeap)(q), e)
}

func (q *priorityQueue) pop() (entry, bool) {
	if len(q.items) == 0 {
		return entry{}, false
	}
	return heap.Pop((*entryHeap)(q)).(entry), true
}

func (q *priorityQueue) len() int {
	return len(q.items)
}

// entryHeap 实现 heap.Interface。
type entryHeap priorityQueue

func (h *entryHeap) Len() int { return len(h.items) }

func (h *entryHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	ta, tb := unwrapTask(a.task), unwrapTask(b.task)
	if h.less(ta, tb) {
		return true
	}
	if h.less(tb, ta) {
		return false
	}
	return a.id < b.id
}

func (h *entryHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *entryHeap) Push(x any) { h.items = append(h.items, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	h.items = old[:n-1]
	return e
}
