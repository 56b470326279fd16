package xpool

import "time"

// runWorker 是 worker 主循环：执行手头的任务，再从池中取下一个，直到 next 让它退出。
func (p *Pool) runWorker(w *worker, e entry) {
	for {
		if e.task != nil {
			err := p.run(e, w.id)
			p.mu.Lock()
			p.active--
			p.recordLocked(err)
			p.mu.Unlock()
		}
		var ok bool
		if e, ok = p.next(w); !ok {
			return
		}
	}
}

// next 取下一个任务，返回 false 时 worker 已从存活集合中移除。
//
// 队列为空时 worker 进入 idle 链表等待移交；存活数超过 CoreSize（或允许常驻
// worker 超时）时最多等待 KeepAlive，超时后退出。
func (p *Pool) next(w *worker) (entry, bool) {
	p.mu.Lock()
	for {
		if e, ok := p.queue.pop(); ok {
			p.active++
			p.mu.Unlock()
			return e, true
		}
		if p.state != StateRunning {
			p.exitLocked()
			p.mu.Unlock()
			return entry{}, false
		}

		timed := p.cfg.timedWait(p.live)
		w.elem = p.idle.PushBack(w)
		p.mu.Unlock()

		var e entry
		if timed {
			timer := time.NewTimer(p.cfg.KeepAlive)
			select {
			case e = <-w.ch:
				timer.Stop()
			case <-timer.C:
				p.mu.Lock()
				if w.elem != nil {
					// 真正超时：仍在 idle 链表中，此时队列必为空
					p.idle.Remove(w.elem)
					w.elem = nil
					if p.cfg.timedWait(p.live) {
						p.exitLocked()
						p.mu.Unlock()
						return entry{}, false
					}
					// 其他 worker 已先退出，存活数回落到 CoreSize，转为无限等待
					continue
				}
				// 超时与移交同时发生，通道里一定已有值
				p.mu.Unlock()
				e = <-w.ch
			}
		} else {
			e = <-w.ch
		}

		if e.task != nil {
			return e, true
		}
		// 空 entry 是关闭唤醒，重新检查
		p.mu.Lock()
	}
}

func (p *Pool) exitLocked() {
	p.live--
	if p.live == 0 && p.state != StateRunning && p.state != StateTerminated {
		p.terminateLocked()
	}
}
