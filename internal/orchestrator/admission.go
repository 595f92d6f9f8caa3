package orchestrator

import "slices"

// admit claims an encode slot for id or appends it to the backlog.
func (o *Orchestrator) admit(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.maxConcurrent == 0 || o.active < o.maxConcurrent {
		o.active++
		return true
	}
	o.backlog = append(o.backlog, id)
	return false
}

// releaseSlot frees a slot, handing it straight to the oldest backlogged job.
func (o *Orchestrator) releaseSlot() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || len(o.backlog) == 0 {
		if o.active > 0 {
			o.active--
		}
		return
	}
	next := o.backlog[0]
	o.backlog = o.backlog[1:]
	o.wg.Add(1)
	go o.startQueued(next)
}

func (o *Orchestrator) inBacklog(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Contains(o.backlog, id)
}

func (o *Orchestrator) dropFromBacklog(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	idx := slices.Index(o.backlog, id)
	if idx < 0 {
		return false
	}
	o.backlog = slices.Delete(o.backlog, idx, idx+1)
	return true
}

// startQueued launches a backlogged job on a slot it inherited.
func (o *Orchestrator) startQueued(id string) {
	defer o.wg.Done()
	unlock := o.locks.Lock(id)
	job, err := o.store.Get(o.baseCtx, id)
	if err != nil || !job.Status.Resumable() || o.isClosed() {
		unlock()
		o.releaseSlot()
		return
	}
	o.launch(o.baseCtx, job)
	unlock()
}
