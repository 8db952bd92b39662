package task

type manager struct {
	ready []*TaskControlBlock
	procs map[int]*ProcessControlBlock
}

func (k *Kernel) addTask(t *TaskControlBlock) {
	k.mgr.Session(func(m *manager) { m.ready = append(m.ready, t) })
}

func (k *Kernel) fetchTask() *TaskControlBlock {
	g := k.mgr.Access()
	defer g.Release()
	m := g.Get()
	if len(m.ready) == 0 {
		return nil
	}
	t := m.ready[0]
	m.ready[0] = nil
	m.ready = m.ready[1:]
	return t
}

func (k *Kernel) removeTask(t *TaskControlBlock) {
	k.mgr.Session(func(m *manager) {
		for i, x := range m.ready {
			if x == t {
				m.ready = append(m.ready[:i], m.ready[i+1:]...)
				return
			}
		}
	})
}

// ReadyLen reports the ready queue length.
func (k *Kernel) ReadyLen() int {
	g := k.mgr.Access()
	defer g.Release()
	return len(g.Get().ready)
}

func (k *Kernel) insertProcess(p *ProcessControlBlock) {
	k.mgr.Session(func(m *manager) { m.procs[p.pid] = p })
}

func (k *Kernel) removeProcess(pid int) {
	k.mgr.Session(func(m *manager) { delete(m.procs, pid) })
}

// Process looks up a live process by pid.
func (k *Kernel) Process(pid int) (*ProcessControlBlock, bool) {
	g := k.mgr.Access()
	defer g.Release()
	p, ok := g.Get().procs[pid]
	return p, ok
}

func (k *Kernel) allocPid() int {
	var pid int
	k.pids.Session(func(a *RecycleAllocator) { pid = a.Alloc() })
	return pid
}

func (k *Kernel) deallocPid(pid int) {
	k.pids.Session(func(a *RecycleAllocator) { a.Dealloc(pid) })
}
