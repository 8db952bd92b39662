package task

import (
	"hartos/kernel"
	"hartos/mm"
)

// RecycleAllocator hands out small integer ids, reusing released ones in
// LIFO order.
type RecycleAllocator struct {
	current  int
	recycled []int
}

func (a *RecycleAllocator) Alloc() int {
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id
	}
	a.current++
	return a.current - 1
}

func (a *RecycleAllocator) Dealloc(id int) {
	if id >= a.current {
		kernel.Raise(kernel.FaultDoubleRelease, "task", "id %d has not been allocated", id)
	}
	for _, r := range a.recycled {
		if r == id {
			kernel.Raise(kernel.FaultDoubleRelease, "task", "id %d has been deallocated", id)
		}
	}
	a.recycled = append(a.recycled, id)
}

// kernelStackPosition returns the [bottom, top) range of kernel stack id,
// with a guard page above each stack.
func kernelStackPosition(id int) (mm.VirtAddr, mm.VirtAddr) {
	top := mm.Trampoline - mm.VirtAddr(id)*(mm.KernelStackSize+mm.PageSize)
	return top - mm.KernelStackSize, top
}

// KernelStack is a kernel stack mapped in the kernel space.
type KernelStack struct {
	id int
	k  *Kernel
}

func (k *Kernel) allocKernelStack() (*KernelStack, error) {
	var id int
	k.kstackIDs.Session(func(a *RecycleAllocator) { id = a.Alloc() })
	bottom, top := kernelStackPosition(id)
	var err error
	k.kernelSpace.Session(func(ms **mm.MemorySet) {
		err = (*ms).InsertFramedArea(bottom, top, mm.PermR|mm.PermW)
	})
	if err != nil {
		k.kstackIDs.Session(func(a *RecycleAllocator) { a.Dealloc(id) })
		return nil, err
	}
	return &KernelStack{id: id, k: k}, nil
}

// Top is the initial kernel sp.
func (s *KernelStack) Top() uint64 {
	_, top := kernelStackPosition(s.id)
	return uint64(top)
}

// Free unmaps the stack and releases its id.
func (s *KernelStack) Free() {
	if s.k == nil {
		kernel.Raise(kernel.FaultDoubleRelease, "task", "kernel stack %d freed twice", s.id)
	}
	bottom, _ := kernelStackPosition(s.id)
	s.k.kernelSpace.Session(func(ms **mm.MemorySet) { (*ms).RemoveAreaWithStartVPN(bottom.Floor()) })
	s.k.kstackIDs.Session(func(a *RecycleAllocator) { a.Dealloc(s.id) })
	s.k = nil
}

// TaskUserRes is a thread's slice of its process address space: a user stack
// and a trap context page, both placed by tid.
type TaskUserRes struct {
	Tid        int
	UstackBase mm.VirtAddr
}

func (r *TaskUserRes) ustackBottom() mm.VirtAddr {
	return r.UstackBase + mm.VirtAddr(r.Tid)*(mm.PageSize+mm.UserStackSize)
}

// UstackTop is the initial user sp.
func (r *TaskUserRes) UstackTop() mm.VirtAddr { return r.ustackBottom() + mm.UserStackSize }

// TrapCxUserVA is where the trap context page is mapped.
func (r *TaskUserRes) TrapCxUserVA() mm.VirtAddr {
	return mm.TrapContextBase - mm.VirtAddr(r.Tid)*mm.PageSize
}

func (r *TaskUserRes) alloc(ms *mm.MemorySet) error {
	bottom := r.ustackBottom()
	if err := ms.InsertFramedArea(bottom, bottom+mm.UserStackSize, mm.PermR|mm.PermW|mm.PermU); err != nil {
		return err
	}
	cx := r.TrapCxUserVA()
	if err := ms.InsertFramedArea(cx, cx+mm.PageSize, mm.PermR|mm.PermW); err != nil {
		ms.RemoveAreaWithStartVPN(bottom.Floor())
		return err
	}
	return nil
}

func (r *TaskUserRes) dealloc(ms *mm.MemorySet) {
	ms.RemoveAreaWithStartVPN(r.ustackBottom().Floor())
	ms.RemoveAreaWithStartVPN(r.TrapCxUserVA().Floor())
}

func (r *TaskUserRes) trapCxPPN(ms *mm.MemorySet) mm.PPN {
	e, ok := ms.Translate(r.TrapCxUserVA().Floor())
	if !ok {
		kernel.Raise(kernel.FaultUnknown, "task", "tid %d has no trap context page", r.Tid)
	}
	return e.PPN
}
