package vulkan

// Resource owns one device handle together with the operation that
// destroys it. Release is idempotent.
type Resource[T any] struct {
	Handle   T
	destroy  func(T)
	released bool
}

func NewResource[T any](handle T, destroy func(T)) *Resource[T] {
	return &Resource[T]{Handle: handle, destroy: destroy}
}

func (r *Resource[T]) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	if r.destroy != nil {
		r.destroy(r.Handle)
	}
	var zero T
	r.Handle = zero
}

// ReleaseStack collects destroy operations while a multi-step construction
// runs. On failure the caller releases the stack and every handle created
// so far is destroyed in reverse order. On success the caller disarms it
// and ownership passes to the constructed object.
//
//	stack := &ReleaseStack{}
//	defer stack.Release()
//	...
//	stack.Disarm()
type ReleaseStack struct {
	fns []func()
}

func (s *ReleaseStack) Push(fn func()) {
	s.fns = append(s.fns, fn)
}

// Release runs the collected operations last-in first-out and empties the stack.
func (s *ReleaseStack) Release() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		s.fns[i]()
	}
	s.fns = nil
}

func (s *ReleaseStack) Disarm() {
	s.fns = nil
}

func (s *ReleaseStack) Len() int {
	return len(s.fns)
}

// Track registers destroy(handle) on the stack and returns handle.
func Track[T any](s *ReleaseStack, handle T, destroy func(T)) T {
	s.Push(func() { destroy(handle) })
	return handle
}
