// SPDX-License-Identifier: GPL-3.0-or-later

package socol

// Destroyer is implemented by values attached with [Node.AttachValue] that
// need cleanup when the node is torn down.
type Destroyer interface {
	OnDestroy()
}

// AttachPayload copies data into a buffer obtained from the registry
// [Allocator] and links it to the node, replacing and destroying any
// previous payload.
//
// The destroy function, if not nil, receives the buffer during teardown
// right before the buffer is handed back to the allocator. It returns
// [ErrAllocationFailure] when the allocator fails, leaving the node
// without a payload.
func (n Node) AttachPayload(data []byte, destroy func(payload []byte)) error {
	e := n.get()
	if e == nil {
		return ErrStaleNode
	}
	n.r.releasePayload(e)
	buf := n.r.allocator.Allocate(len(data))
	if buf == nil {
		return ErrAllocationFailure
	}
	copy(buf, data)
	e.payload = buf
	e.destroyPayload = destroy
	return nil
}

// Payload returns the buffer attached with [Node.AttachPayload], or nil.
//
// Callbacks may modify the buffer in place.
func (n Node) Payload() []byte {
	if e := n.get(); e != nil {
		return e.payload
	}
	return nil
}

// AttachValue attaches an arbitrary value to the node, replacing any
// previous value. If the replaced value implements [Destroyer] its
// OnDestroy method runs immediately. The attached value's OnDestroy
// method runs during teardown.
func (n Node) AttachValue(value any) {
	e := n.get()
	if e == nil {
		return
	}
	destroyValue(e.value)
	e.value = value
}

// Value returns the value attached with [Node.AttachValue], or nil.
func (n Node) Value() any {
	if e := n.get(); e != nil {
		return e.value
	}
	return nil
}

// releasePayload destroys and deallocates the node payload, if any.
func (r *Registry) releasePayload(e *node) {
	if e.destroyPayload != nil {
		e.destroyPayload(e.payload)
		e.destroyPayload = nil
	}
	if e.payload != nil {
		r.allocator.Deallocate(e.payload)
		e.payload = nil
	}
}

func destroyValue(value any) {
	if d, ok := value.(Destroyer); ok {
		d.OnDestroy()
	}
}
