package emit

// NullEmitter discards all events.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit does nothing.
func (n *NullEmitter) Emit(event Event) {}
