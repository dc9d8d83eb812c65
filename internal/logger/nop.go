package logger

// nop discards everything. Used by tests and when no logger is wired.
type nop struct{}

// NewNop returns a Logger that does nothing.
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...Field) {}
func (nop) Info(string, ...Field)  {}
func (nop) Warn(string, ...Field)  {}
func (nop) Error(string, ...Field) {}
func (n nop) With(...Field) Logger { return n }
func (nop) Sync() error            { return nil }
