package logging

// Nop is a Logger that discards everything. Used by tests and by callers
// that don't want engine diagnostics.
type Nop struct{}

func (Nop) Log(...any)            {}
func (Nop) Logf(string, ...any)   {}
func (Nop) Debug(...any)          {}
func (Nop) Debugf(string, ...any) {}
func (Nop) Infof(string, ...any)  {}
func (Nop) Warn(...any)           {}
func (Nop) Warnf(string, ...any)  {}
func (Nop) Error(...any)          {}
func (Nop) Errorf(string, ...any) {}
func (Nop) Fatal(...any)          {}
func (Nop) Fatalf(string, ...any) {}
