package valuestream

import "sync"

// symbolTable is the process-wide, read-mostly symbol interning table
// required by spec §5 "Resource policy": a Symbol decoded from a given name
// anywhere in this process is the same logical symbol. It holds no
// per-stream state and is never cleared.
var symbolTable = struct {
	mu   sync.RWMutex
	seen map[string]Symbol
}{seen: make(map[string]Symbol)}

// Intern returns the canonical Symbol for name, registering it on first
// use. Because Symbol is a string-kind type this doesn't change identity
// semantics for Go equality (Symbol("x") == Symbol("x") regardless), but it
// keeps a single registration point symmetric with how the teacher's
// codecFn tables cache per-type state once and reuse it thereafter.
func Intern(name string) Symbol {
	symbolTable.mu.RLock()
	if s, ok := symbolTable.seen[name]; ok {
		symbolTable.mu.RUnlock()
		return s
	}
	symbolTable.mu.RUnlock()

	symbolTable.mu.Lock()
	defer symbolTable.mu.Unlock()
	if s, ok := symbolTable.seen[name]; ok {
		return s
	}
	s := Symbol(name)
	symbolTable.seen[name] = s
	return s
}
