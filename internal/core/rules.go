package core

import "time"

// NewDefaultRulesEngine returns an engine with the stock vault rules
// registered: result consistency and owner immutability block, stale
// in-flight requests warn.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(ResultConsistencyRule{})
	engine.Register(OwnerImmutabilityRule{})
	engine.Register(StaleRequestRule{MaxAge: DefaultStaleRequestAge})
	return engine
}

// DefaultStaleRequestAge is the in-flight age beyond which StaleRequestRule warns.
const DefaultStaleRequestAge = 24 * time.Hour
