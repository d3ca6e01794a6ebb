// Package packs imports all built-in rule packs to register them with
// the global registry. Import it for side effects:
//
//	import _ "github.com/leapstack-labs/leapdq/pkg/rules/packs"
//
// This file triggers the init() functions in the per-domain packages.
package packs

import (
	_ "github.com/leapstack-labs/leapdq/pkg/rules/packs/banking"
	_ "github.com/leapstack-labs/leapdq/pkg/rules/packs/custom"
	_ "github.com/leapstack-labs/leapdq/pkg/rules/packs/insurance"
)
