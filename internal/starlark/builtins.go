package starlark

import (
	"fmt"
	"regexp"
	"sync"

	"go.starlark.net/starlark"
)

// patternCache holds compiled regexps used by the matches builtin.
// Rule expressions reuse a handful of patterns across thousands of
// rows, so compiling per call would dominate evaluation time.
var patternCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// matchesBuiltin implements matches(pattern, value): regexp matching
// for expression rules. The Starlark universe has no regex support of
// its own.
func matchesBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, value string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &pattern, &value); err != nil {
		return nil, err
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: bad pattern %q: %v", b.Name(), pattern, err)
	}
	return starlark.Bool(re.MatchString(value)), nil
}

// Predeclared returns the predeclared globals available to rule
// expressions, on top of the standard Starlark universe.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"matches": starlark.NewBuiltin("matches", matchesBuiltin),
	}
}
