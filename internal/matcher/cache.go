package matcher

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

const compiledCacheSize = 64

// compiled memoizes pattern compilation. Regexps are safe for concurrent use,
// so cached values are shared between matchers.
var compiled = mustCache(compiledCacheSize)

func mustCache(size int) *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		panic(err)
	}
	return c
}

func cachedCompile(pattern string) (*regexp.Regexp, error) {
	if re, ok := compiled.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	compiled.Add(pattern, re)
	return re, nil
}
