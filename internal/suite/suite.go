// Package suite holds the built-in workloads. Importing it registers them in
// benchmark.DefaultRegistry, which is how worker processes resolve the
// identifiers they are sent.
package suite

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"strings"

	"calibench/internal/benchmark"
)

const (
	defaultSortSize = 1000
	defaultMapSize  = 1000
	defaultFibN     = 20
	maxFibN         = 40
	maxSize         = 10_000_000

	// seed keeps generated inputs identical across contexts.
	seed = 42
)

var defaultJSONDocument = `{"id":7,"name":"calibench","tags":["cpu","memory","latency"],"ratio":0.75,"nested":{"ok":true}}`

func init() {
	Register(benchmark.DefaultRegistry)
}

// Register adds every built-in workload to r.
func Register(r *benchmark.Registry) {
	r.MustRegister("sha256", newSHA256)
	r.MustRegister("sort_ints", newSortInts)
	r.MustRegister("json_roundtrip", newJSONRoundTrip)
	r.MustRegister("map_insert", newMapInsert)
	r.MustRegister("fib", newFib)
}

// newSHA256 hashes the source bytes, or 4 KiB of zeros when empty.
func newSHA256(source string) (benchmark.Func, error) {
	data := []byte(source)
	if len(data) == 0 {
		data = make([]byte, 4096)
	}
	return func() any {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}, nil
}

// newSortInts sorts a fresh copy of n pseudo-random ints per invocation.
func newSortInts(source string) (benchmark.Func, error) {
	n, err := sizeArg(source, defaultSortSize)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	input := make([]int, n)
	for i := range input {
		input[i] = rng.Int()
	}
	work := make([]int, n)
	return func() any {
		copy(work, input)
		slices.Sort(work)
		return work[0]
	}, nil
}

// newJSONRoundTrip decodes and re-encodes the source document.
func newJSONRoundTrip(source string) (benchmark.Func, error) {
	doc := strings.TrimSpace(source)
	if doc == "" {
		doc = defaultJSONDocument
	}
	if !json.Valid([]byte(doc)) {
		return nil, fmt.Errorf("json_roundtrip: source is not valid JSON")
	}
	raw := []byte(doc)
	return func() any {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err.Error()
		}
		out, err := json.Marshal(v)
		if err != nil {
			return err.Error()
		}
		return len(out)
	}, nil
}

// newMapInsert fills a new map with n keys per invocation.
func newMapInsert(source string) (benchmark.Func, error) {
	n, err := sizeArg(source, defaultMapSize)
	if err != nil {
		return nil, err
	}
	return func() any {
		m := make(map[int]int)
		for i := 0; i < n; i++ {
			m[i] = i * i
		}
		return len(m)
	}, nil
}

// newFib computes the n-th Fibonacci number recursively.
func newFib(source string) (benchmark.Func, error) {
	n, err := sizeArg(source, defaultFibN)
	if err != nil {
		return nil, err
	}
	if n > maxFibN {
		return nil, fmt.Errorf("fib: n=%d exceeds %d", n, maxFibN)
	}
	return func() any { return fib(n) }, nil
}

func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}

func sizeArg(source string, def int) (int, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return def, nil
	}
	n, err := strconv.Atoi(source)
	if err != nil {
		return 0, fmt.Errorf("source %q is not an integer: %w", source, err)
	}
	if n < 1 || n > maxSize {
		return 0, fmt.Errorf("source %d out of range [1, %d]", n, maxSize)
	}
	return n, nil
}
