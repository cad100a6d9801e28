// Package partition maps string keys onto a fixed number of shards.
package partition

import "hash/fnv"

// Count is the default shard count for in-process keyed state.
const Count = 64

// For returns the shard for key out of Count.
func For(key string) int {
	return Of(key, Count)
}

// Of returns the shard for key out of n. Stable and deterministic
// (FNV-32a); n <= 0 is treated as a single shard.
func Of(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
