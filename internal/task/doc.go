// Package task holds the fixed checkpoint workloads agents execute, in
// order: a prime-counting sieve, an iterative Fibonacci term, and a timed
// wait. The order is global and independent of which physical checkpoint
// an agent touches.
package task
