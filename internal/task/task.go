// ABOUTME: Synthetic checkpoint workloads: prime sieve, Fibonacci, timed wait.
// ABOUTME: ByIndex exposes them in the fixed global execution order.

package task

import (
	"context"
	"fmt"
	"time"
)

const (
	// PrimeLimit is the sieve bound for the first workload.
	PrimeLimit = 170000
	// FibonacciN is the term index computed by the second workload.
	FibonacciN = 39
	// WaitDuration is the blocking duration of the third workload.
	WaitDuration = 1100 * time.Millisecond
)

// Total is the number of workloads every agent must complete.
const Total = 3

// Task is one synthetic workload. Run blocks until the work is done or
// ctx is cancelled.
type Task struct {
	Label string
	Run   func(ctx context.Context) (int64, error)
}

// ByIndex returns the workload for the given completed-count, so an agent
// with n tasks done always runs workload n next.
func ByIndex(i int) (Task, error) {
	switch i {
	case 0:
		return Task{
			Label: fmt.Sprintf("primes %dk", PrimeLimit/1000),
			Run: func(context.Context) (int64, error) {
				return int64(CountPrimes(PrimeLimit)), nil
			},
		}, nil
	case 1:
		return Task{
			Label: fmt.Sprintf("fibonacci %d", FibonacciN),
			Run: func(context.Context) (int64, error) {
				return Fibonacci(FibonacciN), nil
			},
		}, nil
	case 2:
		return Task{
			Label: fmt.Sprintf("wait %s", WaitDuration),
			Run: func(ctx context.Context) (int64, error) {
				return Wait(ctx, WaitDuration)
			},
		}, nil
	default:
		return Task{}, fmt.Errorf("no workload at index %d", i)
	}
}

// CountPrimes counts the primes up to and including limit with a sieve of
// Eratosthenes.
func CountPrimes(limit int) int {
	if limit < 2 {
		return 0
	}
	sieve := make([]bool, limit+1)
	count := 0
	for p := 2; p <= limit; p++ {
		if sieve[p] {
			continue
		}
		count++
		for q := p * p; q <= limit; q += p {
			sieve[q] = true
		}
	}
	return count
}

// Fibonacci computes the nth term iteratively (Fibonacci(0) = 0).
func Fibonacci(n int) int64 {
	var a, b int64 = 0, 1
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}

// Wait blocks for d or until ctx is cancelled, returning the elapsed
// milliseconds.
func Wait(ctx context.Context, d time.Duration) (int64, error) {
	start := time.Now()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return time.Since(start).Milliseconds(), nil
	case <-ctx.Done():
		return time.Since(start).Milliseconds(), ctx.Err()
	}
}
