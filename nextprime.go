package prime

import (
	"context"
)

// NextPrime returns the smallest probable prime greater than n, testing each
// odd integer after n in turn. The context is checked before each candidate
// and its error is returned if it is done before a prime is found.
func (t *Tester) NextPrime(ctx context.Context, n Int) (Int, error) {
	l := logger.V(1).WithValues("n", n)
	l.Info("NextPrime: enter")
	if n.Less(two) {
		l.Info("NextPrime: exit", "result", two)
		return two, nil
	}
	next := n.Add(one)
	if !next.IsOdd() {
		next = next.Add(one)
	}
	for tested := 1; ; tested++ {
		if err := ctx.Err(); err != nil {
			return Int{}, err //nolint:wrapcheck // Context errors are returned as-is
		}
		ok, err := t.ProbablyPrime(ctx, next)
		if err != nil {
			return Int{}, err
		}
		if ok {
			l.Info("NextPrime: exit", "result", next, "tested", tested)
			return next, nil
		}
		next = next.Add(two)
	}
}
