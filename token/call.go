package token

import "context"

// Call runs a result-returning request through m.Do so feature services get
// typed results with the same regenerate-and-retry behavior.
func Call[T any](ctx context.Context, m *Manager, fn func(ctx context.Context, token string) (T, error), options ...DoOption) (T, error) {
	var out T
	err := m.Do(ctx, func(ctx context.Context, tok string) error {
		v, err := fn(ctx, tok)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, options...)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
