package dispatch

import (
	"context"
	"fmt"

	"github.com/newtron-network/newtcli/pkg/entity"
)

// DeviceContext is the view of one device a check may consult. Every
// read goes through the transaction cache, so a check that several
// candidates share costs at most one transport round-trip.
type DeviceContext interface {
	// Platform names the device platform/profile in use.
	Platform() string
	// Read returns the output of a probe command.
	Read(ctx context.Context, probe string) (string, error)
	// Memo returns the cached result of (key, query), computing it with fn
	// on first use within the transaction.
	Memo(ctx context.Context, key entity.Key, query string, fn func(context.Context) (interface{}, error)) (interface{}, error)
}

// Check decides whether a candidate applies to a key on a device. Checks
// must be idempotent; the error channel is reserved for read failures.
type Check func(ctx context.Context, key entity.Key, dc DeviceContext) (bool, error)

// Always applies to every key.
func Always() Check {
	return func(context.Context, entity.Key, DeviceContext) (bool, error) {
		return true, nil
	}
}

// All applies when every check applies. Evaluation stops at the first
// check that does not.
func All(checks ...Check) Check {
	return func(ctx context.Context, key entity.Key, dc DeviceContext) (bool, error) {
		for _, c := range checks {
			ok, err := c(ctx, key, dc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any applies when at least one check applies.
func Any(checks ...Check) Check {
	return func(ctx context.Context, key entity.Key, dc DeviceContext) (bool, error) {
		for _, c := range checks {
			ok, err := c(ctx, key, dc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Not inverts a check. Read errors are not inverted.
func Not(c Check) Check {
	return func(ctx context.Context, key entity.Key, dc DeviceContext) (bool, error) {
		ok, err := c(ctx, key, dc)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// RootKind applies when the key's first path element has the given kind.
func RootKind(kind string) Check {
	return func(_ context.Context, key entity.Key, _ DeviceContext) (bool, error) {
		root, ok := key.Root()
		return ok && root.Kind == kind, nil
	}
}

// KeyIDEquals applies when the key path holds kind with identifier id,
// e.g. KeyIDEquals("network-instance", "default").
func KeyIDEquals(kind, id string) Check {
	return func(_ context.Context, key entity.Key, _ DeviceContext) (bool, error) {
		got, ok := key.Lookup(kind)
		return ok && got == id, nil
	}
}

// Platform applies when the device runs one of the named platforms.
func Platform(names ...string) Check {
	return func(_ context.Context, _ entity.Key, dc DeviceContext) (bool, error) {
		p := dc.Platform()
		for _, n := range names {
			if n == p {
				return true, nil
			}
		}
		return false, nil
	}
}

// Memo caches the result of c per key under name for the rest of the
// transaction.
func Memo(name string, c Check) Check {
	query := "check:" + name
	return func(ctx context.Context, key entity.Key, dc DeviceContext) (bool, error) {
		v, err := dc.Memo(ctx, key, query, func(ctx context.Context) (interface{}, error) {
			return c(ctx, key, dc)
		})
		if err != nil {
			return false, err
		}
		ok, isBool := v.(bool)
		if !isBool {
			return false, fmt.Errorf("check %s: cached %T, want bool", name, v)
		}
		return ok, nil
	}
}
