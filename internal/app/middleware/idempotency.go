package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"

	"rentspace/internal/app/commands"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var (
	errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")
)

type IdempotencyOptions struct {
	Codec ResultCodec
	// TTL bounds how long a stored result is replayed. Zero keeps it forever.
	TTL time.Duration
	Now func() time.Time
}

// Idempotency replays the stored result of a command with a known key.
// Only successful results are stored; a failed command can be retried with
// the same key. Concurrent duplicates inside this process share one execution.
func Idempotency(store IdempotencyStore, opts IdempotencyOptions) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	codec := opts.Codec
	if codec == nil {
		codec = JSONResultCodec{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var group singleflight.Group
	return func(next commands.Bus) commands.Bus {
		return dispatchFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return next.Dispatch(ctx, cmd)
			}
			if idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.Key() + ":" + idCmd.IdempotencyKey()
			res, err, _ := group.Do(key, func() (any, error) {
				rec, found, err := store.Get(ctx, key)
				if err != nil {
					return nil, err
				}
				if found && (opts.TTL <= 0 || now().Sub(rec.OccurredAt) < opts.TTL) {
					return replay(codec, idCmd, rec)
				}
				result, err := next.Dispatch(ctx, cmd)
				if err != nil {
					return nil, err
				}
				record := IdempotencyRecord{Key: key, OccurredAt: now().UTC()}
				if result != nil {
					payload, encErr := codec.Encode(result)
					if encErr != nil {
						return nil, encErr
					}
					record.Payload = payload
				}
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, saveErr
				}
				return result, nil
			})
			return res, err
		})
	}
}

func replay(codec ResultCodec, cmd IdempotentCommand, rec IdempotencyRecord) (any, error) {
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
