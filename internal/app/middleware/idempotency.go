package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"dogshare/internal/app/commands"
)

// IdempotentCommand is implemented by commands that can be replayed safely
// under a client-supplied key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer matching the handler's result type.
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key     string
	Command string
	Payload []byte
	Error   string
	// ErrorCode names the registered sentinel behind Error, if any, so a
	// replay fails the same way the original call did.
	ErrorCode  string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

var (
	ErrIdempotencyKeyReused = errors.New("middleware: idempotency key used by a different command")
	errMissingPrototype     = errors.New("middleware: idempotent command requires result prototype")
)

type idempotencyConfig struct {
	transient []error
	replayed  []error
}

type IdempotencyOption func(*idempotencyConfig)

// SkipErrors marks failures that are not recorded, leaving the key free for
// a retry. Context cancellation and deadlines are always skipped.
func SkipErrors(errs ...error) IdempotencyOption {
	return func(c *idempotencyConfig) { c.transient = append(c.transient, errs...) }
}

// ReplayErrors registers sentinels that a replayed failure still matches
// with errors.Is.
func ReplayErrors(errs ...error) IdempotencyOption {
	return func(c *idempotencyConfig) { c.replayed = append(c.replayed, errs...) }
}

// Idempotency replays the stored outcome of a command whose key was already
// seen, including a stored failure.
func Idempotency(store IdempotencyStore, opts ...IdempotencyOption) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	var cfg idempotencyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return cfg.replay(rec, idCmd)
			}
			result, err := next.Dispatch(ctx, cmd)
			record := IdempotencyRecord{Key: key, Command: cmd.Key(), OccurredAt: time.Now().UTC()}
			if err != nil {
				if cfg.isTransient(err) {
					return nil, err
				}
				record.Error = err.Error()
				record.ErrorCode = cfg.codeOf(err)
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := json.Marshal(result)
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
	}
}

func (c idempotencyConfig) isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, t := range c.transient {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func (c idempotencyConfig) codeOf(err error) string {
	for _, sentinel := range c.replayed {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ""
}

func (c idempotencyConfig) replay(rec IdempotencyRecord, cmd IdempotentCommand) (any, error) {
	if rec.Command != "" && rec.Command != cmd.Key() {
		return nil, ErrIdempotencyKeyReused
	}
	if rec.Error != "" {
		return nil, c.replayedError(rec)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return proto, nil
	}
	if err := json.Unmarshal(rec.Payload, proto); err != nil {
		return nil, err
	}
	return proto, nil
}

// replayedError keeps the stored message and unwraps to the sentinel the
// original failure matched.
type replayedError struct {
	msg      string
	sentinel error
}

func (e *replayedError) Error() string { return e.msg }

func (e *replayedError) Unwrap() error { return e.sentinel }

func (c idempotencyConfig) replayedError(rec IdempotencyRecord) error {
	if rec.ErrorCode != "" {
		for _, sentinel := range c.replayed {
			if sentinel.Error() == rec.ErrorCode {
				return &replayedError{msg: rec.Error, sentinel: sentinel}
			}
		}
	}
	return errors.New(rec.Error)
}
