// Package sink delivers rendered message chunks to a chat.
//
// A Sink posts exactly one chunk per call and reports any failure; it never
// retries. Callers post chunks sequentially to keep their order.
package sink

import (
	"context"
	"errors"
)

var ErrUnknownKind = errors.New("unknown sink kind")

type Sink interface {
	Post(ctx context.Context, content string) error
}

