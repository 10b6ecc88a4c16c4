package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"

	"github.com/shandysiswandi/gomotp/internal/pkg/stacktrace"
)

// dispatch runs handler and converts a panic into an error.
func dispatch(ctx context.Context, driver string, handler Handler, msg Message) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", driver, rvr)
		}
	}()

	return handler(ctx, msg)
}

// logFailure is used by drivers that cannot request redelivery.
func logFailure(ctx context.Context, driver, topic string, msg Message, err error) {
	slog.ErrorContext(ctx, "messaging handler failed",
		"driver", driver,
		"topic", topic,
		"message_id", msg.ID,
		"error", err,
	)
}

// outgoingHeaders merges the message ID into a copy of msg.Headers.
func outgoingHeaders(msg Message) map[string]string {
	out := make(map[string]string, len(msg.Headers)+1)
	maps.Copy(out, msg.Headers)
	if msg.ID != "" {
		out[HeaderMessageID] = msg.ID
	}
	return out
}

// incoming rebuilds a Message from transport headers.
func incoming(headers map[string]string, key string, body []byte, fallbackID string) Message {
	msg := Message{Key: key, Body: body, Headers: map[string]string{}}
	for k, v := range headers {
		if k == HeaderMessageID {
			msg.ID = v
			continue
		}
		msg.Headers[k] = v
	}
	if msg.ID == "" {
		msg.ID = fallbackID
	}
	return msg
}
