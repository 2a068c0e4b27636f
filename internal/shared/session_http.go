package shared

import (
	"context"
	"log/slog"
	"net/http"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the request session, or nil outside the
// session middleware.
func SessionFromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionContextKey{}).(*Session); ok {
		return sess
	}
	return nil
}

// Middleware loads the session into the request context and commits it right
// before the response header is written. Handlers that write nothing still
// get their session committed once they return.
func (sm *SessionManager) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sm.Load(r.Context(), r)
			if err != nil {
				logger.Error("failed to load session", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx := ContextWithSession(r.Context(), sess)
			r = r.WithContext(ctx)
			// Commit outlives request timeouts.
			commitCtx := context.WithoutCancel(ctx)
			wrapped := &responseWriterWithCommit{ResponseWriter: w, commit: func() {
				if err := sm.Commit(commitCtx, w, r, sess); err != nil {
					logger.Error("failed to commit session", slog.Any("error", err))
				}
			}}
			next.ServeHTTP(wrapped, r)
			wrapped.flush()
		})
	}
}

type responseWriterWithCommit struct {
	http.ResponseWriter
	commit        func()
	headerWritten bool
}

func (w *responseWriterWithCommit) flush() {
	if w.headerWritten {
		return
	}
	w.headerWritten = true
	w.commit()
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	w.flush()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(data)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriterWithCommit) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
