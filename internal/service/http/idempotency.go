package httpsvc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
	"github.com/vladislavdragonenkov/orderapp/internal/metrics"
)

const (
	// IdempotencyKeyHeader — заголовок, по которому повторный запрос получает прежний ответ.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayedHeader отмечает ответ, взятый из сохранённой записи.
	IdempotencyReplayedHeader = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKeyLen  = 255

	kindIdempotencyConflict = "idempotency_conflict"
)

// idempotent повторяет сохранённый ответ для запроса с тем же Idempotency-Key и тем же телом.
// 2xx и 4xx ответы запоминаются, 5xx освобождают ключ, чтобы запрос можно было повторить.
func idempotent(repo domain.IdempotencyRepository, ttl time.Duration, m *metrics.IdempotencyMetrics, h *Handler) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if repo == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				h.writeError(w, r, fmt.Errorf("%w: %d > %d", domain.ErrIdempotencyKeyTooLong, len(key), maxIdempotencyKeyLen))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				h.writeError(w, r, fmt.Errorf("%w: %w: %v", domain.ErrValidation, errMalformedBody, err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			entry := h.logger.WithField("idempotency_key", key)
			record, err := repo.CreateProcessing(ctx, key, requestHash(r, body), time.Now().UTC().Add(ttl))
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrIdempotencyHashMismatch):
				m.RecordRequest(metrics.IdempotencyMismatch)
				writeJSON(w, http.StatusConflict, errorResponse{
					Error:   kindIdempotencyConflict,
					Message: "idempotency key is already used with a different request",
				})
				return
			case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
				if !record.Replayable() {
					m.RecordRequest(metrics.IdempotencyInProgress)
					writeJSON(w, http.StatusConflict, errorResponse{
						Error:   kindIdempotencyConflict,
						Message: "request with the same idempotency key is already processing",
					})
					return
				}
				m.RecordRequest(metrics.IdempotencyReplayed)
				entry.Debug("idempotent response replayed")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(IdempotencyReplayedHeader, "true")
				w.WriteHeader(record.HTTPStatus)
				_, _ = w.Write(record.ResponseBody)
				return
			default:
				m.RecordRequest(metrics.IdempotencyError)
				h.writeError(w, r, err)
				return
			}

			var captured bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			// Запрос мог быть отменён клиентом; запись всё равно нужно закрыть.
			storeCtx := context.WithoutCancel(ctx)

			// Паника в обработчике не должна оставлять ключ в processing.
			defer func() {
				if rec := recover(); rec != nil {
					if err := repo.Release(storeCtx, key); err != nil {
						m.RecordRequest(metrics.IdempotencyError)
						entry.WithError(err).Warn("failed to release idempotency key after panic")
					}
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			switch {
			case status >= http.StatusInternalServerError:
				err = repo.Release(storeCtx, key)
			case status >= http.StatusBadRequest:
				err = repo.MarkFailed(storeCtx, key, captured.Bytes(), status)
			default:
				err = repo.MarkDone(storeCtx, key, captured.Bytes(), status)
			}
			if err != nil {
				m.RecordRequest(metrics.IdempotencyError)
				entry.WithError(err).Warn("failed to store idempotent response")
				return
			}
			m.RecordRequest(metrics.IdempotencyStored)
			entry.WithFields(log.Fields{"status": status}).Debug("idempotent response stored")
		})
	}
}

// requestHash связывает ключ с методом, путём и телом запроса.
func requestHash(r *http.Request, body []byte) string {
	sum := sha256.New()
	_, _ = io.WriteString(sum, r.Method+" "+r.URL.Path+"\n")
	_, _ = sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
