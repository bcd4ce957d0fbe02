// пакет api предоставляет маршрутизатор REST API
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rtemka/comments/domain"
	"github.com/rtemka/comments/pkg/validation"

	"go.uber.org/zap"
)

// Prefix - путь, по которому доступен ресурс комментариев.
const Prefix = "/api/comments"

// Тексты ответов.
const (
	msgServerError = "Server Error"
	msgNotFound    = "Comment not found"
	msgDeleted     = "Comment deleted"
	msgBadBody     = "Invalid request body"
)

// storeTimeout ограничивает время одного обращения к хранилищу.
const storeTimeout = 5 * time.Second

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestID ctxKey = iota
)

type wideResponseWriter struct {
	http.ResponseWriter
	length, status int
	internalErr    error
}

func (w *wideResponseWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
}

func (w *wideResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.length += n
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return n, err
}

// Message - ответ с текстовым сообщением.
type Message struct {
	Msg string `json:"msg"`
}

// ValidationErrors - ответ на запрос, не прошедший проверку.
type ValidationErrors struct {
	Errors validation.Errors `json:"errors"`
}

// createRequest - тело запроса на создание комментария.
// Остальные поля запроса игнорируются.
type createRequest struct {
	Name    string `json:"name" validate:"required" msg:"Name is required"`
	Email   string `json:"email" validate:"required,email" msg:"Email is required"`
	Comment string `json:"comment" validate:"required" msg:"Comment is required"`
}

// REST API.
type API struct {
	router    *mux.Router
	repo      domain.Repository
	validator *validation.Validator
	logger    *zap.Logger
	// AllowedOrigin - значение заголовка Access-Control-Allow-Origin.
	// Может быть изменено пользователем после создания объекта API.
	AllowedOrigin string
}

// New возвращает [*API].
func New(db domain.Repository, logger *zap.Logger) *API {
	api := API{
		router:        mux.NewRouter(),
		logger:        logger,
		repo:          db,
		validator:     validation.New(),
		AllowedOrigin: "*",
	}
	api.endpoints()
	return &api
}

// ServeHTTP - таким образом, мы можем использовать
// сам [*API] в качестве мультиплексора на сервере.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

func (api *API) endpoints() {
	api.router.Use(
		api.requestIDMiddleware,
		api.wideEventLogMiddleware,
		api.closerMiddleware,
		api.corsMiddleware,
		api.headersMiddleware,
		api.secHeadersMiddleware,
	)
	api.router.HandleFunc(Prefix, api.handleCommentsList()).Methods(http.MethodGet, http.MethodOptions)
	api.router.HandleFunc(Prefix, api.handleCommentCreate()).Methods(http.MethodPost, http.MethodOptions)
	api.router.HandleFunc(Prefix+"/{id}", api.handleCommentDelete()).Methods(http.MethodDelete, http.MethodOptions)
}

// closerMiddleware считывает и закрывает тело запроса
// для повторного использования TCP-соединения.
func (api *API) closerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	})
}

// requestIDMiddleware извлекает id запроса из параметров или заголовков запроса.
// В случае если id запроса отсутствует, id генерируется.
// Далее id добавляется в контекст запроса и в заголовок ответа.
func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.URL.Query().Get("request-id")
		if rid == "" {
			rid = r.Header.Get(requestIDHeader)
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctxWithID := context.WithValue(r.Context(), requestID, rid)
		rWithID := r.WithContext(ctxWithID)
		next.ServeHTTP(w, rWithID)
	})
}

// wideEventLogMiddleware собирает и регистрирует информацию о полученном запросе.
// Запросы, завершившиеся внутренней ошибкой, регистрируются с уровнем ERROR.
func (api *API) wideEventLogMiddleware(next http.Handler) http.Handler {

	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {

			wideWriter := &wideResponseWriter{ResponseWriter: w}

			next.ServeHTTP(wideWriter, r)

			addr, _, _ := net.SplitHostPort(r.RemoteAddr)
			fields := []zap.Field{
				zap.Any("request_id", r.Context().Value(requestID)),
				zap.Int("status_code", wideWriter.status),
				zap.Int("response_length", wideWriter.length),
				zap.Int64("content_length", r.ContentLength),
				zap.String("method", r.Method),
				zap.String("proto", r.Proto),
				zap.String("remote_addr", addr),
				zap.String("uri", r.RequestURI),
				zap.String("user_agent", r.UserAgent()),
				zap.Error(wideWriter.internalErr),
			}
			if wideWriter.status >= http.StatusInternalServerError {
				api.logger.Error("request failed", fields...)
				return
			}
			api.logger.Info("request received", fields...)
		},
	)
}

// corsMiddleware разрешает кросс-доменные запросы
// и отвечает на preflight-запросы.
func (api *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", api.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// headersMiddleware задает обычные заголовки для всех ответов.
func (api *API) headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// secHeadersMiddleware устанавливает строгие заголовки безопасности для всех ответов.
func (api *API) secHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "0")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; sandbox")
		next.ServeHTTP(w, r)
	})
}

// WriteServerError отвечает клиенту 500 с общим текстом.
// Сама ошибка попадает только в журнал.
func (api *API) WriteServerError(w http.ResponseWriter, err error) {
	if wrw, ok := w.(*wideResponseWriter); ok {
		wrw.internalErr = err
	}
	w.Header().Set("Content-Type", "text/plain;charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, msgServerError)
}

func (api *API) WriteJSON(w http.ResponseWriter, data any, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// writeStoreError переводит ошибку хранилища в ответ клиенту.
func (api *API) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidID):
		api.WriteJSON(w, Message{Msg: msgNotFound}, http.StatusNotFound)
	default:
		api.WriteServerError(w, err)
	}
}

func (api *API) handleCommentsList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		coms, err := api.repo.Comments(ctx)
		if err != nil {
			api.WriteServerError(w, err)
			return
		}
		if coms == nil {
			coms = []domain.Comment{}
		}

		api.WriteJSON(w, coms, http.StatusOK)
	}
}

func (api *API) handleCommentCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		req, err := decodeCreateRequest(r)
		if err != nil {
			api.WriteJSON(w, ValidationErrors{Errors: validation.Errors{
				{Msg: msgBadBody, Location: validation.LocationBody},
			}}, http.StatusBadRequest)
			return
		}

		if err := api.validator.Struct(&req); err != nil {
			var ves validation.Errors
			if !errors.As(err, &ves) {
				api.WriteServerError(w, err)
				return
			}
			api.WriteJSON(w, ValidationErrors{Errors: ves}, http.StatusBadRequest)
			return
		}

		c := domain.Comment{
			Name:    req.Name,
			Email:   req.Email,
			Comment: req.Comment,
		}

		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		if err := api.repo.Create(ctx, &c); err != nil {
			api.WriteServerError(w, err)
			return
		}

		api.WriteJSON(w, c, http.StatusOK)
	}
}

func (api *API) handleCommentDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		id := mux.Vars(r)["id"]

		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()

		if _, err := api.repo.Comment(ctx, id); err != nil {
			api.writeStoreError(w, err)
			return
		}

		if err := api.repo.Delete(ctx, id); err != nil {
			api.writeStoreError(w, err)
			return
		}

		api.WriteJSON(w, Message{Msg: msgDeleted}, http.StatusOK)
	}
}

// decodeCreateRequest читает тело запроса в формате JSON
// или application/x-www-form-urlencoded. Пустое тело
// равносильно пустому объекту.
func decodeCreateRequest(r *http.Request) (createRequest, error) {
	var req createRequest

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Name = r.PostForm.Get("name")
		req.Email = r.PostForm.Get("email")
		req.Comment = r.PostForm.Get("comment")
		return req, nil
	}

	// ключи сравниваются точно: json.Decoder в структуру
	// принял бы и "NAME", и "Comment"
	var fields map[string]json.RawMessage
	err := json.NewDecoder(r.Body).Decode(&fields)
	if errors.Is(err, io.EOF) {
		return req, nil
	}
	if err != nil {
		return req, err
	}

	for key, dst := range map[string]*string{
		"name":    &req.Name,
		"email":   &req.Email,
		"comment": &req.Comment,
	} {
		if raw, ok := fields[key]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return req, err
			}
		}
	}
	return req, nil
}
