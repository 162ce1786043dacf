// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lastseen/internal/model"
)

// PresenceServiceInterface はプレゼンスハンドラーが必要とするサービスインターフェース。
// activity.Serviceの部分集合として定義する。
type PresenceServiceInterface interface {
	IsUserOnline(ctx context.Context, userID string) (bool, error)
	LastSeen(ctx context.Context, userID string) (*time.Duration, error)
	UserPresence(ctx context.Context, userID string) (bool, *time.Duration, error)
	OnlineUsers(ctx context.Context) ([]string, error)
	OnlineCount(ctx context.Context) (int, error)
	OnlineCountWithinPeriod(ctx context.Context, minutes int) (int, error)
	UserActivity(ctx context.Context, userID string) (*model.ActivityRecord, error)
	UserActivities(ctx context.Context, userID string, limit int) ([]*model.ActivityRecord, error)
	IsSessionActive(ctx context.Context, sessionID string) (bool, error)
}

// PresenceHandler はオンライン状態照会のHTTPハンドラー。
type PresenceHandler struct {
	service PresenceServiceInterface
}

// NewPresenceHandler はPresenceHandlerを生成する。
func NewPresenceHandler(service PresenceServiceInterface) *PresenceHandler {
	return &PresenceHandler{
		service: service,
	}
}

// userPresenceResponse はユーザーのオンライン状態レスポンス。
// LastSeenSecondsは最終アクセスからの経過秒数で、未記録の場合はnull。
type userPresenceResponse struct {
	UserID          string   `json:"user_id"`
	Online          bool     `json:"online"`
	LastSeenSeconds *float64 `json:"last_seen_seconds"`
}

// activityResponse はアクティビティレコードのレスポンス。
type activityResponse struct {
	UserID       string    `json:"user_id,omitempty"`
	SessionID    string    `json:"session_id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	RouteLabel   string    `json:"route_label"`
	URL          string    `json:"url"`
	LastActivity time.Time `json:"last_activity"`
}

// onlineUsersResponse はオンラインユーザー一覧のレスポンス。
type onlineUsersResponse struct {
	UserIDs []string `json:"user_ids"`
	Count   int      `json:"count"`
}

// onlineCountResponse はオンラインユーザー数のレスポンス。
type onlineCountResponse struct {
	Count   int `json:"count"`
	Minutes int `json:"minutes,omitempty"`
}

// sessionActiveResponse はセッションのアクティブ状態レスポンス。
type sessionActiveResponse struct {
	SessionID string `json:"session_id"`
	Active    bool   `json:"active"`
}

// GetUserPresence はユーザーのオンライン状態と最終アクセスを返す。
// GET /api/presence/users/{id}
func (h *PresenceHandler) GetUserPresence(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	online, lastSeen, err := h.service.UserPresence(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := userPresenceResponse{
		UserID: userID,
		Online: online,
	}
	if lastSeen != nil {
		sec := lastSeen.Seconds()
		resp.LastSeenSeconds = &sec
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// GetUserActivity はユーザーの最新アクティビティを返す。
// GET /api/presence/users/{id}/activity
func (h *PresenceHandler) GetUserActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	record, err := h.service.UserActivity(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if record == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toActivityResponse(record))
}

// ListUserActivities はユーザーのアクティビティ一覧を返す。
// GET /api/presence/users/{id}/activities?limit=N
func (h *PresenceHandler) ListUserActivities(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidLimitError(n))
			return
		}
		limit = n
	}

	records, err := h.service.UserActivities(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resps := make([]activityResponse, len(records))
	for i, record := range records {
		resps[i] = toActivityResponse(record)
	}

	writeJSONResponse(w, http.StatusOK, resps)
}

// ListOnlineUsers は現在オンラインのユーザーID一覧を返す。
// GET /api/presence/online
func (h *PresenceHandler) ListOnlineUsers(w http.ResponseWriter, r *http.Request) {
	userIDs, err := h.service.OnlineUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if userIDs == nil {
		userIDs = []string{}
	}

	writeJSONResponse(w, http.StatusOK, onlineUsersResponse{
		UserIDs: userIDs,
		Count:   len(userIDs),
	})
}

// GetOnlineCount はオンラインユーザー数を返す。
// minutesクエリパラメータで任意の期間を指定できる。
// GET /api/presence/online/count?minutes=N
func (h *PresenceHandler) GetOnlineCount(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("minutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMalformedPeriodError(v))
			return
		}
		count, err := h.service.OnlineCountWithinPeriod(r.Context(), minutes)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, onlineCountResponse{Count: count, Minutes: minutes})
		return
	}

	count, err := h.service.OnlineCount(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, onlineCountResponse{Count: count})
}

// GetSessionActive はセッションのアクティブ状態を返す。
// GET /api/presence/sessions/{id}
func (h *PresenceHandler) GetSessionActive(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	active, err := h.service.IsSessionActive(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, sessionActiveResponse{
		SessionID: sessionID,
		Active:    active,
	})
}

// toActivityResponse はドメインのActivityRecordをレスポンス型に変換する。
func toActivityResponse(record *model.ActivityRecord) activityResponse {
	return activityResponse{
		UserID:       record.UserID,
		SessionID:    record.SessionID,
		IPAddress:    record.IPAddress,
		UserAgent:    record.UserAgent,
		RouteLabel:   record.RouteLabel,
		URL:          record.URL,
		LastActivity: record.LastActivity,
	}
}

// apiErrorResponse はAPIエラーレスポンスのJSON形。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーはリポジトリ起因のためストレージ障害として扱う。
	// 詳細はログにのみ残し、レスポンスには含めない。
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewStorageFailureError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidPeriod, model.ErrCodeInvalidLimit, model.ErrCodeInvalidIdentity:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
