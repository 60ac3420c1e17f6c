package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"foodorder-be/internal/logger"
	"foodorder-be/internal/order"
	"foodorder-be/internal/store"
	"foodorder-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const MaxBodyBytes = 1 << 20

var errForbidden = errors.New("forbidden")

type Handler struct {
	orders order.Service
	stores order.StoreOwnerLookup
}

func NewHandler(orders order.Service, stores order.StoreOwnerLookup) *Handler {
	return &Handler{orders: orders, stores: stores}
}

// RegisterRoutes mounts the order endpoints. All of them expect an
// authenticated user in the request context.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stores/{storeID}/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListStoreOrders)
		r.Get("/completed", h.ListCompletedStoreOrders)
	})
	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.GetOrder)
		r.Patch("/", h.UpdateOrderState)
	})
	r.Get("/me/orders", h.ListMyOrders)
	r.Post("/stats/meal/sales", h.MealSales)
}

type createOrderResponse struct {
	OrderID uint `json:"order_id"`
}

type updateStateRequest struct {
	State order.State `json:"state"`
}

type updateStateResponse struct {
	OrderID uint        `json:"order_id"`
	State   order.State `json:"state"`
}

type mealSalesRequest struct {
	MealIDs []uint `json:"meal_ids"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	storeID, ok := pathID(w, r, "storeID")
	if !ok {
		return
	}

	var req order.Request
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := h.orders.CreateOrder(r.Context(), actorID, storeID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, createOrderResponse{OrderID: id})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	o, err := h.orders.CheckedGetOrderWithDetails(r.Context(), actorID, orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) UpdateOrderState(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	var req updateStateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.orders.UpdateOrderState(r.Context(), actorID, orderID, req.State); err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updateStateResponse{OrderID: orderID, State: req.State})
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())

	orders, err := h.orders.GetOrdersByUser(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) ListStoreOrders(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.managedStore(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.GetOrdersByStore(r.Context(), storeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) ListCompletedStoreOrders(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.managedStore(w, r)
	if !ok {
		return
	}

	begin, err := time.Parse(time.RFC3339, r.URL.Query().Get("begin"))
	if err != nil {
		utils.WriteJSONError(w, "begin must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		utils.WriteJSONError(w, "end must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}
	if !end.After(begin) {
		utils.WriteJSONError(w, "end must be after begin", http.StatusBadRequest)
		return
	}

	orders, err := h.orders.GetCompletedOrdersByStoreAndTime(r.Context(), storeID, begin, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) MealSales(w http.ResponseWriter, r *http.Request) {
	var req mealSalesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sales, err := h.orders.MealSalesCount(r.Context(), req.MealIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sales)
}

// managedStore resolves the store in the path and checks that the caller
// owns it. Listings are scoped by store, so only its manager may read them.
func (h *Handler) managedStore(w http.ResponseWriter, r *http.Request) (uint, bool) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	storeID, ok := pathID(w, r, "storeID")
	if !ok {
		return 0, false
	}

	owner, err := h.stores.OwnerID(r.Context(), storeID)
	if err != nil {
		writeServiceError(w, r, err)
		return 0, false
	}
	if owner != actorID {
		writeServiceError(w, r, errForbidden)
		return 0, false
	}
	return storeID, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := utils.ToUint(chi.URLParam(r, name))
	if err != nil || id == 0 {
		utils.WriteJSONError(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logger.FromCtx(r.Context()).Warn("invalid request body", zap.Error(err))
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeServiceError maps domain errors to status codes. Unexpected errors
// are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case order.IsValidationError(err):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSONError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, store.ErrStoreNotFound):
		utils.WriteJSONError(w, "store not found", http.StatusNotFound)
	case errors.Is(err, errForbidden):
		utils.WriteJSONError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, order.ErrStateConflict):
		utils.WriteJSONError(w, "order state changed, retry", http.StatusConflict)
	default:
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("layer", "http"),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
