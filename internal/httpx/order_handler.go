package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
)

// orderHandler транслирует HTTP запросы в вызовы управляющего сервиса.
type orderHandler struct {
	service *orders.Service
	logger  *log.Entry
}

func newOrderHandler(service *orders.Service) *orderHandler {
	return &orderHandler{
		service: service,
		logger:  log.WithField("component", "order-handler"),
	}
}

type createOrderRequest struct {
	OrderID string `json:"orderId,omitempty"`
	UserID  string `json:"userId"`
	Status  string `json:"status,omitempty"`
	Items   []struct {
		ProductID   int64  `json:"productId"`
		ProductName string `json:"productName,omitempty"`
		Quantity    int32  `json:"quantity"`
		UnitPrice   string `json:"unitPrice"`
	} `json:"items"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type orderResponse struct {
	OrderID string              `json:"orderId"`
	UserID  string              `json:"userId"`
	Status  string              `json:"status"`
	Items   []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ProductID   int64  `json:"productId"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TotalAmount string `json:"totalAmount"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type updateStatusResponse struct {
	OrderID  string `json:"orderId"`
	Status   string `json:"status"`
	Affected int    `json:"affected"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// createOrder принимает заказ в асинхронную обработку и отвечает 202.
func (h *orderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request := domain.OrderRequest{
		OrderID: domain.BusinessOrderID(strings.TrimSpace(body.OrderID)),
		UserID:  strings.TrimSpace(body.UserID),
		Status:  body.Status,
		Items:   make([]domain.RequestItem, 0, len(body.Items)),
	}
	for _, item := range body.Items {
		price, err := decimal.NewFromString(strings.TrimSpace(item.UnitPrice))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid unit price")
			return
		}
		request.Items = append(request.Items, domain.RequestItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   price,
		})
	}

	orderID, err := h.service.CreateOrder(r.Context(), request)
	if err != nil {
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("create order failed")
		writeError(w, http.StatusServiceUnavailable, "failed to accept order")
		return
	}

	writeJSON(w, http.StatusAccepted, createOrderResponse{
		OrderID: string(orderID),
		Status:  "accepted",
	})
}

func (h *orderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := domain.BusinessOrderID(chi.URLParam(r, "orderID"))

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("get order failed")
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	userOrders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("list user orders failed")
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}

	response := make([]orderResponse, 0, len(userOrders))
	for _, order := range userOrders {
		response = append(response, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *orderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := domain.BusinessOrderID(chi.URLParam(r, "orderID"))

	var body updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(body.Status)))
	affected, err := h.service.UpdateStatus(r.Context(), orderID, status)
	if err != nil {
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("update status failed")
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	if affected == 0 {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, updateStatusResponse{
		OrderID:  string(orderID),
		Status:   string(status),
		Affected: affected,
	})
}

func (h *orderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := domain.BusinessOrderID(chi.URLParam(r, "orderID"))

	cancelled, err := h.service.CancelOrder(r.Context(), orderID)
	if err != nil {
		h.logger.WithError(err).WithField("order_id", orderID).Error("cancel order failed")
		writeError(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}
	if !cancelled {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toOrderResponse(order domain.LogicalOrder) orderResponse {
	response := orderResponse{
		OrderID: string(order.OrderID),
		UserID:  order.UserID,
		Status:  string(order.Status),
		Items:   make([]orderItemResponse, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		response.Items = append(response.Items, orderItemResponse{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.String(),
			TotalAmount: item.TotalAmount.String(),
		})
	}
	return response
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
