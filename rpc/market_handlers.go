package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"farmmarket/crypto"
	"farmmarket/native/bank"
	"farmmarket/native/catalog"
	"farmmarket/native/market"
	"farmmarket/observability/eventlog"
	"farmmarket/storage"
)

const (
	codeMarketInvalidParams = -32021
	codeMarketNotFound      = -32022
	codeMarketForbidden     = -32023
	codeMarketConflict      = -32024
	codeMarketInternal      = -32025
)

type productListParams struct {
	Name      string `json:"name"`
	UnitPrice uint64 `json:"unitPrice"`
	Stock     uint64 `json:"stock"`
}

type productStockParams struct {
	ProductID string `json:"productId"`
	Stock     uint64 `json:"stock"`
}

type productIDParams struct {
	ProductID string `json:"productId"`
}

type orderCreateParams struct {
	ProductID     string `json:"productId"`
	Quantity      uint64 `json:"quantity"`
	DeadlineHours uint64 `json:"deadlineHours"`
	Payment       uint64 `json:"payment"`
}

type orderIDParams struct {
	OrderID string `json:"orderId"`
}

type disputeIDParams struct {
	DisputeID string `json:"disputeId"`
}

type proposeParams struct {
	DisputeID        string `json:"disputeId"`
	FarmerPercentage uint8  `json:"farmerPercentage"`
	BuyerPercentage  uint8  `json:"buyerPercentage"`
}

type acceptParams struct {
	DisputeID string `json:"disputeId"`
	OrderID   string `json:"orderId"`
}

type voteParams struct {
	DisputeID string `json:"disputeId"`
	VoteFor   bool   `json:"voteFor"`
}

type listProductsParams struct {
	Farmer string `json:"farmer,omitempty"`
}

type listOrdersParams struct {
	Buyer  string `json:"buyer,omitempty"`
	Farmer string `json:"farmer,omitempty"`
	Status string `json:"status,omitempty"`
}

type listDisputesParams struct {
	OrderID string `json:"orderId,omitempty"`
}

type listEventsParams struct {
	Types   []string `json:"types,omitempty"`
	OrderID string   `json:"orderId,omitempty"`
	After   uint64   `json:"after,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

type productJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice uint64 `json:"unitPrice"`
	Stock     uint64 `json:"stock"`
	Farmer    string `json:"farmer"`
	CreatedAt int64  `json:"createdAt"`
}

type orderJSON struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"productId"`
	Buyer      string  `json:"buyer"`
	Farmer     string  `json:"farmer"`
	Quantity   uint64  `json:"quantity"`
	TotalPrice uint64  `json:"totalPrice"`
	Escrowed   *uint64 `json:"escrowed,omitempty"`
	Deadline   int64   `json:"deadline"`
	CreatedAt  int64   `json:"createdAt"`
	Status     string  `json:"status"`
}

type disputeJSON struct {
	ID               string `json:"id"`
	OrderID          string `json:"orderId"`
	Buyer            string `json:"buyer"`
	Farmer           string `json:"farmer"`
	TotalAmount      uint64 `json:"totalAmount"`
	FarmerPercentage uint8  `json:"farmerPercentage"`
	BuyerPercentage  uint8  `json:"buyerPercentage"`
	Status           string `json:"status"`
	VotesFor         uint64 `json:"votesFor"`
	VotesAgainst     uint64 `json:"votesAgainst"`
	CreatedAt        int64  `json:"createdAt"`
}

type capJSON struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"createdAt"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func formatID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

func formatProductJSON(p *catalog.Product) productJSON {
	return productJSON{
		ID:        formatID(p.ID),
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Stock:     p.Stock,
		Farmer:    crypto.FormatAddress(p.Farmer),
		CreatedAt: p.CreatedAt,
	}
}

func formatOrderJSON(o *market.Order) orderJSON {
	return orderJSON{
		ID:         formatID(o.ID),
		ProductID:  formatID(o.ProductID),
		Buyer:      crypto.FormatAddress(o.Buyer),
		Farmer:     crypto.FormatAddress(o.Farmer),
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Deadline:   o.Deadline,
		CreatedAt:  o.CreatedAt,
		Status:     o.Status.String(),
	}
}

func formatDisputeJSON(d *market.Dispute) disputeJSON {
	return disputeJSON{
		ID:               formatID(d.ID),
		OrderID:          formatID(d.OrderID),
		Buyer:            crypto.FormatAddress(d.Buyer),
		Farmer:           crypto.FormatAddress(d.Farmer),
		TotalAmount:      d.TotalAmount,
		FarmerPercentage: d.FarmerPercentage,
		BuyerPercentage:  d.BuyerPercentage,
		Status:           d.Status.String(),
		VotesFor:         d.VotesFor,
		VotesAgainst:     d.VotesAgainst,
		CreatedAt:        d.CreatedAt,
	}
}

// decodeParams reads the single params object and rejects unknown fields.
func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected a single params object")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// decodeOptionalParams accepts an empty params list.
func decodeOptionalParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return decodeParams(req, dst)
}

func parseID(field, value string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return id, fmt.Errorf("%s required", field)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("%s: invalid hex: %w", field, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("%s: expected %d bytes, got %d", field, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func parseOptionalAddress(field, value string) (*[20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &addr, nil
}

func parseOrderStatus(value string) (market.OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return 0, nil
	case "escrowed":
		return market.OrderStatusEscrowed, nil
	case "disputed":
		return market.OrderStatusDisputed, nil
	default:
		return 0, fmt.Errorf("unknown order status %q", value)
	}
}

func writeInvalidParams(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeMarketInvalidParams, "invalid_params", err.Error())
}

func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeMarketInternal
	message := "internal_error"
	switch {
	case errors.Is(err, market.ErrProductNotFound),
		errors.Is(err, market.ErrOrderNotFound),
		errors.Is(err, market.ErrDisputeNotFound),
		errors.Is(err, market.ErrNotInitialized):
		status = http.StatusNotFound
		code = codeMarketNotFound
		message = "not_found"
	case errors.Is(err, market.ErrNotFarmer),
		errors.Is(err, market.ErrNotBuyer),
		errors.Is(err, market.ErrNotAuthorized):
		status = http.StatusForbidden
		code = codeMarketForbidden
		message = "forbidden"
	case errors.Is(err, market.ErrInvalidPercentage):
		status = http.StatusBadRequest
		code = codeMarketInvalidParams
		message = "invalid_params"
	case errors.Is(err, market.ErrInsufficientStock),
		errors.Is(err, market.ErrInsufficientPayment),
		errors.Is(err, market.ErrInvalidOrder),
		errors.Is(err, market.ErrDeadlineNotPassed),
		errors.Is(err, market.ErrDeadlinePassed),
		errors.Is(err, market.ErrAlreadyResolved),
		errors.Is(err, market.ErrAlreadyInitialized),
		errors.Is(err, bank.ErrInsufficientBalance),
		errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
		code = codeMarketConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, err.Error())
}

func (s *Server) handleListProduct(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	var params productListParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	product, err := s.engine.ListProduct(caller, params.Name, params.UnitPrice, params.Stock)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatProductJSON(product))
}

func (s *Server) handleUpdateStock(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	var params productStockParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseID("productId", params.ProductID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.UpdateStock(id, caller, params.Stock); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	var params productIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseID("productId", params.ProductID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.DeleteProduct(id, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	var params orderCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	productID, err := parseID("productId", params.ProductID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	order, err := s.engine.CreateOrder(caller, productID, params.Quantity, params.DeadlineHours, params.Payment)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	result := formatOrderJSON(order)
	escrowed := params.Payment
	result.Escrowed = &escrowed
	writeResult(w, req.ID, result)
}

func (s *Server) handleConfirmDelivery(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	id, ok := s.orderIDParam(w, req)
	if !ok {
		return
	}
	if err := s.engine.ConfirmDelivery(id, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleProcessExpiredOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	id, ok := s.orderIDParam(w, req)
	if !ok {
		return
	}
	if err := s.engine.ProcessExpiredOrder(id, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleCreateDispute(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	id, ok := s.orderIDParam(w, req)
	if !ok {
		return
	}
	dispute, err := s.engine.CreateDispute(id, caller)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatDisputeJSON(dispute))
}

func (s *Server) handleProposeCompensation(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	var params proposeParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseID("disputeId", params.DisputeID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.ProposeCompensation(id, caller, params.FarmerPercentage, params.BuyerPercentage); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleAcceptCompensation(w http.ResponseWriter, _ *http.Request, req *RPCRequest, caller [20]byte) {
	var params acceptParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	disputeID, err := parseID("disputeId", params.DisputeID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	orderID, err := parseID("orderId", params.OrderID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.AcceptCompensation(disputeID, orderID, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

// handleVoteOnDispute is open to anyone; votes are advisory.
func (s *Server) handleVoteOnDispute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params voteParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseID("disputeId", params.DisputeID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.VoteOnDispute(id, params.VoteFor); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	dispute, err := s.engine.Dispute(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatDisputeJSON(dispute))
}

func (s *Server) handleGetProduct(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params productIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseID("productId", params.ProductID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	product, err := s.engine.Product(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatProductJSON(product))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	id, ok := s.orderIDParam(w, req)
	if !ok {
		return
	}
	order, err := s.engine.Order(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	escrowed, err := s.engine.Escrowed(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	result := formatOrderJSON(order)
	result.Escrowed = &escrowed
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetDispute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params disputeIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseID("disputeId", params.DisputeID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	dispute, err := s.engine.Dispute(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatDisputeJSON(dispute))
}

func (s *Server) handleGetCap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	capability, err := s.engine.Cap()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, capJSON{
		ID:        formatID(capability.ID),
		Owner:     crypto.FormatAddress(capability.Owner),
		CreatedAt: capability.CreatedAt,
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listProductsParams
	if err := decodeOptionalParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	farmer, err := parseOptionalAddress("farmer", params.Farmer)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	products, err := s.engine.Products(farmer)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, formatProductJSON(p))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleListOrders(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listOrdersParams
	if err := decodeOptionalParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	var filter market.OrderFilter
	var err error
	if filter.Buyer, err = parseOptionalAddress("buyer", params.Buyer); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if filter.Farmer, err = parseOptionalAddress("farmer", params.Farmer); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if filter.Status, err = parseOrderStatus(params.Status); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	orders, err := s.engine.Orders(filter)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, formatOrderJSON(o))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleListDisputes(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listDisputesParams
	if err := decodeOptionalParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	var orderID *[32]byte
	if strings.TrimSpace(params.OrderID) != "" {
		id, err := parseID("orderId", params.OrderID)
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
		orderID = &id
	}
	disputes, err := s.engine.Disputes(orderID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	out := make([]disputeJSON, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, formatDisputeJSON(d))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeMarketInternal, "internal_error", "event journal disabled")
		return
	}
	var params listEventsParams
	if err := decodeOptionalParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if params.OrderID != "" {
		id, err := parseID("orderId", params.OrderID)
		if err != nil {
			writeInvalidParams(w, req.ID, err)
			return
		}
		params.OrderID = formatID(id)
	}
	entries, err := s.journal.List(r.Context(), eventlog.Query{
		Types:   params.Types,
		OrderID: params.OrderID,
		After:   params.After,
		Limit:   params.Limit,
	})
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if entries == nil {
		entries = []eventlog.Entry{}
	}
	writeResult(w, req.ID, entries)
}

func (s *Server) orderIDParam(w http.ResponseWriter, req *RPCRequest) ([32]byte, bool) {
	var params orderIDParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return [32]byte{}, false
	}
	id, err := parseID("orderId", params.OrderID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return [32]byte{}, false
	}
	return id, true
}
