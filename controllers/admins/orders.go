package admins

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/RamiroMoyano/whatsapp-bot/database"
	"github.com/RamiroMoyano/whatsapp-bot/models"
	"github.com/RamiroMoyano/whatsapp-bot/utils"
)

func orderFilterFromQuery(r *http.Request) models.OrderFilter {
	q := r.URL.Query()
	f := models.OrderFilter{
		Day:           strings.TrimSpace(q.Get("day")),
		PaymentStatus: strings.TrimSpace(q.Get("payment_status")),
		OrderStatus:   strings.TrimSpace(q.Get("order_status")),
		FromNumber:    strings.TrimSpace(q.Get("from")),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	return f
}

func ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := models.ListOrders(database.DB, orderFilterFromQuery(r))
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error consultando pedidos"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: orders})
}

func GetOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.ToUpper(mux.Vars(r)["id"])
	order, err := models.GetOrder(database.DB, id)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Pedido no encontrado"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: order})
}

// ExportOrders streams the filtered orders as CSV for the dashboard download.
func ExportOrders(w http.ResponseWriter, r *http.Request) {
	f := orderFilterFromQuery(r)
	if f.Limit == 0 {
		f.Limit = 1000
	}
	orders, err := models.ListOrders(database.DB, f)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error consultando pedidos"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pedidos.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "created_at", "company_id", "from_number", "name", "contact", "notes", "items", "total", "payment_status", "order_status", "delivered_at"})
	for _, o := range orders {
		delivered := ""
		if o.DeliveredAt != nil {
			delivered = o.DeliveredAt.UTC().Format("2006-01-02 15:04:05")
		}
		_ = cw.Write([]string{
			o.ID,
			o.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			o.CompanyID,
			o.FromNumber,
			o.Name,
			o.Contact,
			o.Notes,
			itemsSummary(o),
			strconv.FormatFloat(o.Total, 'f', -1, 64),
			o.PaymentStatus,
			o.OrderStatus,
			delivered,
		})
	}
	cw.Flush()
}

func itemsSummary(o models.Order) string {
	lines := o.Lines()
	if lines == nil {
		return o.ItemsJSON
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s x%d", l.Name, l.Qty))
	}
	return strings.Join(parts, "; ")
}

type orderStatusPayload struct {
	Status string `json:"status"`
}

// UpdateOrderStatus applies one status transition. "pagado" and "entregado"
// map to the canonical transitions; anything else is stored as free text.
func UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.ToUpper(mux.Vars(r)["id"])
	if _, err := models.GetOrder(database.DB, id); err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Pedido no encontrado"})
		return
	}

	var req orderStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}
	status := strings.TrimSpace(strings.ToLower(req.Status))
	if status == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "status es obligatorio"})
		return
	}

	var err error
	switch status {
	case "pagado", models.OrderPaid:
		err = models.SetOrderPaid(database.DB, id)
	case "entregado", models.OrderDelivered:
		err = models.SetOrderDelivered(database.DB, id)
	default:
		err = models.SetOrderStatus(database.DB, id, status)
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error actualizando el pedido"})
		return
	}

	order, _ := models.GetOrder(database.DB, id)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Pedido actualizado", Data: order})
}
