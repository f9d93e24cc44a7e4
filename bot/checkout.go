package bot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RamiroMoyano/whatsapp-bot/models"
)

// priceCart groups the cart by item id preserving first-appearance order and
// prices each group against the current catalog. Ids no longer in the catalog
// (edited mid-session) degrade to zero-price placeholder lines instead of
// failing the checkout.
func priceCart(c *models.Company, cart []int) ([]models.OrderLine, float64) {
	var order []int
	qty := map[int]int{}
	for _, id := range cart {
		if qty[id] == 0 {
			order = append(order, id)
		}
		qty[id]++
	}

	var lines []models.OrderLine
	var total float64
	for _, id := range order {
		name := "Producto"
		var unit float64
		if item, ok := c.FindItem(id); ok {
			name = item.Name
			unit = item.Price
		}
		sub := unit * float64(qty[id])
		total += sub
		lines = append(lines, models.OrderLine{ID: id, Name: name, Qty: qty[id], Unit: unit, Subtotal: sub})
	}
	return lines, total
}

// finalizeOrder turns a READY session into a persisted order, resets the
// session to MENU preserving AI mode and counters, and notifies the operator.
func (d *Dispatcher) finalizeOrder(session *models.Session, company *models.Company, from string) (string, error) {
	lines, total := priceCart(company, session.Cart)

	items, err := json.Marshal(session.Cart)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	detailed, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("encode detailed items: %w", err)
	}

	order := &models.Order{
		CreatedAt:         d.now().UTC(),
		FromNumber:        from,
		CompanyID:         company.ID,
		Name:              session.Data.Name,
		Contact:           session.Data.Contact,
		Notes:             session.Data.Notes,
		ItemsJSON:         string(items),
		ItemsDetailedJSON: string(detailed),
		Total:             total,
		PaymentStatus:     models.PaymentPending,
		OrderStatus:       models.OrderConfirmed,
	}
	if err := models.CreateOrder(d.db, order); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}

	session.ClearCheckout()
	session.State = models.StateMenu
	session.LastOrderID = order.ID
	if err := d.save(session); err != nil {
		return "", fmt.Errorf("reset session: %w", err)
	}

	d.notifyAsync(orderSummary(order, company, lines))

	return fmt.Sprintf("🎉 Pedido %s confirmado.\nTotal: $%s", order.ID, formatMoney(total)), nil
}

func orderSummary(o *models.Order, company *models.Company, lines []models.OrderLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 NUEVO PEDIDO %s\nEmpresa: %s\nCliente: %s\nNombre: %s\nContacto: %s", o.ID, company.Name, o.FromNumber, o.Name, o.Contact)
	if o.Notes != "" {
		fmt.Fprintf(&b, "\nNotas: %s", o.Notes)
	}
	for _, l := range lines {
		fmt.Fprintf(&b, "\n• %s x%d — $%s", l.Name, l.Qty, formatMoney(l.Subtotal))
	}
	fmt.Fprintf(&b, "\nTotal: $%s", formatMoney(o.Total))
	return b.String()
}
