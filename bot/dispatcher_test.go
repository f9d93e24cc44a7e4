package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/RamiroMoyano/whatsapp-bot/models"
)

func TestAddToCartAccumulatesTotals(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "agregar 1")
	reply := d.Handle(ctx, testCustomer, "agregar 2")

	if !strings.Contains(reply, "Bot WhatsApp x2 — $200") {
		t.Fatalf("expected grouped line for item 1, got %q", reply)
	}
	if !strings.Contains(reply, "Bot Instagram x1 — $80") {
		t.Fatalf("expected line for item 2, got %q", reply)
	}
	if !strings.Contains(reply, "Total: $280") {
		t.Fatalf("expected total 280, got %q", reply)
	}
}

func TestAddUnknownItemLeavesCartUntouched(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "agregar 1")
	reply := d.Handle(ctx, testCustomer, "agregar 99")
	if !strings.Contains(reply, "Ese producto no existe") {
		t.Fatalf("expected rejection, got %q", reply)
	}

	session, err := models.GetSession(d.db, testCustomer)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(session.Cart) != 1 || session.Cart[0] != 1 {
		t.Fatalf("expected cart [1], got %v", session.Cart)
	}
}

func TestMenuIsIdempotent(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "agregar 1")
	first := d.Handle(ctx, testCustomer, "menu")
	second := d.Handle(ctx, testCustomer, "menu")

	if first != second {
		t.Fatalf("menu replies differ: %q vs %q", first, second)
	}
	if !strings.Contains(first, "Babystepsbots") {
		t.Fatalf("expected tenant name in menu, got %q", first)
	}

	session, err := models.GetSession(d.db, testCustomer)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(session.Cart) != 1 {
		t.Fatalf("menu must not touch the cart, got %v", session.Cart)
	}
}

func TestConfirmRoundTrip(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)
	ctx := context.Background()

	// customer has lite AI on; it must survive the order
	s, _ := models.GetSession(d.db, testCustomer)
	s.Data.AIMode = models.AIModeLite
	if err := models.SaveSession(d.db, s); err != nil {
		t.Fatalf("save session: %v", err)
	}

	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "agregar 2")
	if reply := d.Handle(ctx, testCustomer, "checkout"); !strings.Contains(reply, "nombre de quién") {
		t.Fatalf("expected name prompt, got %q", reply)
	}
	d.Handle(ctx, testCustomer, "Ramiro")
	if reply := d.Handle(ctx, testCustomer, "ramiro@mail.com"); !strings.Contains(reply, "Resumen") {
		t.Fatalf("expected summary, got %q", reply)
	}

	reply := d.Handle(ctx, testCustomer, "confirmar")
	if !strings.Contains(reply, "confirmado") || !strings.Contains(reply, "Total: $280") {
		t.Fatalf("expected confirmation with total 280, got %q", reply)
	}

	session, err := models.GetSession(d.db, testCustomer)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(session.Cart) != 0 {
		t.Fatalf("expected empty cart after confirm, got %v", session.Cart)
	}
	if session.State != models.StateMenu {
		t.Fatalf("expected MENU after confirm, got %s", session.State)
	}
	if session.Data.AIMode != models.AIModeLite {
		t.Fatalf("aiMode must survive the order, got %q", session.Data.AIMode)
	}
	if session.LastOrderID == "" || !strings.HasPrefix(session.LastOrderID, "PED-") {
		t.Fatalf("expected last order id, got %q", session.LastOrderID)
	}

	order, err := models.GetOrder(d.db, session.LastOrderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Total != 280 {
		t.Fatalf("expected total 280, got %v", order.Total)
	}
	lines := order.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if lines[0].ID != 1 || lines[0].Qty != 2 || lines[0].Subtotal != 200 {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if lines[1].ID != 2 || lines[1].Qty != 1 || lines[1].Subtotal != 80 {
		t.Fatalf("unexpected second line: %+v", lines[1])
	}

	if msg := notifier.waitOne(t); !strings.Contains(msg, "NUEVO PEDIDO") {
		t.Fatalf("expected order notification, got %q", msg)
	}
}

func TestCheckoutWithEmptyCartNeverTransitions(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.Handle(ctx, testCustomer, "checkout")
	if reply != "Carrito vacío." {
		t.Fatalf("expected empty cart reply, got %q", reply)
	}
	session, _ := models.GetSession(d.db, testCustomer)
	if session.State != models.StateMenu {
		t.Fatalf("expected MENU, got %s", session.State)
	}
}

func TestTenantOverrideAppliesOnNextMessage(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	// prime a session cached on the default tenant
	reply := d.Handle(ctx, testCustomer, "menu")
	if !strings.Contains(reply, "Babystepsbots") {
		t.Fatalf("expected default tenant menu, got %q", reply)
	}

	if err := models.AssignCompany(d.db, testCustomer, "veterinaria_sm"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	reply = d.Handle(ctx, testCustomer, "menu")
	if !strings.Contains(reply, "Veterinaria San Miguel") {
		t.Fatalf("expected reassigned tenant menu, got %q", reply)
	}
}

func TestHumanHandoffNotifiesExactlyOnce(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.Handle(ctx, testCustomer, "humano")
	if !strings.Contains(reply, "asesor fue notificado") {
		t.Fatalf("expected handoff ack, got %q", reply)
	}
	if msg := notifier.waitOne(t); !strings.Contains(msg, "HUMANO SOLICITADO") {
		t.Fatalf("expected handoff notification, got %q", msg)
	}

	reply = d.Handle(ctx, testCustomer, "sigo esperando")
	if !strings.Contains(reply, "ya fue notificado") {
		t.Fatalf("expected waiting reply, got %q", reply)
	}
	reply = d.Handle(ctx, testCustomer, "asesor")
	if !strings.Contains(reply, "ya fue notificado") {
		t.Fatalf("expected already-notified reply, got %q", reply)
	}
	notifier.assertNone(t)

	reply = d.Handle(ctx, testCustomer, "menu")
	if !strings.Contains(reply, "Hola! Soy el asistente") {
		t.Fatalf("expected menu after exit, got %q", reply)
	}
	session, _ := models.GetSession(d.db, testCustomer)
	if session.State != models.StateMenu || session.Data.HumanNotified {
		t.Fatalf("expected MENU with cleared flag, got %s %v", session.State, session.Data.HumanNotified)
	}
}

func TestUnauthorizedAdminIsRejected(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	reply := d.Handle(ctx, testCustomer, "admin pedidos")
	if reply != "⛔ Comando restringido." {
		t.Fatalf("expected restricted reply, got %q", reply)
	}
}

func TestCancelClearsCartPreservingAICounters(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	s, _ := models.GetSession(d.db, testCustomer)
	s.Data.AIMode = models.AIModePro
	s.Data.AICount = 7
	s.Data.AICountDate = "2026-03-10"
	if err := models.SaveSession(d.db, s); err != nil {
		t.Fatalf("save session: %v", err)
	}

	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "checkout")
	d.Handle(ctx, testCustomer, "Ramiro")
	reply := d.Handle(ctx, testCustomer, "cancelar")
	if !strings.Contains(reply, "cancelé") {
		t.Fatalf("expected cancel ack, got %q", reply)
	}

	session, _ := models.GetSession(d.db, testCustomer)
	if len(session.Cart) != 0 || session.State != models.StateMenu {
		t.Fatalf("expected empty cart in MENU, got %v %s", session.Cart, session.State)
	}
	if session.Data.Name != "" {
		t.Fatalf("expected transient fields cleared, got name %q", session.Data.Name)
	}
	if session.Data.AIMode != models.AIModePro || session.Data.AICount != 7 {
		t.Fatalf("AI counters must survive cancel, got %q %d", session.Data.AIMode, session.Data.AICount)
	}
}

func TestPaymentReportMarksLastOrder(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)
	ctx := context.Background()

	if reply := d.Handle(ctx, testCustomer, "pago"); !strings.Contains(reply, "No encuentro un pedido") {
		t.Fatalf("expected no-order reply, got %q", reply)
	}

	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "checkout")
	d.Handle(ctx, testCustomer, "Ramiro")
	d.Handle(ctx, testCustomer, "ramiro@mail.com")
	d.Handle(ctx, testCustomer, "confirmar")
	notifier.waitOne(t)

	session, _ := models.GetSession(d.db, testCustomer)
	reply := d.Handle(ctx, testCustomer, "pagado")
	if !strings.Contains(reply, session.LastOrderID) {
		t.Fatalf("expected ack naming the order, got %q", reply)
	}

	order, err := models.GetOrder(d.db, session.LastOrderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.PaymentStatus != models.PaymentReported || order.OrderStatus != models.OrderReported {
		t.Fatalf("expected payment_reported, got %s / %s", order.PaymentStatus, order.OrderStatus)
	}
}

func TestCatalogEditMidSessionDegradesToPlaceholder(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "agregar 2")
	d.Handle(ctx, testCustomer, "agregar 1")

	// item 2 disappears from the catalog before confirmation
	err := d.db.Model(&models.Company{}).Where("id = ?", "babystepsbots").
		Update("catalog_json", `[{"id":1,"name":"Bot WhatsApp","price":100}]`).Error
	if err != nil {
		t.Fatalf("edit catalog: %v", err)
	}

	d.Handle(ctx, testCustomer, "checkout")
	d.Handle(ctx, testCustomer, "Ramiro")
	d.Handle(ctx, testCustomer, "ramiro@mail.com")
	reply := d.Handle(ctx, testCustomer, "confirmar")
	if !strings.Contains(reply, "Total: $100") {
		t.Fatalf("expected stale item priced at zero, got %q", reply)
	}
	notifier.waitOne(t)

	session, _ := models.GetSession(d.db, testCustomer)
	order, err := models.GetOrder(d.db, session.LastOrderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	lines := order.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if lines[0].ID != 2 || lines[0].Name != "Producto" || lines[0].Unit != 0 {
		t.Fatalf("expected placeholder line for stale item, got %+v", lines[0])
	}
}

func TestReservedWordNotRecordedAsCheckoutAnswer(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "checkout")

	// a reserved keyword while in ASK_NAME serves its own branch
	reply := d.Handle(ctx, testCustomer, "carrito")
	if !strings.Contains(reply, "Bot WhatsApp") {
		t.Fatalf("expected cart text, got %q", reply)
	}
	session, _ := models.GetSession(d.db, testCustomer)
	if session.State != models.StateAskName || session.Data.Name != "" {
		t.Fatalf("reserved word must not advance checkout, got %s %q", session.State, session.Data.Name)
	}
}

func TestOptionalCheckoutStepsFollowCompanyRules(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)
	ctx := context.Background()

	err := d.db.Model(&models.Company{}).Where("id = ?", "babystepsbots").
		Update("rules_json", `{"tone":"comercial","allowHuman":true,"askNotes":true,"askAiMode":true}`).Error
	if err != nil {
		t.Fatalf("edit rules: %v", err)
	}

	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "checkout")
	d.Handle(ctx, testCustomer, "Ramiro")
	if reply := d.Handle(ctx, testCustomer, "ramiro@mail.com"); !strings.Contains(reply, "aclaración") {
		t.Fatalf("expected notes prompt, got %q", reply)
	}
	if reply := d.Handle(ctx, testCustomer, "Entregar por la tarde"); !strings.Contains(reply, "IA") {
		t.Fatalf("expected AI mode prompt, got %q", reply)
	}

	// only no/lite/pro accepted, anything else re-prompts without advancing
	if reply := d.Handle(ctx, testCustomer, "si dale"); reply != "Respondé *no*, *lite* o *pro*." {
		t.Fatalf("expected re-prompt, got %q", reply)
	}
	if reply := d.Handle(ctx, testCustomer, "lite"); !strings.Contains(reply, "Resumen") {
		t.Fatalf("expected summary after answer, got %q", reply)
	}

	d.Handle(ctx, testCustomer, "confirmar")
	notifier.waitOne(t)

	session, _ := models.GetSession(d.db, testCustomer)
	if session.Data.AIMode != models.AIModeLite {
		t.Fatalf("expected lite mode granted, got %q", session.Data.AIMode)
	}
	order, err := models.GetOrder(d.db, session.LastOrderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Notes != "Entregar por la tarde" {
		t.Fatalf("expected notes on the order, got %q", order.Notes)
	}
}

func TestUnknownInputFallsBackToHint(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	reply := d.Handle(context.Background(), testCustomer, "qué onda")
	if reply != fallbackReply {
		t.Fatalf("expected fallback hint, got %q", reply)
	}
}
