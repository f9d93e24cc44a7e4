package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/RamiroMoyano/whatsapp-bot/models"
)

func TestParseAdminCommandVariants(t *testing.T) {
	cases := []struct {
		in   string
		want adminCommand
	}{
		{"admin whoami", cmdWhoami{}},
		{"admin company list", cmdCompanyList{}},
		{"admin company set veterinaria_sm", cmdCompanySet{CompanyID: "veterinaria_sm"}},
		{"admin company set veterinaria_sm whatsapp:+549111", cmdCompanySet{CompanyID: "veterinaria_sm", Target: "whatsapp:+549111"}},
		{"admin ai set lite", cmdAISet{Mode: "lite"}},
		{"admin ai set off +549111", cmdAISet{Mode: "off", Target: "+549111"}},
		{"admin ai status", cmdAIStatus{}},
		{"admin pedidos", cmdOrders{}},
		{"admin pedidos hoy", cmdOrders{Filter: "hoy"}},
		{"admin pedido ped-abc123", cmdOrderShow{ID: "PED-ABC123"}},
		{"admin pedido ped-abc123 pagado", cmdOrderStatus{ID: "PED-ABC123", Status: "pagado"}},
		{"admin pedido ped-abc123 estado en camino", cmdOrderStatus{ID: "PED-ABC123", Status: "estado en camino"}},
		{"admin auto", cmdAuto{}},
		{"admin auto +549111", cmdAuto{Target: "+549111"}},
	}
	for _, tc := range cases {
		got, ok := parseAdminCommand(tc.in)
		if !ok {
			t.Fatalf("%q: expected parse, got none", tc.in)
		}
		if got != tc.want {
			t.Fatalf("%q: got %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestParseAdminCommandRejectsUnknown(t *testing.T) {
	for _, in := range []string{"admin frobnicate", "admin ai set turbo", "admin company", "adminwhoami"} {
		if _, ok := parseAdminCommand(in); ok {
			t.Fatalf("%q: expected rejection", in)
		}
	}
}

func TestUnknownAdminCommandGetsExplicitError(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	reply := d.Handle(context.Background(), testAdmin, "admin hacer magia")
	if !strings.Contains(reply, "no reconocido") {
		t.Fatalf("expected explicit error, got %q", reply)
	}
}

func TestAdminWhoami(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	reply := d.Handle(context.Background(), testAdmin, "admin whoami")
	if reply != "ADMIN OK: "+testAdmin {
		t.Fatalf("unexpected whoami reply: %q", reply)
	}
}

func TestAdminCompanySetDefaultsToLastCustomer(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	// no last customer yet
	reply := d.Handle(ctx, testAdmin, "admin company set veterinaria_sm")
	if !strings.Contains(reply, "último cliente") {
		t.Fatalf("expected missing-target reply, got %q", reply)
	}

	d.Handle(ctx, testCustomer, "hola")
	reply = d.Handle(ctx, testAdmin, "admin company set veterinaria_sm")
	if !strings.Contains(reply, testCustomer) || !strings.Contains(reply, "veterinaria_sm") {
		t.Fatalf("expected assignment ack, got %q", reply)
	}

	cid, ok := models.AssignedCompanyID(d.db, testCustomer)
	if !ok || cid != "veterinaria_sm" {
		t.Fatalf("expected persisted assignment, got %q %v", cid, ok)
	}

	// the very next customer message renders the new tenant
	if reply := d.Handle(ctx, testCustomer, "menu"); !strings.Contains(reply, "Veterinaria San Miguel") {
		t.Fatalf("expected new tenant menu, got %q", reply)
	}
}

func TestAdminCompanySetUnknownCompany(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	reply := d.Handle(context.Background(), testAdmin, "admin company set fantasma")
	if !strings.Contains(reply, "No existe la empresa") {
		t.Fatalf("expected not-found reply, got %q", reply)
	}
}

func TestAdminAISetAndStatus(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "hola")
	if reply := d.Handle(ctx, testAdmin, "admin ai set pro"); !strings.Contains(reply, "IA PRO") {
		t.Fatalf("expected set ack, got %q", reply)
	}

	session, _ := models.GetSession(d.db, testCustomer)
	if session.Data.AIMode != models.AIModePro {
		t.Fatalf("expected pro mode persisted, got %q", session.Data.AIMode)
	}

	if reply := d.Handle(ctx, testAdmin, "admin ai status"); !strings.Contains(reply, "PRO") {
		t.Fatalf("expected status, got %q", reply)
	}
}

func TestAdminTargetNormalization(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testAdmin, "admin ai set lite 5491155554444")

	session, err := models.GetSession(d.db, "whatsapp:+5491155554444")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Data.AIMode != models.AIModeLite {
		t.Fatalf("expected lite for normalized number, got %q", session.Data.AIMode)
	}
}

func TestAdminOrderLifecycle(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "agregar 1")
	d.Handle(ctx, testCustomer, "checkout")
	d.Handle(ctx, testCustomer, "Ramiro")
	d.Handle(ctx, testCustomer, "ramiro@mail.com")
	d.Handle(ctx, testCustomer, "confirmar")
	notifier.waitOne(t)

	session, _ := models.GetSession(d.db, testCustomer)
	orderID := session.LastOrderID

	if reply := d.Handle(ctx, testAdmin, "admin pedidos"); !strings.Contains(reply, orderID) {
		t.Fatalf("expected order in list, got %q", reply)
	}
	if reply := d.Handle(ctx, testAdmin, "admin pedidos pendientes"); !strings.Contains(reply, orderID) {
		t.Fatalf("expected order among pending, got %q", reply)
	}
	if reply := d.Handle(ctx, testAdmin, "admin pedido "+strings.ToLower(orderID)); !strings.Contains(reply, "Ramiro") {
		t.Fatalf("expected order detail, got %q", reply)
	}

	if reply := d.Handle(ctx, testAdmin, "admin pedido "+strings.ToLower(orderID)+" pagado"); !strings.Contains(reply, "paid") {
		t.Fatalf("expected paid transition, got %q", reply)
	}
	order, _ := models.GetOrder(d.db, orderID)
	if order.PaymentStatus != models.PaymentPaid || order.OrderStatus != models.OrderPaid {
		t.Fatalf("expected paid statuses, got %s / %s", order.PaymentStatus, order.OrderStatus)
	}

	d.Handle(ctx, testAdmin, "admin pedido "+strings.ToLower(orderID)+" entregado")
	order, _ = models.GetOrder(d.db, orderID)
	if order.OrderStatus != models.OrderDelivered || order.DeliveredAt == nil {
		t.Fatalf("expected delivered with timestamp, got %s %v", order.OrderStatus, order.DeliveredAt)
	}

	d.Handle(ctx, testAdmin, "admin pedido "+strings.ToLower(orderID)+" estado en camino")
	order, _ = models.GetOrder(d.db, orderID)
	if order.OrderStatus != "en camino" {
		t.Fatalf("expected free-text status, got %q", order.OrderStatus)
	}

	if reply := d.Handle(ctx, testAdmin, "admin pedido PED-NOEXIS"); !strings.Contains(reply, "No existe el pedido") {
		t.Fatalf("expected not-found reply, got %q", reply)
	}
}

func TestAdminAutoForcesMenu(t *testing.T) {
	d, _, notifier, _ := newTestDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, testCustomer, "humano")
	notifier.waitOne(t)

	if reply := d.Handle(ctx, testAdmin, "admin auto"); !strings.Contains(reply, "automático") {
		t.Fatalf("expected auto ack, got %q", reply)
	}
	session, _ := models.GetSession(d.db, testCustomer)
	if session.State != models.StateMenu || session.Data.HumanNotified {
		t.Fatalf("expected MENU with cleared flag, got %s %v", session.State, session.Data.HumanNotified)
	}
}
