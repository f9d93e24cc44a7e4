package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RamiroMoyano/whatsapp-bot/logger"
	"github.com/RamiroMoyano/whatsapp-bot/models"
)

// adminCommand is the closed set of management commands accepted over the
// message channel. Parsing happens once, into a typed variant; anything that
// doesn't parse is an explicit error reply, never a silent acknowledgement.
type adminCommand interface {
	isAdminCommand()
}

type cmdHelp struct{}
type cmdWhoami struct{}
type cmdCompanyList struct{}
type cmdCompanySet struct{ CompanyID, Target string }
type cmdAISet struct{ Mode, Target string }
type cmdAIStatus struct{ Target string }
type cmdOrders struct{ Filter string }
type cmdOrderShow struct{ ID string }
type cmdOrderStatus struct{ ID, Status string }
type cmdAuto struct{ Target string }

func (cmdHelp) isAdminCommand()        {}
func (cmdWhoami) isAdminCommand()      {}
func (cmdCompanyList) isAdminCommand() {}
func (cmdCompanySet) isAdminCommand()  {}
func (cmdAISet) isAdminCommand()       {}
func (cmdAIStatus) isAdminCommand()    {}
func (cmdOrders) isAdminCommand()      {}
func (cmdOrderShow) isAdminCommand()   {}
func (cmdOrderStatus) isAdminCommand() {}
func (cmdAuto) isAdminCommand()        {}

var (
	companySetPattern  = regexp.MustCompile(`^admin company set ([a-z0-9_-]+)(?:\s+(\S+))?$`)
	aiSetPattern       = regexp.MustCompile(`^admin ai set (off|lite|pro)(?:\s+(\S+))?$`)
	aiStatusPattern    = regexp.MustCompile(`^admin ai status(?:\s+(\S+))?$`)
	ordersPattern      = regexp.MustCompile(`^admin pedidos(?:\s+(hoy|pendientes|pagados|entregados))?$`)
	orderShowPattern   = regexp.MustCompile(`^admin pedido (ped-[a-z0-9]+)$`)
	orderStatusPattern = regexp.MustCompile(`^admin pedido (ped-[a-z0-9]+) (pagado|entregado|estado .+)$`)
	autoPattern        = regexp.MustCompile(`^admin auto(?:\s+(\S+))?$`)
)

// parseAdminCommand maps an already-normalized (lowercase, single-spaced)
// admin message to its typed variant.
func parseAdminCommand(cmd string) (adminCommand, bool) {
	switch cmd {
	case "admin", "admin ayuda", "admin help":
		return cmdHelp{}, true
	case "admin whoami":
		return cmdWhoami{}, true
	case "admin company list":
		return cmdCompanyList{}, true
	}
	if m := companySetPattern.FindStringSubmatch(cmd); m != nil {
		return cmdCompanySet{CompanyID: m[1], Target: m[2]}, true
	}
	if m := aiSetPattern.FindStringSubmatch(cmd); m != nil {
		return cmdAISet{Mode: m[1], Target: m[2]}, true
	}
	if m := aiStatusPattern.FindStringSubmatch(cmd); m != nil {
		return cmdAIStatus{Target: m[1]}, true
	}
	if m := ordersPattern.FindStringSubmatch(cmd); m != nil {
		return cmdOrders{Filter: m[1]}, true
	}
	if m := orderStatusPattern.FindStringSubmatch(cmd); m != nil {
		return cmdOrderStatus{ID: strings.ToUpper(m[1]), Status: m[2]}, true
	}
	if m := orderShowPattern.FindStringSubmatch(cmd); m != nil {
		return cmdOrderShow{ID: strings.ToUpper(m[1])}, true
	}
	if m := autoPattern.FindStringSubmatch(cmd); m != nil {
		return cmdAuto{Target: m[1]}, true
	}
	return nil, false
}

// resolveTarget fills an omitted target with the last customer seen.
func (d *Dispatcher) resolveTarget(target string) (string, string) {
	target = strings.TrimSpace(target)
	if target == "" {
		target = models.GetSetting(d.db, models.LastCustomerKey)
	}
	if target == "" {
		return "", "No tengo 'último cliente' todavía. Hacé que un cliente mande un mensaje primero."
	}
	return normalizeWhatsAppNumber(target), ""
}

func (d *Dispatcher) handleAdmin(from, cmd string) string {
	parsed, ok := parseAdminCommand(cmd)
	if !ok {
		return "Comando admin no reconocido. Escribí *admin ayuda*."
	}
	log := logger.L().Sugar()

	switch c := parsed.(type) {
	case cmdHelp:
		return adminHelpText()

	case cmdWhoami:
		return fmt.Sprintf("ADMIN OK: %s", from)

	case cmdCompanyList:
		companies, err := models.ListCompanies(d.db)
		if err != nil {
			log.Errorw("list companies failed", "error", err)
			return "Error consultando empresas."
		}
		if len(companies) == 0 {
			return "No hay empresas."
		}
		var b strings.Builder
		b.WriteString("📋 Empresas:")
		for _, c := range companies {
			fmt.Fprintf(&b, "\n• %s — %s", c.ID, c.Name)
		}
		return b.String()

	case cmdCompanySet:
		company, err := models.GetCompany(d.db, c.CompanyID)
		if err != nil {
			return fmt.Sprintf("No existe la empresa '%s'.", c.CompanyID)
		}
		target, errReply := d.resolveTarget(c.Target)
		if errReply != "" {
			return errReply
		}
		if err := models.AssignCompany(d.db, target, company.ID); err != nil {
			log.Errorw("assign company failed", "target", target, "error", err)
			return "Error guardando la asignación."
		}
		// Also mirror into the session so the change is visible even before
		// the customer's next message.
		s2, err := models.GetSession(d.db, target)
		if err == nil {
			s2.Data.CompanyID = company.ID
			if err := d.save(s2); err != nil {
				log.Warnw("mirror assignment into session failed", "target", target, "error", err)
			}
		}
		return fmt.Sprintf("🏢 Empresa para %s: %s (%s) ✅", target, company.ID, company.Name)

	case cmdAISet:
		target, errReply := d.resolveTarget(c.Target)
		if errReply != "" {
			return errReply
		}
		s2, err := models.GetSession(d.db, target)
		if err != nil {
			log.Errorw("load session failed", "target", target, "error", err)
			return "Error consultando la sesión."
		}
		s2.Data.AIMode = c.Mode
		if err := d.save(s2); err != nil {
			log.Errorw("save session failed", "target", target, "error", err)
			return "Error guardando la sesión."
		}
		return fmt.Sprintf("🤖 IA %s para %s", strings.ToUpper(c.Mode), target)

	case cmdAIStatus:
		target, errReply := d.resolveTarget(c.Target)
		if errReply != "" {
			return errReply
		}
		s2, err := models.GetSession(d.db, target)
		if err != nil {
			log.Errorw("load session failed", "target", target, "error", err)
			return "Error consultando la sesión."
		}
		return fmt.Sprintf("🤖 IA: %s (%d hoy)", strings.ToUpper(s2.Data.AIMode), s2.Data.AICount)

	case cmdOrders:
		filter := models.OrderFilter{Limit: 10}
		switch c.Filter {
		case "hoy":
			filter.Day = d.now().UTC().Format("2006-01-02")
		case "pendientes":
			filter.PaymentStatus = models.PaymentPending
		case "pagados":
			filter.PaymentStatus = models.PaymentPaid
		case "entregados":
			filter.OrderStatus = models.OrderDelivered
		}
		orders, err := models.ListOrders(d.db, filter)
		if err != nil {
			log.Errorw("list orders failed", "error", err)
			return "Error consultando pedidos."
		}
		if len(orders) == 0 {
			return "No hay pedidos."
		}
		var b strings.Builder
		b.WriteString("📦 Pedidos:")
		for _, o := range orders {
			fmt.Fprintf(&b, "\n• %s — $%s — %s (%s)", o.ID, formatMoney(o.Total), o.Name, o.OrderStatus)
		}
		return b.String()

	case cmdOrderShow:
		o, err := models.GetOrder(d.db, c.ID)
		if err != nil {
			return fmt.Sprintf("No existe el pedido '%s'.", c.ID)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "📦 %s\nEmpresa: %s\nCliente: %s\nNombre: %s\nContacto: %s", o.ID, o.CompanyID, o.FromNumber, o.Name, o.Contact)
		if o.Notes != "" {
			fmt.Fprintf(&b, "\nNotas: %s", o.Notes)
		}
		for _, l := range o.Lines() {
			fmt.Fprintf(&b, "\n• %s x%d — $%s", l.Name, l.Qty, formatMoney(l.Subtotal))
		}
		fmt.Fprintf(&b, "\nTotal: $%s\nPago: %s\nEstado: %s", formatMoney(o.Total), o.PaymentStatus, o.OrderStatus)
		return b.String()

	case cmdOrderStatus:
		if _, err := models.GetOrder(d.db, c.ID); err != nil {
			return fmt.Sprintf("No existe el pedido '%s'.", c.ID)
		}
		var err error
		var label string
		switch {
		case c.Status == "pagado":
			err = models.SetOrderPaid(d.db, c.ID)
			label = models.OrderPaid
		case c.Status == "entregado":
			err = models.SetOrderDelivered(d.db, c.ID)
			label = models.OrderDelivered
		default:
			label = strings.TrimSpace(strings.TrimPrefix(c.Status, "estado "))
			err = models.SetOrderStatus(d.db, c.ID, label)
		}
		if err != nil {
			log.Errorw("update order status failed", "order", c.ID, "error", err)
			return "Error actualizando el pedido."
		}
		return fmt.Sprintf("📦 Pedido %s → %s ✅", c.ID, label)

	case cmdAuto:
		target, errReply := d.resolveTarget(c.Target)
		if errReply != "" {
			return errReply
		}
		s2, err := models.GetSession(d.db, target)
		if err != nil {
			log.Errorw("load session failed", "target", target, "error", err)
			return "Error consultando la sesión."
		}
		s2.State = models.StateMenu
		s2.Data.HumanNotified = false
		if err := d.save(s2); err != nil {
			log.Errorw("save session failed", "target", target, "error", err)
			return "Error guardando la sesión."
		}
		return fmt.Sprintf("🤖 Modo automático para %s ✅", target)
	}

	return "Comando admin no reconocido. Escribí *admin ayuda*."
}
