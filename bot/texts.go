package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RamiroMoyano/whatsapp-bot/models"
)

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func menuText(c *models.Company) string {
	return fmt.Sprintf("👋 Hola! Soy el asistente de %s\n• catalogo\n• carrito\n• checkout\n• humano", c.Name)
}

func catalogText(c *models.Company) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 %s", c.Name)
	for _, p := range c.Catalog() {
		fmt.Fprintf(&b, "\n%d) %s — $%s", p.ID, p.Name, formatMoney(p.Price))
	}
	return b.String()
}

// cartText renders the cart grouped by item in first-appearance order.
func cartText(c *models.Company, s *models.Session) string {
	if len(s.Cart) == 0 {
		return "🧺 Carrito vacío."
	}
	lines, total := priceCart(c, s.Cart)
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 %s", c.Name)
	for _, l := range lines {
		fmt.Fprintf(&b, "\n• %s x%d — $%s", l.Name, l.Qty, formatMoney(l.Subtotal))
	}
	fmt.Fprintf(&b, "\nTotal: $%s", formatMoney(total))
	return b.String()
}

func helpText() string {
	return strings.Join([]string{
		"ℹ️ Comandos:",
		"• menu — volver al inicio",
		"• catalogo — ver productos",
		"• agregar <n> — sumar al carrito",
		"• carrito — ver tu carrito",
		"• checkout — iniciar el pedido",
		"• confirmar — confirmar el pedido",
		"• cancelar — cancelar el pedido en curso",
		"• pago — avisar que pagaste",
		"• humano — hablar con un asesor",
	}, "\n")
}

func adminHelpText() string {
	return strings.Join([]string{
		"Comandos admin:",
		"• admin whoami",
		"• admin company list",
		"• admin company set <id> [numero]",
		"• admin ai set off|lite|pro [numero]",
		"• admin ai status [numero]",
		"• admin pedidos [hoy|pendientes|pagados|entregados]",
		"• admin pedido <id>",
		"• admin pedido <id> pagado|entregado|estado <texto>",
		"• admin auto [numero]",
	}, "\n")
}
