package bot

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/RamiroMoyano/whatsapp-bot/logger"
	"github.com/RamiroMoyano/whatsapp-bot/models"
)

const fallbackReply = "No entendí 😅. Escribí: menu / catalogo / ayuda"

// Replier produces a free-text answer for one customer turn. history is the
// bounded conversation window, oldest first.
type Replier interface {
	Reply(ctx context.Context, company *models.Company, history []models.AIMessage, userText string) (string, error)
}

// Notifier pushes a human-readable event to the operator channel. Best effort;
// implementations swallow and log their own failures.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Config holds the dispatcher knobs read from the environment at boot.
type Config struct {
	AdminNumber   string
	LiteDailyCap  int
	ProDailyCap   int
	MinAIInterval time.Duration
}

// ConfigFromEnv builds a Config from env vars, falling back to the defaults
// the bot has always shipped with.
func ConfigFromEnv() Config {
	return Config{
		AdminNumber:   strings.TrimSpace(os.Getenv("ADMIN_NUMBER")),
		LiteDailyCap:  getenvInt("AI_LITE_DAILY_CAP", 40),
		ProDailyCap:   getenvInt("AI_PRO_DAILY_CAP", 120),
		MinAIInterval: time.Duration(getenvInt("AI_MIN_INTERVAL", 6)) * time.Second,
	}
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

const lockStripes = 64

// Dispatcher interprets one inbound message at a time per customer and emits
// exactly one reply. Turns for the same customer serialize on a striped mutex;
// the session row's version check covers concurrent writers in other
// processes.
type Dispatcher struct {
	db       *gorm.DB
	ai       Replier
	notifier Notifier
	cfg      Config
	now      func() time.Time

	locks [lockStripes]sync.Mutex
}

func New(db *gorm.DB, ai Replier, notifier Notifier, cfg Config) *Dispatcher {
	return &Dispatcher{db: db, ai: ai, notifier: notifier, cfg: cfg, now: time.Now}
}

func (d *Dispatcher) lock(from string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(from))
	return &d.locks[h.Sum32()%lockStripes]
}

func (d *Dispatcher) isAdmin(from string) bool {
	return d.cfg.AdminNumber != "" && from == d.cfg.AdminNumber
}

var addPattern = regexp.MustCompile(`^agregar\s+(\d+)$`)

var reservedKeywords = map[string]bool{
	"menu": true, "hola": true, "catalogo": true, "carrito": true,
	"checkout": true, "agregar": true, "pago": true, "pagar": true,
	"pagado": true, "confirmar": true, "cancelar": true, "ayuda": true,
	"humano": true, "asesor": true, "hablar con humano": true,
}

func isReserved(text string) bool {
	return reservedKeywords[text]
}

func isHumanTrigger(text string) bool {
	return text == "humano" || text == "asesor" || text == "hablar con humano"
}

// Handle processes one inbound (from, body) pair and returns the reply text.
// It never returns an error: every failure maps to a user-safe reply.
func (d *Dispatcher) Handle(ctx context.Context, from, body string) string {
	mu := d.lock(from)
	mu.Lock()
	defer mu.Unlock()

	body = strings.TrimSpace(body)
	text := strings.ToLower(body)
	cmd := strings.Join(strings.Fields(text), " ")

	log := logger.L().Sugar()

	// Remember who messaged last so admin commands can omit the target.
	if from != "" && !strings.HasPrefix(cmd, "admin") {
		if err := models.SetSetting(d.db, models.LastCustomerKey, from); err != nil {
			log.Warnw("save last customer failed", "error", err)
		}
	}

	session, err := models.GetSession(d.db, from)
	if err != nil {
		log.Errorw("load session failed", "from", from, "error", err)
		return fallbackReply
	}

	// Administrator assignment is the source of truth for the tenant; re-apply
	// it before anything else so reassignment lands on the very next message.
	if !strings.HasPrefix(cmd, "admin") {
		if cid, ok := models.AssignedCompanyID(d.db, from); ok {
			session.Data.CompanyID = cid
			if err := d.save(session); err != nil {
				log.Warnw("persist tenant override failed", "from", from, "error", err)
			}
		}
	}

	company := models.GetCompanySafe(d.db, session.Data.CompanyID)
	rules := company.Rules()

	// Human handoff.
	if isHumanTrigger(text) {
		if !rules.AllowHuman {
			return "Por ahora no hay atención humana disponible. Escribí *menu* para ver opciones."
		}
		if session.State == models.StateHuman && session.Data.HumanNotified {
			return "⏳ Un asesor ya fue notificado. Escribí *menu* para volver."
		}
		session.State = models.StateHuman
		session.Data.HumanNotified = true
		if err := d.save(session); err != nil {
			log.Errorw("save session failed", "from", from, "error", err)
			return fallbackReply
		}
		d.notifyAsync(fmt.Sprintf("🙋‍♂️ HUMANO SOLICITADO\nEmpresa: %s\nCliente: %s\nMensaje: %s", company.Name, from, body))
		return "✅ Listo. Un asesor fue notificado y te va a responder en breve.\n\nMientras tanto podés escribir *menu* para volver al bot."
	}

	// Exit handoff with menu/hola.
	if session.State == models.StateHuman && (text == "menu" || text == "hola") {
		session.State = models.StateMenu
		session.Data.HumanNotified = false
		if err := d.save(session); err != nil {
			log.Errorw("save session failed", "from", from, "error", err)
			return fallbackReply
		}
		return menuText(company)
	}

	// While escalated the bot stays quiet except for admin traffic.
	if session.State == models.StateHuman && !strings.HasPrefix(cmd, "admin") {
		return "⏳ Un asesor ya fue notificado. Escribí *menu* para volver."
	}

	// Admin command channel.
	if strings.HasPrefix(cmd, "admin") {
		if !d.isAdmin(from) {
			return "⛔ Comando restringido."
		}
		return d.handleAdmin(from, cmd)
	}

	if text == "menu" || text == "hola" {
		session.State = models.StateMenu
		session.Data.HumanNotified = false
		if err := d.save(session); err != nil {
			log.Errorw("save session failed", "from", from, "error", err)
			return fallbackReply
		}
		return menuText(company)
	}

	if text == "catalogo" {
		return catalogText(company)
	}

	if text == "carrito" {
		return cartText(company, session)
	}

	if m := addPattern.FindStringSubmatch(text); m != nil {
		id, _ := strconv.Atoi(m[1])
		item, ok := company.FindItem(id)
		if !ok {
			return "Ese producto no existe. Escribí catalogo y elegí una opción válida."
		}
		session.Cart = append(session.Cart, id)
		if err := d.save(session); err != nil {
			log.Errorw("save session failed", "from", from, "error", err)
			return fallbackReply
		}
		return fmt.Sprintf("✅ Agregado %s\n\n%s\n\nPara finalizar: checkout", item.Name, cartText(company, session))
	}

	// Customer reports a payment on their last order. A claim, not a verified
	// payment; the admin flips it to paid after checking.
	if text == "pago" || text == "pagar" || text == "pagado" {
		if session.LastOrderID == "" {
			return "No encuentro un pedido tuyo todavía. Escribí *menu* para empezar uno."
		}
		if err := models.MarkPaymentReported(d.db, session.LastOrderID); err != nil {
			log.Errorw("mark payment reported failed", "order", session.LastOrderID, "error", err)
			return fallbackReply
		}
		return fmt.Sprintf("🧾 Gracias! Registramos tu aviso de pago del pedido %s. Lo verificamos y te confirmamos.", session.LastOrderID)
	}

	if text == "cancelar" {
		session.ClearCheckout()
		session.State = models.StateMenu
		if err := d.save(session); err != nil {
			log.Errorw("save session failed", "from", from, "error", err)
			return fallbackReply
		}
		return "🗑️ Listo, cancelé el pedido en curso. Escribí *menu* para empezar de nuevo."
	}

	if text == "ayuda" {
		return helpText()
	}

	// Free text goes to the AI only from MENU and only for lite/pro customers.
	if (session.Data.AIMode == models.AIModeLite || session.Data.AIMode == models.AIModePro) &&
		session.State == models.StateMenu && !isReserved(text) {
		if reply, ok := d.aiTurn(ctx, session, company, from, body); ok {
			return reply
		}
	}

	if text == "checkout" {
		if len(session.Cart) == 0 {
			return "Carrito vacío."
		}
		session.State = models.StateAskName
		if err := d.save(session); err != nil {
			log.Errorw("save session failed", "from", from, "error", err)
			return fallbackReply
		}
		return "¿A nombre de quién va el pedido?"
	}

	if session.State == models.StateAskName && !isReserved(text) {
		session.Data.Name = body
		session.State = models.StateAskContact
		if err := d.save(session); err != nil {
			log.Errorw("save session failed", "from", from, "error", err)
			return fallbackReply
		}
		return "Pasame un contacto."
	}

	if session.State == models.StateAskContact && !isReserved(text) {
		session.Data.Contact = body
		return d.advanceCheckout(session, company, rules, models.StateAskContact)
	}

	if session.State == models.StateAskNotes && !isReserved(text) {
		if text != "no" {
			session.Data.Notes = body
		}
		return d.advanceCheckout(session, company, rules, models.StateAskNotes)
	}

	if session.State == models.StateAskAIMode && !isReserved(text) {
		switch text {
		case "no":
			session.Data.RequestedAIMode = "no"
		case models.AIModeLite, models.AIModePro:
			session.Data.RequestedAIMode = text
			session.Data.AIMode = text
		default:
			return "Respondé *no*, *lite* o *pro*."
		}
		return d.advanceCheckout(session, company, rules, models.StateAskAIMode)
	}

	if text == "confirmar" && session.State == models.StateReady {
		reply, err := d.finalizeOrder(session, company, from)
		if err != nil {
			log.Errorw("order confirmation failed", "from", from, "error", err)
			return "😅 No pude confirmar el pedido. Probá de nuevo en un momento."
		}
		return reply
	}

	if err := d.save(session); err != nil {
		log.Warnw("save session failed", "from", from, "error", err)
	}
	return fallbackReply
}

// advanceCheckout moves the checkout past the given state, skipping the
// optional steps the company's rules don't enable, and returns the prompt for
// the next step.
func (d *Dispatcher) advanceCheckout(session *models.Session, company *models.Company, rules models.Rules, after string) string {
	next := models.StateReady
	switch after {
	case models.StateAskContact:
		if rules.AskNotes {
			next = models.StateAskNotes
		} else if rules.AskAIMode {
			next = models.StateAskAIMode
		}
	case models.StateAskNotes:
		if rules.AskAIMode {
			next = models.StateAskAIMode
		}
	}
	session.State = next
	if err := d.save(session); err != nil {
		logger.L().Sugar().Errorw("save session failed", "from", session.FromNumber, "error", err)
		return fallbackReply
	}
	switch next {
	case models.StateAskNotes:
		return "¿Alguna aclaración para el pedido? Escribí *no* si no hace falta."
	case models.StateAskAIMode:
		return "¿Querés que te responda con IA las consultas libres? Respondé *no*, *lite* o *pro*."
	default:
		return fmt.Sprintf("Resumen:\n%s\nConfirmar: confirmar", cartText(company, session))
	}
}

// save persists the session; on a concurrent-write conflict it reloads the row
// to pick up the current version and re-applies this turn's state wholesale,
// so the last writer wins.
func (d *Dispatcher) save(session *models.Session) error {
	err := models.SaveSession(d.db, session)
	if err != models.ErrSessionConflict {
		return err
	}
	fresh, lerr := models.GetSession(d.db, session.FromNumber)
	if lerr != nil {
		return err
	}
	fresh.State = session.State
	fresh.Cart = session.Cart
	fresh.Data = session.Data
	fresh.LastOrderID = session.LastOrderID
	if serr := models.SaveSession(d.db, fresh); serr != nil {
		return serr
	}
	*session = *fresh
	return nil
}

// notifyAsync fires the operator notification without blocking the customer
// reply. The adapter enforces its own timeout.
func (d *Dispatcher) notifyAsync(text string) {
	if d.notifier == nil {
		return
	}
	go d.notifier.Notify(context.Background(), text)
}

// SetNow overrides the dispatcher clock in tests.
func (d *Dispatcher) SetNow(now func() time.Time) {
	d.now = now
}

// normalizeWhatsAppNumber coerces a bare phone number into the whatsapp:+N
// form the gateway uses as the sender id.
func normalizeWhatsAppNumber(target string) string {
	if strings.HasPrefix(target, "whatsapp:") {
		return target
	}
	if strings.HasPrefix(target, "+") {
		return "whatsapp:" + target
	}
	if allDigits(target) {
		return "whatsapp:+" + target
	}
	return target
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
