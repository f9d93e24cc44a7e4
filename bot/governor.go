package bot

import (
	"context"
	"errors"

	"github.com/RamiroMoyano/whatsapp-bot/ai"
	"github.com/RamiroMoyano/whatsapp-bot/logger"
	"github.com/RamiroMoyano/whatsapp-bot/models"
)

const (
	liteHistoryTurns = 6
	proHistoryTurns  = 20
)

// aiTurn runs the usage governor and, when allowed, the generative adapter.
// The second return is false when the dispatcher should fall through to the
// default branch instead of replying.
//
// Accounting rules: the daily counter rolls over lazily on the UTC date; a
// rate-limited turn consumes one unit of quota and refreshes the timestamp so
// rapid-fire messages burn budget instead of bypassing it; a failed adapter
// call is free.
func (d *Dispatcher) aiTurn(ctx context.Context, session *models.Session, company *models.Company, from, body string) (string, bool) {
	log := logger.L().Sugar()
	now := d.now().UTC()

	today := now.Format("2006-01-02")
	if session.Data.AICountDate != today {
		session.Data.AICountDate = today
		session.Data.AICount = 0
	}

	limit := d.cfg.LiteDailyCap
	if session.Data.AIMode == models.AIModePro {
		limit = d.cfg.ProDailyCap
	}
	if session.Data.AICount >= limit {
		if err := d.save(session); err != nil {
			log.Warnw("save session failed", "from", from, "error", err)
		}
		return "⚠️ Límite diario de IA alcanzado. Escribí humano.", true
	}

	if session.Data.LastAIAt > 0 && now.UnixMilli()-session.Data.LastAIAt < d.cfg.MinAIInterval.Milliseconds() {
		session.Data.AICount++
		session.Data.LastAIAt = now.UnixMilli()
		if err := d.save(session); err != nil {
			log.Warnw("save session failed", "from", from, "error", err)
		}
		return "🙂 Contame un poco más así te ayudo mejor.", true
	}

	turns := liteHistoryTurns
	if session.Data.AIMode == models.AIModePro {
		turns = proHistoryTurns
	}
	history, err := models.RecentAIMessages(d.db, from, turns)
	if err != nil {
		log.Warnw("load ai history failed", "from", from, "error", err)
		history = nil
	}

	reply, err := d.ai.Reply(ctx, company, history, body)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return "IA no disponible.", true
		}
		log.Warnw("ai reply failed", "from", from, "error", err)
		return "😅 Ahora no puedo responder eso. Escribí *menu* para ver opciones.", true
	}
	if reply == "" {
		return "", false
	}

	session.Data.AICount++
	session.Data.LastAIAt = now.UnixMilli()
	if err := d.save(session); err != nil {
		log.Warnw("save session failed", "from", from, "error", err)
	}
	if err := models.AppendAIMessage(d.db, from, "user", body); err != nil {
		log.Warnw("append ai message failed", "from", from, "error", err)
	}
	if err := models.AppendAIMessage(d.db, from, "assistant", reply); err != nil {
		log.Warnw("append ai message failed", "from", from, "error", err)
	}
	return reply, true
}
