package controllers

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"github.com/RamiroMoyano/whatsapp-bot/logger"
	"github.com/RamiroMoyano/whatsapp-bot/utils"
)

// MessageHandler is the dispatcher contract the webhook needs: one inbound
// (from, body) pair in, exactly one reply out.
type MessageHandler interface {
	Handle(ctx context.Context, from, body string) string
}

// twimlResponse is the carrier acknowledgement envelope. The gateway retries
// non-200 responses destructively, so the webhook always answers 200 with a
// message, even when the turn blew up internally.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	out, err := xml.Marshal(twimlResponse{Message: text})
	if err != nil {
		_, _ = w.Write([]byte("<Response><Message>OK</Message></Response>"))
		return
	}
	_, _ = w.Write(out)
}

// WhatsAppWebhook handles one carrier delivery. Duplicate deliveries of the
// same MessageSid are answered with an empty acknowledgement when Redis is
// available to remember seen sids.
func WhatsAppWebhook(h MessageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.L().Sugar()

		defer func() {
			if rec := recover(); rec != nil {
				log.Errorw("webhook panic", "panic", rec)
				writeTwiML(w, "😅 Tuvimos un problema. Escribí *menu* para seguir.")
			}
		}()

		if err := r.ParseForm(); err != nil {
			log.Warnw("webhook form parse failed", "error", err)
			writeTwiML(w, "😅 No pude leer tu mensaje. Probá de nuevo.")
			return
		}

		from := r.PostFormValue("From")
		if from == "" {
			from = "unknown"
		}
		body := r.PostFormValue("Body")

		if sid := r.PostFormValue("MessageSid"); sid != "" && seenMessageSid(r.Context(), sid) {
			log.Infow("duplicate webhook delivery", "sid", sid, "from", from)
			writeTwiML(w, "")
			return
		}

		writeTwiML(w, h.Handle(r.Context(), from, body))
	}
}

// seenMessageSid records the sid and reports whether it was already seen.
// Without Redis every delivery counts as new.
func seenMessageSid(ctx context.Context, sid string) bool {
	if utils.RedisClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok, err := utils.RedisClient.SetNX(ctx, "wa:sid:"+sid, "1", 24*time.Hour).Result()
	if err != nil {
		// redis outage must not drop customer messages
		return false
	}
	return !ok
}

// Health answers the liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK"})
}
