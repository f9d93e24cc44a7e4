package admins

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/RamiroMoyano/whatsapp-bot/database"
	"github.com/RamiroMoyano/whatsapp-bot/models"
	"github.com/RamiroMoyano/whatsapp-bot/utils"
)

// ForceAuto drops a customer back to automatic MENU mode, clearing any pending
// human handoff.
func ForceAuto(w http.ResponseWriter, r *http.Request) {
	from := normalizeWhatsAppNumber(mux.Vars(r)["from"])

	session, err := models.GetSession(database.DB, from)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error consultando la sesión"})
		return
	}
	session.State = models.StateMenu
	session.Data.HumanNotified = false
	if err := models.SaveSession(database.DB, session); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error guardando la sesión"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Sesión en modo automático"})
}
