package admins

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/RamiroMoyano/whatsapp-bot/database"
	"github.com/RamiroMoyano/whatsapp-bot/logger"
	"github.com/RamiroMoyano/whatsapp-bot/models"
	"github.com/RamiroMoyano/whatsapp-bot/utils"
)

type assignmentPayload struct {
	FromNumber string `json:"from_number"`
	CompanyID  string `json:"company_id"`
}

func ListAssignments(w http.ResponseWriter, r *http.Request) {
	rows, err := models.ListAssignments(database.DB, 100)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error consultando asignaciones"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: rows})
}

func CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}

	from := normalizeWhatsAppNumber(strings.TrimSpace(req.FromNumber))
	companyID := strings.ToLower(strings.TrimSpace(req.CompanyID))
	if from == "" || companyID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "from_number y company_id son obligatorios"})
		return
	}
	if _, err := models.GetCompany(database.DB, companyID); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Empresa no existe"})
		return
	}

	if err := models.AssignCompany(database.DB, from, companyID); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error guardando la asignación"})
		return
	}

	// Mirror into the session so the dashboard change is visible even before
	// the customer's next message.
	if session, err := models.GetSession(database.DB, from); err == nil {
		session.Data.CompanyID = companyID
		if err := models.SaveSession(database.DB, session); err != nil {
			logger.L().Sugar().Warnw("mirror assignment into session failed", "from", from, "error", err)
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Asignación guardada"})
}

func DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	from := mux.Vars(r)["from"]
	if err := models.RemoveAssignment(database.DB, from); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error borrando la asignación"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Asignación borrada"})
}

func normalizeWhatsAppNumber(target string) string {
	if target == "" || strings.HasPrefix(target, "whatsapp:") {
		return target
	}
	if strings.HasPrefix(target, "+") {
		return "whatsapp:" + target
	}
	for _, r := range target {
		if r < '0' || r > '9' {
			return target
		}
	}
	return "whatsapp:+" + target
}
