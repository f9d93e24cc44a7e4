package admins

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/RamiroMoyano/whatsapp-bot/database"
	"github.com/RamiroMoyano/whatsapp-bot/models"
	"github.com/RamiroMoyano/whatsapp-bot/utils"
)

type companyPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Prompt      string `json:"prompt"`
	CatalogJSON string `json:"catalog_json"`
	RulesJSON   string `json:"rules_json"`
}

func ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := models.ListCompanies(database.DB)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error consultando empresas"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: companies})
}

func GetCompany(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	company, err := models.GetCompany(database.DB, id)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Empresa no encontrada"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: company})
}

func CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req companyPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}

	id := strings.ToLower(strings.TrimSpace(req.ID))
	if !models.ValidCompanyID(id) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "ID inválido"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id
	}
	company := models.Company{
		ID:          id,
		Name:        name,
		Prompt:      "Sos el asistente de la empresa. Respondés acorde al manual de marca.",
		CatalogJSON: "[]",
		RulesJSON:   `{"tone":"neutral","allowHuman":true}`,
	}
	if req.Prompt != "" {
		company.Prompt = req.Prompt
	}
	if msg, ok := validateBlobs(req.CatalogJSON, req.RulesJSON); !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: msg})
		return
	}
	if req.CatalogJSON != "" {
		company.CatalogJSON = req.CatalogJSON
	}
	if req.RulesJSON != "" {
		company.RulesJSON = req.RulesJSON
	}

	if err := database.DB.Create(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "La empresa ya existe"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error creando la empresa"})
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Empresa creada", Data: company})
}

func UpdateCompany(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	company, err := models.GetCompany(database.DB, id)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Empresa no encontrada"})
		return
	}

	var req companyPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}
	if msg, ok := validateBlobs(req.CatalogJSON, req.RulesJSON); !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: msg})
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		company.Name = name
	}
	if req.Prompt != "" {
		company.Prompt = req.Prompt
	}
	if req.CatalogJSON != "" {
		company.CatalogJSON = req.CatalogJSON
	}
	if req.RulesJSON != "" {
		company.RulesJSON = req.RulesJSON
	}

	if err := database.DB.Save(company).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error guardando la empresa"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Empresa actualizada", Data: company})
}

func DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := models.GetCompany(database.DB, id); err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Empresa no encontrada"})
		return
	}
	// Sessions still pointing here fall back to the default tenant on their
	// next message.
	if err := database.DB.Delete(&models.Company{}, "id = ?", strings.ToLower(id)).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Error borrando la empresa"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Empresa borrada"})
}

// validateBlobs rejects catalog payloads that are not arrays and rules
// payloads that are not objects. Empty strings mean "leave untouched".
func validateBlobs(catalogJSON, rulesJSON string) (string, bool) {
	if catalogJSON != "" {
		if err := models.ValidateCatalogJSON(catalogJSON); err != nil {
			return fmt.Sprintf("Catalog JSON inválido: %v", err), false
		}
	}
	if rulesJSON != "" {
		if err := models.ValidateRulesJSON(rulesJSON); err != nil {
			return fmt.Sprintf("Rules JSON inválido: %v", err), false
		}
	}
	return "", true
}
