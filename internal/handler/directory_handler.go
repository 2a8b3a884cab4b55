package handler

import (
	"net/http"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Profiles and addresses
// ============================================================

func listProfilesHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profiles")
		defer span.End()

		rows, err := dir.ListProfiles(ctx)
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": rows, "total": len(rows)})
	}
}

func deleteProfileHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/profiles/{cpf}")
		defer span.End()

		cpf := chi.URLParam(r, "cpf")
		logger.Info("delete requested",
			zap.String("resource", "profile"),
			zap.String("cpf", service.MaskCPF(cpf)),
			zap.String("subject", SubjectFromContext(ctx)),
		)
		if err := dir.DeleteProfile(ctx, cpf); err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Perfil excluído com sucesso", ID: cpf})
	}
}

func listAddressesHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/profiles/{cpf}/addresses")
		defer span.End()

		list, err := dir.ListAddresses(ctx, chi.URLParam(r, "cpf"))
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"addresses": list, "total": len(list)})
	}
}

func deleteAddressHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/profiles/{cpf}/addresses/{addressKey}")
		defer span.End()

		cpf, key := chi.URLParam(r, "cpf"), chi.URLParam(r, "addressKey")
		logger.Info("delete requested",
			zap.String("resource", "address"),
			zap.String("cpf", service.MaskCPF(cpf)),
			zap.String("address_key", key),
			zap.String("subject", SubjectFromContext(ctx)),
		)
		if err := dir.DeleteAddress(ctx, cpf, key); err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Endereço excluído com sucesso", ID: key})
	}
}

// ============================================================
// CEP lookup
// ============================================================

func postalCodeHandler(postal *service.PostalCodeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/postal-code/{code}")
		defer span.End()

		addr, err := postal.Lookup(ctx, chi.URLParam(r, "code"))
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		writeJSON(w, http.StatusOK, addr)
	}
}
