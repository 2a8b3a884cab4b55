package handler

import (
	"net/http"

	"github.com/boddenberg/profile-bff-go/internal/form"
	"github.com/boddenberg/profile-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Form lifecycle
// ============================================================

func openProfileFormHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forms/profile")
		defer span.End()

		var req struct {
			CPF string `json:"cpf"`
		}
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}

		view, err := forms.OpenProfile(ctx, req.CPF)
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func openAddressFormHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forms/address")
		defer span.End()

		var req struct {
			CPF        string `json:"cpf"`
			AddressKey string `json:"addressKey"`
		}
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}

		view, err := forms.OpenAddress(ctx, req.CPF, req.AddressKey)
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		writeJSON(w, http.StatusCreated, view)
	}
}

func getFormHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/forms/{formId}")
		defer span.End()

		view, err := forms.Get(ctx, chi.URLParam(r, "formId"))
		respondView(w, view, err, logger)
	}
}

func closeFormHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/forms/{formId}")
		defer span.End()

		if err := forms.Close(ctx, chi.URLParam(r, "formId")); err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resetFormHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forms/{formId}/reset")
		defer span.End()

		view, err := forms.Reset(ctx, chi.URLParam(r, "formId"))
		respondView(w, view, err, logger)
	}
}

// ============================================================
// Field edits
// ============================================================

func setFieldHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/forms/{formId}/fields")
		defer span.End()

		var edit service.FieldEdit
		if err := decodeJSON(r, &edit); err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		span.SetAttributes(attribute.String("form.field", edit.Field))

		view, err := forms.SetField(ctx, chi.URLParam(r, "formId"), edit)
		respondView(w, view, err, logger)
	}
}

func focusPostalCodeHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forms/{formId}/entries/{entry}/postal-code/focus")
		defer span.End()

		entry, err := intParam(r, "entry")
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}

		view, err := forms.FocusPostalCode(ctx, chi.URLParam(r, "formId"), entry)
		respondView(w, view, err, logger)
	}
}

func changePostalCodeHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/forms/{formId}/entries/{entry}/postal-code")
		defer span.End()

		entry, err := intParam(r, "entry")
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}
		var req struct {
			Value string `json:"value"`
		}
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}

		view, err := forms.ChangePostalCode(ctx, chi.URLParam(r, "formId"), entry, req.Value)
		respondView(w, view, err, logger)
	}
}

// ============================================================
// Entries and accumulated addresses
// ============================================================

func addEntryHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forms/{formId}/entries")
		defer span.End()

		view, err := forms.AddEntry(ctx, chi.URLParam(r, "formId"))
		respondView(w, view, err, logger)
	}
}

func addAddressHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forms/{formId}/addresses")
		defer span.End()

		view, err := forms.AddAddress(ctx, chi.URLParam(r, "formId"))
		respondView(w, view, err, logger)
	}
}

func removeAddressHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/forms/{formId}/addresses/{index}")
		defer span.End()

		index, err := intParam(r, "index")
		if err != nil {
			handleServiceError(w, err, nil, logger)
			return
		}

		view, err := forms.RemoveAddress(ctx, chi.URLParam(r, "formId"), index)
		respondView(w, view, err, logger)
	}
}

// ============================================================
// Submission
// ============================================================

func submitFormHandler(forms *service.FormService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forms/{formId}/submit")
		defer span.End()

		id := chi.URLParam(r, "formId")
		result, err := forms.Submit(ctx, id)
		if err != nil {
			// Send the form back so the client can show the inline errors.
			var view any
			if v, getErr := forms.Get(ctx, id); getErr == nil {
				view = v
			}
			handleServiceError(w, err, view, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// respondView writes view, or the error with the form state it left behind.
func respondView(w http.ResponseWriter, view form.FormView, err error, logger *zap.Logger) {
	if err != nil {
		var body any
		if view.ID != "" {
			body = view
		}
		handleServiceError(w, err, body, logger)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
