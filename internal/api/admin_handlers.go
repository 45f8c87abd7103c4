package api

import (
	"encoding/json"
	"net/http"
	"time"

	"authgate/internal/auth/oidc"
	"authgate/internal/registration"
	"authgate/internal/storage"
)

const maskedSecret = "****"

// maskRecord replaces the stored (encrypted) client secret before a record
// leaves the API.
func maskRecord(rec *storage.RegistrationRecord) *storage.RegistrationRecord {
	masked := *rec
	if masked.Properties.ClientSecret != "" {
		masked.Properties.ClientSecret = maskedSecret
	}
	return &masked
}

// handleAdminListRegistrations returns all managed registrations with secrets masked.
// GET /api/v1/admin/registrations
func (s *Server) handleAdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := s.store.ListRegistrations(ctx)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	masked := make([]*storage.RegistrationRecord, len(records))
	for i, rec := range records {
		masked[i] = maskRecord(rec)
	}

	writeJSON(w, http.StatusOK, struct {
		Registrations []*storage.RegistrationRecord `json:"registrations"`
	}{Registrations: masked})
}

// handleAdminCreateRegistration creates a new managed registration.
// POST /api/v1/admin/registrations
func (s *Server) handleAdminCreateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input struct {
		ID         string                        `json:"id"`
		Properties registration.ClientProperties `json:"properties"`
		Enabled    bool                          `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if input.ID == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "id is required", "")
		return
	}
	if _, ok := s.repo.FindByRegistrationID(input.ID); ok {
		s.writeErr(ctx, w, http.StatusConflict, "registration id is bound in configuration", "")
		return
	}

	if input.Properties.ClientSecret != "" {
		if len(s.secretKey) == 0 {
			s.writeErr(ctx, w, http.StatusBadRequest, "client secrets require an encryption key", "")
			return
		}
		enc, err := oidc.EncryptSecret(input.Properties.ClientSecret, s.secretKey)
		if err != nil {
			s.writeErr(ctx, w, http.StatusInternalServerError, "failed to encrypt client secret", err.Error())
			return
		}
		input.Properties.ClientSecret = enc
	}

	now := time.Now().UTC()
	rec := &storage.RegistrationRecord{
		ID:         input.ID,
		Properties: input.Properties,
		Enabled:    input.Enabled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateRegistration(ctx, rec); err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	s.clientCache.Delete(rec.ID)

	attrs := appendRequestID(ctx, []any{"registration_id", rec.ID})
	s.logger.InfoContext(ctx, "registration created", attrs...)

	writeJSON(w, http.StatusCreated, maskRecord(rec))
}

// handleAdminGetRegistration returns a single managed registration with the secret masked.
// GET /api/v1/admin/registrations/{id}
func (s *Server) handleAdminGetRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	rec, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, maskRecord(rec))
}

// handleAdminUpdateRegistration partially updates a managed registration.
// PATCH /api/v1/admin/registrations/{id}
func (s *Server) handleAdminUpdateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	rec, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	var input struct {
		Properties *registration.ClientProperties `json:"properties"`
		Enabled    *bool                          `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if input.Properties != nil {
		props := *input.Properties
		switch props.ClientSecret {
		case "", maskedSecret:
			// Not supplied (or echoed back masked): keep the stored secret.
			props.ClientSecret = rec.Properties.ClientSecret
		default:
			if len(s.secretKey) == 0 {
				s.writeErr(ctx, w, http.StatusBadRequest, "client secrets require an encryption key", "")
				return
			}
			enc, encErr := oidc.EncryptSecret(props.ClientSecret, s.secretKey)
			if encErr != nil {
				s.writeErr(ctx, w, http.StatusInternalServerError, "failed to encrypt client secret", encErr.Error())
				return
			}
			props.ClientSecret = enc
		}
		rec.Properties = props
	}
	if input.Enabled != nil {
		rec.Enabled = *input.Enabled
	}

	rec.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateRegistration(ctx, rec); err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	// Invalidate the cached client so changes take effect.
	s.clientCache.Delete(id)

	attrs := appendRequestID(ctx, []any{"registration_id", id})
	s.logger.InfoContext(ctx, "registration updated", attrs...)

	writeJSON(w, http.StatusOK, maskRecord(rec))
}

// handleAdminDeleteRegistration removes a managed registration.
// DELETE /api/v1/admin/registrations/{id}
func (s *Server) handleAdminDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := s.store.DeleteRegistration(ctx, id); err != nil {
		s.writeStoreErr(ctx, w, err)
		return
	}

	s.clientCache.Delete(id)

	attrs := appendRequestID(ctx, []any{"registration_id", id})
	s.logger.InfoContext(ctx, "registration deleted", attrs...)

	w.WriteHeader(http.StatusNoContent)
}
