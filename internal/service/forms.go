package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/profile-bff-go/internal/domain"
	"github.com/boddenberg/profile-bff-go/internal/form"
	"github.com/boddenberg/profile-bff-go/internal/infra/observability"
	"github.com/boddenberg/profile-bff-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	msgPostalNotFound = "CEP não encontrado"
	msgPostalFailed   = "Não foi possível consultar o CEP. Tente novamente."
)

// PostalLookup resolves CEPs for form sessions.
type PostalLookup interface {
	Lookup(ctx context.Context, raw string) (*domain.PostalAddress, error)
}

// FieldEdit is one field write on a form. Entry selects the address entry
// for address fields and is ignored for top-level profile fields.
type FieldEdit struct {
	Entry    int    `json:"entry"`
	Field    string `json:"field"`
	Value    string `json:"value"`
	Override bool   `json:"override"`
}

// SubmitResult describes a completed submission.
type SubmitResult struct {
	FormID    string                 `json:"formId"`
	Kind      form.Kind              `json:"kind"`
	Mode      form.Mode              `json:"mode"`
	CPF       string                 `json:"cpf"`
	Profile   *domain.ProfileRecord  `json:"profile,omitempty"`
	Addresses []domain.AddressRecord `json:"addresses,omitempty"`
}

// SubmitHook runs after a successful submission.
type SubmitHook func(ctx context.Context, r SubmitResult)

// FormService hosts open form sessions. State transitions run under a
// per-session lock; postal-code lookups run outside it and are applied
// afterwards with the stale-response guard.
type FormService struct {
	sessions       port.SessionStore
	records        port.RecordStore
	directory      *DirectoryService
	postal         PostalLookup
	locks          *keyedLocks
	defaultCountry string
	hooks          []SubmitHook
	newID          func() string
	now            func() time.Time
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewFormService creates the form service.
func NewFormService(
	sessions port.SessionStore,
	records port.RecordStore,
	directory *DirectoryService,
	postal PostalLookup,
	defaultCountry string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *FormService {
	return &FormService{
		sessions:       sessions,
		records:        records,
		directory:      directory,
		postal:         postal,
		locks:          newKeyedLocks(),
		defaultCountry: defaultCountry,
		newID:          uuid.NewString,
		now:            time.Now,
		metrics:        metrics,
		logger:         logger,
	}
}

// OnSubmitted registers a completion hook.
func (s *FormService) OnSubmitted(h SubmitHook) {
	s.hooks = append(s.hooks, h)
}

// ============================================================
// Lifecycle
// ============================================================

// OpenProfile opens a profile form: create mode when cpf is empty,
// otherwise edit mode seeded from the stored profile.
func (s *FormService) OpenProfile(ctx context.Context, cpf string) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.OpenProfile")
	defer span.End()

	var initial *domain.ProfileRecord
	if cpf != "" {
		p, err := s.directory.LoadProfile(ctx, cpf)
		if err != nil {
			return form.FormView{}, err
		}
		initial = p
	}

	sess := form.NewProfileSession(s.newID(), initial, s.now())
	return s.open(ctx, sess)
}

// OpenAddress opens an address form for the owner cpf: create mode when
// key is empty, otherwise edit mode on the stored address.
func (s *FormService) OpenAddress(ctx context.Context, cpf, key string) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.OpenAddress")
	defer span.End()

	owner, err := normalizeCPF(cpf)
	if err != nil {
		return form.FormView{}, err
	}

	var initial *domain.AddressRecord
	if key != "" {
		owner, initial, err = s.directory.LoadAddress(ctx, owner, key)
		if err != nil {
			return form.FormView{}, err
		}
	}

	sess := form.NewAddressSession(s.newID(), owner, initial, s.now())
	return s.open(ctx, sess)
}

func (s *FormService) open(ctx context.Context, sess *form.Session) (form.FormView, error) {
	if err := s.sessions.Save(ctx, sess); err != nil {
		return form.FormView{}, fmt.Errorf("open form: %w", err)
	}
	s.metrics.FormOpened()
	s.logger.Debug("form opened",
		zap.String("form_id", sess.ID),
		zap.String("kind", string(sess.Kind)),
		zap.String("mode", string(sess.Mode())),
	)
	return form.View(sess), nil
}

// Get returns the current view of a form.
func (s *FormService) Get(ctx context.Context, id string) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.Get")
	defer span.End()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return form.FormView{}, err
	}
	return form.View(sess), nil
}

// Close discards a form without submitting it.
func (s *FormService) Close(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "FormService.Close")
	defer span.End()

	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.sessions.Get(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("close form: %w", err)
	}
	s.metrics.FormClosed()
	return nil
}

// Reset returns a form to the values it was opened with.
func (s *FormService) Reset(ctx context.Context, id string) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.Reset")
	defer span.End()

	return s.view(s.mutate(ctx, id, func(sess *form.Session) error {
		sess.Reset()
		return nil
	}))
}

// ============================================================
// Field edits
// ============================================================

// SetField writes one field. Postal-code edits go through ChangePostalCode.
func (s *FormService) SetField(ctx context.Context, id string, edit FieldEdit) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.SetField")
	defer span.End()
	span.SetAttributes(attribute.String("form.field", edit.Field))

	if f, ok := form.ParseField(edit.Field); ok && f == form.FieldPostalCode {
		return s.ChangePostalCode(ctx, id, edit.Entry, edit.Value)
	}

	return s.view(s.mutate(ctx, id, func(sess *form.Session) error {
		if sess.Kind == form.KindProfile && isProfileField(edit.Field) {
			return sess.Profile.SetField(edit.Field, edit.Value)
		}
		f, ok := form.ParseField(edit.Field)
		if !ok {
			return &domain.ErrValidation{Field: edit.Field, Message: "campo desconhecido"}
		}
		e, err := sess.EntryAt(edit.Entry)
		if err != nil {
			return err
		}
		return e.SetField(f, edit.Value, edit.Override)
	}))
}

func isProfileField(name string) bool {
	switch name {
	case "cpf", "name", "email", "phone":
		return true
	}
	return false
}

// FocusPostalCode records the CEP shown when its input gains focus.
func (s *FormService) FocusPostalCode(ctx context.Context, id string, entry int) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.FocusPostalCode")
	defer span.End()

	return s.view(s.mutate(ctx, id, func(sess *form.Session) error {
		e, err := sess.EntryAt(entry)
		if err != nil {
			return err
		}
		e.FocusPostalCode()
		if sess.Kind == form.KindProfile {
			sess.Profile.FocusPostalCode = false
		}
		return nil
	}))
}

// ChangePostalCode masks value into the entry and, when a lookup is due,
// runs it outside the session lock and applies the outcome. Lookup
// failures leave the entry unresolved and are reported in LastLookup.
func (s *FormService) ChangePostalCode(ctx context.Context, id string, entry int, value string) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.ChangePostalCode")
	defer span.End()

	var (
		req form.LookupRequest
		due bool
	)
	sess, err := s.mutate(ctx, id, func(sess *form.Session) error {
		e, err := sess.EntryAt(entry)
		if err != nil {
			return err
		}
		req, due = e.ChangePostalCode(value)
		return nil
	})
	if err != nil || !due {
		return s.view(sess, err)
	}
	span.SetAttributes(attribute.String("postal_code", req.Code))

	addr, lookupErr := s.postal.Lookup(ctx, req.Code)

	// The outcome is applied even if the caller went away, so the entry
	// does not stay pending.
	applyCtx := context.WithoutCancel(ctx)
	return s.view(s.mutate(applyCtx, id, func(sess *form.Session) error {
		e, err := sess.EntryAt(entry)
		if err != nil {
			s.metrics.IncrStaleLookup()
			return nil
		}
		if outcome := s.applyLookup(e, entry, req.Code, addr, lookupErr); outcome != nil {
			sess.LastLookup = outcome
		}
		return nil
	}))
}

// applyLookup feeds a lookup outcome into e. It returns nil when the
// outcome was stale and dropped.
func (s *FormService) applyLookup(e *form.AddressEntry, index int, code string, addr *domain.PostalAddress, lookupErr error) *form.LookupOutcome {
	outcome := &form.LookupOutcome{Entry: index, Code: code}
	applied := true

	var notFound *domain.ErrNotFound
	switch {
	case lookupErr == nil:
		applied = !errors.Is(e.ApplyLookup(code, *addr, s.defaultCountry), form.ErrStaleLookup)
		outcome.Status = form.LookupResolved
	case errors.As(lookupErr, &notFound):
		applied = e.FailLookup(code)
		outcome.Status = form.LookupNotFound
		outcome.Message = msgPostalNotFound
	default:
		applied = e.FailLookup(code)
		outcome.Status = form.LookupFailed
		outcome.Message = msgPostalFailed
	}

	if !applied {
		s.metrics.IncrStaleLookup()
		s.logger.Debug("stale postal code outcome dropped",
			zap.String("postal_code", code),
			zap.Int("entry", index),
		)
		return nil
	}
	return outcome
}

// ============================================================
// Entries and accumulated addresses
// ============================================================

// AddEntry appends an address entry to an address form.
func (s *FormService) AddEntry(ctx context.Context, id string) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.AddEntry")
	defer span.End()

	return s.view(s.mutate(ctx, id, func(sess *form.Session) error {
		if sess.Kind != form.KindAddress {
			return &domain.ErrValidation{Field: "entries", Message: "disponível apenas no formulário de endereço"}
		}
		_, err := sess.Address.AddEntry()
		return err
	}))
}

// AddAddress moves the profile form's entry into its accumulated list.
func (s *FormService) AddAddress(ctx context.Context, id string) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.AddAddress")
	defer span.End()

	return s.view(s.mutate(ctx, id, func(sess *form.Session) error {
		if sess.Kind != form.KindProfile {
			return &domain.ErrValidation{Field: "addresses", Message: "disponível apenas no formulário de perfil"}
		}
		return sess.Profile.AddAddress()
	}))
}

// RemoveAddress drops an accumulated address from a profile form.
func (s *FormService) RemoveAddress(ctx context.Context, id string, index int) (form.FormView, error) {
	ctx, span := tracer.Start(ctx, "FormService.RemoveAddress")
	defer span.End()

	return s.view(s.mutate(ctx, id, func(sess *form.Session) error {
		if sess.Kind != form.KindProfile {
			return &domain.ErrValidation{Field: "addresses", Message: "disponível apenas no formulário de perfil"}
		}
		return sess.Profile.RemoveAddress(index)
	}))
}

// ============================================================
// Submission
// ============================================================

// Submit runs the submission gate and persists the form. Invalid forms
// are rejected without any backend call. On success the session is
// discarded and the completion hooks run; on failure it is kept.
func (s *FormService) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "FormService.Submit")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("form_submit", time.Since(start))
	}()

	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("form.kind", string(sess.Kind)))

	var result *SubmitResult
	switch sess.Kind {
	case form.KindProfile:
		result, err = s.submitProfile(ctx, sess)
	case form.KindAddress:
		result, err = s.submitAddress(ctx, sess)
	default:
		err = fmt.Errorf("unknown form kind %q", sess.Kind)
	}

	if err != nil {
		var set *domain.ErrValidationSet
		if errors.As(err, &set) {
			s.metrics.RecordSubmit(string(sess.Kind), observability.SubmitRejected)
			return nil, err
		}
		s.metrics.RecordSubmit(string(sess.Kind), observability.SubmitFailed)
		s.logger.Error("form submission failed",
			zap.String("form_id", id),
			zap.String("kind", string(sess.Kind)),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to discard submitted form", zap.String("form_id", id), zap.Error(err))
	}
	s.metrics.FormClosed()
	s.metrics.RecordSubmit(string(sess.Kind), observability.SubmitAccepted)
	s.logger.Info("form submitted",
		zap.String("form_id", id),
		zap.String("kind", string(result.Kind)),
		zap.String("mode", string(result.Mode)),
		zap.String("cpf", MaskCPF(result.CPF)),
	)

	for _, h := range s.hooks {
		h(ctx, *result)
	}
	return result, nil
}

func (s *FormService) submitProfile(ctx context.Context, sess *form.Session) (*SubmitResult, error) {
	f := sess.Profile
	rec, err := f.Payload()
	if err != nil {
		return nil, err
	}

	if f.Mode == form.ModeEdit {
		err = s.records.UpdateProfile(ctx, f.OriginalCPF, &rec)
	} else {
		err = s.records.CreateProfile(ctx, &rec)
	}
	if err != nil {
		return nil, fmt.Errorf("persist profile: %w", err)
	}

	return &SubmitResult{
		FormID:  sess.ID,
		Kind:    sess.Kind,
		Mode:    f.Mode,
		CPF:     rec.CPF,
		Profile: &rec,
	}, nil
}

func (s *FormService) submitAddress(ctx context.Context, sess *form.Session) (*SubmitResult, error) {
	f := sess.Address
	recs, err := f.Payload()
	if err != nil {
		return nil, err
	}

	if f.Mode == form.ModeEdit {
		if err := s.records.UpdateAddress(ctx, f.OwnerCPF, f.OriginalKey, &recs[0]); err != nil {
			return nil, fmt.Errorf("persist address: %w", err)
		}
	} else {
		for i := range recs {
			if err := s.records.CreateAddress(ctx, f.OwnerCPF, &recs[i]); err != nil {
				if i > 0 {
					// Drop what was stored so a retry does not duplicate it.
					f.Entries = f.Entries[i:]
					if saveErr := s.save(ctx, sess); saveErr != nil {
						s.logger.Warn("failed to save partial submission", zap.String("form_id", sess.ID), zap.Error(saveErr))
					}
					s.directory.Invalidate(f.OwnerCPF)
				}
				return nil, fmt.Errorf("persist address %d: %w", i, err)
			}
		}
	}

	return &SubmitResult{
		FormID:    sess.ID,
		Kind:      sess.Kind,
		Mode:      f.Mode,
		CPF:       f.OwnerCPF,
		Addresses: recs,
	}, nil
}

// ============================================================
// Helpers
// ============================================================

// mutate loads a session under its lock, applies fn and saves the result.
// Failed transitions leave the form unchanged, so the session is saved
// either way and fn's error returned with it.
func (s *FormService) mutate(ctx context.Context, id string, fn func(*form.Session) error) (*form.Session, error) {
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fnErr := fn(sess)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, fnErr
}

func (s *FormService) save(ctx context.Context, sess *form.Session) error {
	sess.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save form: %w", err)
	}
	return nil
}

func (s *FormService) view(sess *form.Session, err error) (form.FormView, error) {
	if sess == nil {
		return form.FormView{}, err
	}
	return form.View(sess), err
}
