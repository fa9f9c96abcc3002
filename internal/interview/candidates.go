package interview

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/recruitx/recruitx/internal/storage"
)

type CandidateInput struct {
	Name  string
	Email string
	Phone string
}

func (in CandidateInput) normalize() (CandidateInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	if in.Name == "" {
		return in, validationf("name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return in, validationf("email %q is invalid", in.Email)
	}
	if !isE164(in.Phone) {
		return in, validationf("phone %q must be in E.164 format, e.g. +15551234567", in.Phone)
	}
	return in, nil
}

// isE164 reports whether s looks like +<country code><number>, 8 to 15 digits.
func isE164(s string) bool {
	if len(s) < 9 || len(s) > 16 || s[0] != '+' || s[1] == '0' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) CreateCandidate(ctx context.Context, in CandidateInput) (storage.Candidate, error) {
	in, err := in.normalize()
	if err != nil {
		return storage.Candidate{}, err
	}
	now := s.now().UTC()
	c := storage.Candidate{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCandidate(ctx, c); err != nil {
		return storage.Candidate{}, Translate(err)
	}
	s.logger.Info("candidate created", "candidate_id", c.ID)
	return c, nil
}

func (s *Service) GetCandidate(ctx context.Context, id string) (storage.Candidate, error) {
	c, err := s.store.GetCandidate(ctx, id)
	return c, Translate(err)
}

func (s *Service) ListCandidates(ctx context.Context, offset, limit int) ([]storage.Candidate, error) {
	cs, err := s.store.ListCandidates(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		cs = []storage.Candidate{}
	}
	return cs, nil
}

func (s *Service) UpdateCandidate(ctx context.Context, id string, in CandidateInput) (storage.Candidate, error) {
	in, err := in.normalize()
	if err != nil {
		return storage.Candidate{}, err
	}
	c := storage.Candidate{ID: id, Name: in.Name, Email: in.Email, Phone: in.Phone}
	if err := s.store.UpdateCandidate(ctx, c); err != nil {
		return storage.Candidate{}, Translate(err)
	}
	return s.GetCandidate(ctx, id)
}

func (s *Service) DeleteCandidate(ctx context.Context, id string) error {
	if err := s.store.DeleteCandidate(ctx, id); err != nil {
		return Translate(err)
	}
	s.logger.Info("candidate deleted", "candidate_id", id)
	return nil
}
