package identity

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"time"

	"go-bioattend/internal/assertion"
	"go-bioattend/internal/events"
	"go-bioattend/internal/faceengine"
	identityerrors "go-bioattend/internal/identity/errors"
	"go-bioattend/internal/matcher"
	"go-bioattend/internal/messaging/kafka"
	"go-bioattend/internal/shared/contextutil"

	"github.com/google/uuid"
)

//go:generate mockgen -source=identity_service.go -destination=mock/identity_service_mock.go -package=mock
type Service interface {
	EnrollFace(ctx context.Context, req EnrollFaceRequest) (IdentityResponse, error)
	RegisterCredential(ctx context.Context, req RegisterCredentialRequest) (IdentityResponse, error)
	Deactivate(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]IdentityResponse, error)
	GetByID(ctx context.Context, id string) (IdentityResponse, error)
}

type service struct {
	db        *sql.DB
	repo      Repository
	outbox    kafka.OutboxRepository
	extractor faceengine.Extractor
	gallery   *Gallery
}

func NewService(
	db *sql.DB,
	repo Repository,
	outbox kafka.OutboxRepository,
	extractor faceengine.Extractor,
	gallery *Gallery,
) Service {
	return &service{
		db:        db,
		repo:      repo,
		outbox:    outbox,
		extractor: extractor,
		gallery:   gallery,
	}
}

func (s *service) EnrollFace(ctx context.Context, req EnrollFaceRequest) (IdentityResponse, error) {
	embedding, err := s.extractor.ExtractEmbedding(ctx, req.Photo)
	if err != nil {
		return IdentityResponse{}, err
	}
	if len(embedding) != matcher.EmbeddingDim {
		return IdentityResponse{}, identityerrors.ErrEmbeddingDimension
	}

	now := time.Now().UTC()
	ident := &Identity{
		ID:         uuid.New(),
		FullName:   req.FullName,
		Phone:      req.Phone,
		Active:     true,
		EnrolledAt: now,
	}

	template := &FaceTemplate{
		ID:         uuid.New(),
		IdentityID: ident.ID,
	}
	if err := template.SetVector(embedding); err != nil {
		return IdentityResponse{}, err
	}

	err = s.inTx(ctx, func(qtx Repository, otx kafka.OutboxRepository) error {
		if err := qtx.CreateIdentity(ctx, ident); err != nil {
			return mapRepositoryError(err)
		}
		if err := qtx.CreateFaceTemplate(ctx, template); err != nil {
			return mapRepositoryError(err)
		}
		return s.stageEnrolledEvent(ctx, otx, ident, MethodFace, now)
	})
	if err != nil {
		return IdentityResponse{}, err
	}

	s.gallery.Invalidate()
	return mapToResponse(*ident), nil
}

func (s *service) RegisterCredential(ctx context.Context, req RegisterCredentialRequest) (IdentityResponse, error) {
	if !assertion.IsValidCredentialID(req.CredentialID) {
		return IdentityResponse{}, identityerrors.ErrInvalidCredentialID
	}

	publicKey, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil || !assertion.IsValidPublicKey(publicKey) {
		return IdentityResponse{}, identityerrors.ErrInvalidPublicKey
	}

	now := time.Now().UTC()

	var ident *Identity
	if req.IdentityID != "" {
		existing, err := s.repo.FindByID(ctx, req.IdentityID)
		if err != nil {
			return IdentityResponse{}, mapRepositoryError(err)
		}
		if !existing.Active {
			return IdentityResponse{}, identityerrors.ErrIdentityInactive
		}
		ident = existing
	} else {
		if req.FullName == "" {
			return IdentityResponse{}, identityerrors.ErrIdentityNotFound
		}
		ident = &Identity{
			ID:         uuid.New(),
			FullName:   req.FullName,
			Phone:      req.Phone,
			Active:     true,
			EnrolledAt: now,
		}
	}

	cred := &Credential{
		ID:           uuid.New(),
		IdentityID:   ident.ID,
		CredentialID: req.CredentialID,
		PublicKey:    publicKey,
		SignCount:    0,
	}

	err = s.inTx(ctx, func(qtx Repository, otx kafka.OutboxRepository) error {
		if req.IdentityID == "" {
			if err := qtx.CreateIdentity(ctx, ident); err != nil {
				return mapRepositoryError(err)
			}
		}
		if err := qtx.CreateCredential(ctx, cred); err != nil {
			return mapRepositoryError(err)
		}
		return s.stageEnrolledEvent(ctx, otx, ident, MethodCredential, now)
	})
	if err != nil {
		return IdentityResponse{}, err
	}

	return mapToResponse(*ident), nil
}

func (s *service) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return mapRepositoryError(err)
	}
	s.gallery.Invalidate()
	return nil
}

func (s *service) GetAll(ctx context.Context) ([]IdentityResponse, error) {
	idents, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	res := make([]IdentityResponse, len(idents))
	for i, ident := range idents {
		res[i] = mapToResponse(ident)
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (IdentityResponse, error) {
	ident, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return IdentityResponse{}, mapRepositoryError(err)
	}
	return mapToResponse(*ident), nil
}

// inTx runs fn with repo and outbox bound to one transaction.
func (s *service) inTx(ctx context.Context, fn func(Repository, kafka.OutboxRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(s.repo.WithTx(tx), s.outbox.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *service) stageEnrolledEvent(
	ctx context.Context,
	otx kafka.OutboxRepository,
	ident *Identity,
	method string,
	occurredAt time.Time,
) error {
	payload, err := json.Marshal(events.IdentityEnrolledEvent{
		EventType:  "identity_enrolled",
		IdentityID: ident.ID.String(),
		FullName:   ident.FullName,
		Method:     method,
		OccurredAt: occurredAt,
	})
	if err != nil {
		return err
	}

	return otx.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "identity",
		AggregateID:   ident.ID.String(),
		EventType:     "identity_enrolled",
		Topic:         events.IdentityEnrolledTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
}

func mapToResponse(ident Identity) IdentityResponse {
	return IdentityResponse{
		ID:         ident.ID.String(),
		FullName:   ident.FullName,
		Phone:      ident.Phone,
		Active:     ident.Active,
		EnrolledAt: ident.EnrolledAt.Format(time.RFC3339),
	}
}
