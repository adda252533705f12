package attendance

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"go-bioattend/internal/assertion"
	attendanceerrors "go-bioattend/internal/attendance/errors"
	"go-bioattend/internal/events"
	"go-bioattend/internal/faceengine"
	"go-bioattend/internal/identity"
	"go-bioattend/internal/matcher"
	"go-bioattend/internal/messaging/kafka"
	"go-bioattend/internal/notify"
	"go-bioattend/internal/photostore"
	"go-bioattend/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=attendance_service.go -destination=mock/attendance_service_mock.go -package=mock
type Service interface {
	MarkByFace(ctx context.Context, req MarkFaceRequest) (MarkResponse, error)
	MarkByAssertion(ctx context.Context, req MarkAssertionRequest) (MarkResponse, error)
	IssueChallenge(ctx context.Context, req ChallengeRequest) (ChallengeResponse, error)
	ListByDay(ctx context.Context, day string, page, pageSize int) ([]EntryResponse, int64, error)
	ListAbsentees(ctx context.Context, day string) ([]AbsenteeResponse, error)
}

// CandidateSource feeds the matcher; satisfied by identity.Gallery.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]matcher.Candidate, error)
}

// ChallengeSource issues and redeems single-use assertion challenges;
// satisfied by assertion.ChallengeStore.
type ChallengeSource interface {
	Issue(ctx context.Context, credentialID string) (string, error)
	Consume(ctx context.Context, credentialID string) (string, error)
}

type service struct {
	db           *sql.DB
	repo         Repository
	identityRepo identity.Repository
	gallery      CandidateSource
	outbox       kafka.OutboxRepository
	extractor    faceengine.Extractor
	uploader     photostore.Uploader
	challenges   ChallengeSource
	links        *notify.LinkBuilder
	loc          *time.Location
	threshold    float64
	logger       *zap.Logger
}

type Config struct {
	Location  *time.Location
	Threshold float64
}

func NewService(
	db *sql.DB,
	repo Repository,
	identityRepo identity.Repository,
	gallery CandidateSource,
	outbox kafka.OutboxRepository,
	extractor faceengine.Extractor,
	uploader photostore.Uploader,
	challenges ChallengeSource,
	links *notify.LinkBuilder,
	cfg Config,
) Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = matcher.DefaultThreshold
	}
	return &service{
		db:           db,
		repo:         repo,
		identityRepo: identityRepo,
		gallery:      gallery,
		outbox:       outbox,
		extractor:    extractor,
		uploader:     uploader,
		challenges:   challenges,
		links:        links,
		loc:          cfg.Location,
		threshold:    cfg.Threshold,
		logger:       zap.L().Named("attendance.service"),
	}
}

func (s *service) MarkByFace(ctx context.Context, req MarkFaceRequest) (MarkResponse, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return MarkResponse{}, err
	}

	probe, err := s.extractor.ExtractEmbedding(ctx, req.Photo)
	if err != nil {
		return MarkResponse{}, err
	}

	candidates, err := s.gallery.Candidates(ctx)
	if err != nil {
		return MarkResponse{}, err
	}

	match, err := matcher.Match(probe, candidates, s.threshold)
	if err != nil {
		return MarkResponse{}, err
	}
	if match == nil {
		return MarkResponse{}, attendanceerrors.ErrNoMatch
	}

	return s.mark(ctx, markInput{
		identityID: match.IdentityID,
		action:     action,
		method:     identity.MethodFace,
		confidence: match.Confidence,
		note:       req.Note,
		location:   req.Location,
		photo:      req.Photo,
	})
}

func (s *service) MarkByAssertion(ctx context.Context, req MarkAssertionRequest) (MarkResponse, error) {
	action, err := ParseAction(req.Action)
	if err != nil {
		return MarkResponse{}, err
	}

	if !assertion.IsValidCredentialID(req.CredentialID) {
		return MarkResponse{}, attendanceerrors.ErrVerificationFailed
	}

	cred, err := s.identityRepo.FindCredential(ctx, req.CredentialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MarkResponse{}, attendanceerrors.ErrVerificationFailed
		}
		return MarkResponse{}, err
	}

	ident, err := s.identityRepo.FindByID(ctx, cred.IdentityID.String())
	if err != nil {
		return MarkResponse{}, err
	}
	if !ident.Active {
		// deactivated identities no longer participate in matching
		return MarkResponse{}, attendanceerrors.ErrVerificationFailed
	}

	challenge, err := s.challenges.Consume(ctx, req.CredentialID)
	if err != nil {
		if errors.Is(err, assertion.ErrChallengeNotFound) {
			return MarkResponse{}, attendanceerrors.ErrVerificationFailed
		}
		return MarkResponse{}, err
	}

	a, ok := decodeAssertion(req)
	if !ok {
		return MarkResponse{}, attendanceerrors.ErrVerificationFailed
	}
	if !assertion.Verify(a, cred.PublicKey, challenge) {
		return MarkResponse{}, attendanceerrors.ErrVerificationFailed
	}

	// The counter comes out of the signed authenticator data, never from a
	// bare request field. Verification succeeded, but a signed counter that
	// does not advance past the stored value still means a cloned
	// authenticator.
	counter, ok := assertion.Counter(a.AuthenticatorData)
	if !ok {
		return MarkResponse{}, attendanceerrors.ErrVerificationFailed
	}
	advanced, err := s.identityRepo.AdvanceSignCount(ctx, cred.ID.String(), int64(counter))
	if err != nil {
		return MarkResponse{}, err
	}
	if !advanced {
		return MarkResponse{}, attendanceerrors.ErrReplayDetected
	}

	return s.mark(ctx, markInput{
		identityID: cred.IdentityID.String(),
		action:     action,
		method:     identity.MethodCredential,
		confidence: CertainConfidence,
		note:       req.Note,
		location:   req.Location,
	})
}

func (s *service) IssueChallenge(ctx context.Context, req ChallengeRequest) (ChallengeResponse, error) {
	if !assertion.IsValidCredentialID(req.CredentialID) {
		return ChallengeResponse{}, attendanceerrors.ErrVerificationFailed
	}
	if _, err := s.identityRepo.FindCredential(ctx, req.CredentialID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ChallengeResponse{}, attendanceerrors.ErrVerificationFailed
		}
		return ChallengeResponse{}, err
	}

	challenge, err := s.challenges.Issue(ctx, req.CredentialID)
	if err != nil {
		return ChallengeResponse{}, err
	}
	return ChallengeResponse{
		Challenge: challenge,
		ExpiresIn: int(assertion.DefaultChallengeTTL.Seconds()),
	}, nil
}

type markInput struct {
	identityID string
	action     Action
	method     string
	confidence float64
	note       *string
	location   *string
	photo      string
}

// mark runs the read-decide-write sequence inside one transaction. The
// (identity_id, day) unique index backs it up: a concurrent first mark that
// slips past the read fails on insert and surfaces as AlreadyLoggedIn.
func (s *service) mark(ctx context.Context, in markInput) (MarkResponse, error) {
	now := time.Now().In(s.loc)
	day := DayOf(now, s.loc)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MarkResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	otx := s.outbox.WithTx(tx)

	var existing *Entry
	found, err := qtx.FindByIdentityAndDay(ctx, in.identityID, day)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return MarkResponse{}, err
	}
	if err == nil {
		existing = found
	}

	transition, err := Resolve(existing, in.action, now)
	if err != nil {
		return MarkResponse{}, err
	}

	var entry *Entry
	switch transition {
	case TransitionLogin:
		entry = &Entry{
			ID:         uuid.New(),
			IdentityID: uuid.MustParse(in.identityID),
			Day:        day,
			TimeIn:     now,
			Method:     in.method,
			Confidence: in.confidence,
			Status:     statusPresent,
			Note:       in.note,
			Location:   in.location,
		}
		if err := qtx.Create(ctx, entry); err != nil {
			return MarkResponse{}, mapCreateError(err)
		}

	case TransitionLogout:
		if err := qtx.Close(ctx, existing.ID.String(), now); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// raced with another logout that closed the entry first
				return MarkResponse{}, attendanceerrors.ErrAlreadyCompleted
			}
			return MarkResponse{}, err
		}
		closed := *existing
		closed.TimeOut = &now
		entry = &closed
	}

	if err := s.stageMarkedEvent(ctx, otx, entry, transition, now); err != nil {
		return MarkResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return MarkResponse{}, err
	}

	if in.photo != "" {
		go s.attachPhoto(entry.ID.String(), transition, in.photo)
	}

	return MarkResponse{
		Transition: string(transition),
		Entry:      mapToResponse(*entry),
	}, nil
}

// attachPhoto uploads the mark photo and attaches its URL to the entry.
// Fire-and-forget: a storage failure is logged, never blocks the decision.
func (s *service) attachPhoto(entryID string, transition Transition, photo string) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	res, err := s.uploader.UploadBase64(ctx, photo)
	if err != nil {
		s.logger.Warn("mark photo upload failed",
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
		return
	}
	if res.SecureURL == "" {
		return
	}

	if err := s.repo.SetPhotoURL(ctx, entryID, transition, res.SecureURL); err != nil {
		s.logger.Warn("attach mark photo failed",
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
	}
}

func (s *service) ListByDay(ctx context.Context, dayStr string, page, pageSize int) ([]EntryResponse, int64, error) {
	day, err := s.parseDay(dayStr)
	if err != nil {
		return nil, 0, err
	}

	rows, total, err := s.repo.FindPageByDay(ctx, day, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	res := make([]EntryResponse, len(rows))
	for i, r := range rows {
		res[i] = mapToResponse(r)
	}
	return res, total, nil
}

func (s *service) ListAbsentees(ctx context.Context, dayStr string) ([]AbsenteeResponse, error) {
	day, err := s.parseDay(dayStr)
	if err != nil {
		return nil, err
	}

	// Only identities enrolled by the end of the target day can be absent
	// for it; later enrollees never appear.
	cutoff := day.Add(24 * time.Hour)
	idents, err := s.identityRepo.ListActiveEnrolledBy(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.FindAllByDay(ctx, day)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e.IdentityID.String()] = struct{}{}
	}

	absentees := make([]AbsenteeResponse, 0)
	for _, ident := range idents {
		if _, ok := present[ident.ID.String()]; ok {
			continue
		}
		a := AbsenteeResponse{
			IdentityID: ident.ID.String(),
			FullName:   ident.FullName,
		}
		if ident.Phone != nil && *ident.Phone != "" {
			a.NotifyLink = s.links.AbsenceLink(*ident.Phone, ident.FullName, day)
		}
		absentees = append(absentees, a)
	}
	return absentees, nil
}

func (s *service) parseDay(dayStr string) (time.Time, error) {
	if dayStr == "" {
		return DayOf(time.Now().In(s.loc), s.loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", dayStr, time.UTC)
	if err != nil {
		return time.Time{}, attendanceerrors.ErrInvalidDay
	}
	return t, nil
}

func (s *service) stageMarkedEvent(
	ctx context.Context,
	otx kafka.OutboxRepository,
	entry *Entry,
	transition Transition,
	occurredAt time.Time,
) error {
	payload, err := json.Marshal(events.AttendanceMarkedEvent{
		EventType:  string(transition),
		EntryID:    entry.ID.String(),
		IdentityID: entry.IdentityID.String(),
		Day:        entry.Day.Format("2006-01-02"),
		Method:     entry.Method,
		Confidence: entry.Confidence,
		OccurredAt: occurredAt,
	})
	if err != nil {
		return err
	}

	return otx.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "attendance_entry",
		AggregateID:   entry.ID.String(),
		EventType:     string(transition),
		Topic:         events.AttendanceMarkedTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
}

func decodeAssertion(req MarkAssertionRequest) (assertion.Assertion, bool) {
	authData, err := base64.RawURLEncoding.DecodeString(req.AuthenticatorData)
	if err != nil {
		return assertion.Assertion{}, false
	}
	clientData, err := base64.RawURLEncoding.DecodeString(req.ClientDataJSON)
	if err != nil {
		return assertion.Assertion{}, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(req.Signature)
	if err != nil {
		return assertion.Assertion{}, false
	}
	return assertion.Assertion{
		CredentialID:      req.CredentialID,
		AuthenticatorData: authData,
		ClientDataJSON:    clientData,
		Signature:         sig,
	}, true
}

func mapToResponse(e Entry) EntryResponse {
	resp := EntryResponse{
		ID:         e.ID.String(),
		IdentityID: e.IdentityID.String(),
		Day:        e.Day.Format("2006-01-02"),
		TimeIn:     e.TimeIn.Format(time.RFC3339),
		Method:     e.Method,
		Confidence: e.Confidence,
		Status:     e.Status,
		Note:       e.Note,
		Location:   e.Location,
	}
	if e.Identity != nil {
		resp.IdentityName = e.Identity.FullName
	}
	if e.TimeOut != nil {
		v := e.TimeOut.Format(time.RFC3339)
		resp.TimeOut = &v
		resp.Duration = Duration(e).String()
	}
	return resp
}
