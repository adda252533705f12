package attendance

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go-bioattend/internal/assertion"
	attendanceerrors "go-bioattend/internal/attendance/errors"
	"go-bioattend/internal/identity"
	"go-bioattend/internal/matcher"
	"go-bioattend/internal/messaging/kafka"
	"go-bioattend/internal/notify"
	"go-bioattend/internal/photostore"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeRepo struct {
	createFn               func(ctx context.Context, e *Entry) error
	findByIdentityAndDayFn func(ctx context.Context, identityID string, day time.Time) (*Entry, error)
	closeFn                func(ctx context.Context, id string, timeOut time.Time) error
	findAllByDayFn         func(ctx context.Context, day time.Time) ([]Entry, error)
	findPageByDayFn        func(ctx context.Context, day time.Time, limit, offset int) ([]Entry, int64, error)
}

func (f *fakeRepo) WithTx(tx *sql.Tx) Repository                 { return f }
func (f *fakeRepo) Create(ctx context.Context, e *Entry) error   { return f.createFn(ctx, e) }
func (f *fakeRepo) FindByIdentityAndDay(ctx context.Context, identityID string, day time.Time) (*Entry, error) {
	return f.findByIdentityAndDayFn(ctx, identityID, day)
}
func (f *fakeRepo) Close(ctx context.Context, id string, timeOut time.Time) error {
	return f.closeFn(ctx, id, timeOut)
}
func (f *fakeRepo) SetPhotoURL(ctx context.Context, id string, transition Transition, url string) error {
	return nil
}
func (f *fakeRepo) FindAllByDay(ctx context.Context, day time.Time) ([]Entry, error) {
	return f.findAllByDayFn(ctx, day)
}
func (f *fakeRepo) FindPageByDay(ctx context.Context, day time.Time, limit, offset int) ([]Entry, int64, error) {
	return f.findPageByDayFn(ctx, day, limit, offset)
}
func (f *fakeRepo) FindAllByIdentity(ctx context.Context, identityID string) ([]Entry, error) {
	return nil, nil
}

type fakeIdentityRepo struct {
	findByIDFn             func(ctx context.Context, id string) (*identity.Identity, error)
	listActiveEnrolledByFn func(ctx context.Context, cutoff time.Time) ([]identity.Identity, error)
	findCredentialFn       func(ctx context.Context, credentialID string) (*identity.Credential, error)
	advanceSignCountFn     func(ctx context.Context, id string, newCount int64) (bool, error)
}

func (f *fakeIdentityRepo) WithTx(tx *sql.Tx) identity.Repository { return f }
func (f *fakeIdentityRepo) CreateIdentity(ctx context.Context, id *identity.Identity) error {
	return nil
}
func (f *fakeIdentityRepo) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	return f.findByIDFn(ctx, id)
}
func (f *fakeIdentityRepo) FindAll(ctx context.Context) ([]identity.Identity, error) {
	return nil, nil
}
func (f *fakeIdentityRepo) Deactivate(ctx context.Context, id string) error { return nil }
func (f *fakeIdentityRepo) ListActiveEnrolledBy(ctx context.Context, cutoff time.Time) ([]identity.Identity, error) {
	return f.listActiveEnrolledByFn(ctx, cutoff)
}
func (f *fakeIdentityRepo) CreateFaceTemplate(ctx context.Context, t *identity.FaceTemplate) error {
	return nil
}
func (f *fakeIdentityRepo) ListActiveFaceTemplates(ctx context.Context) ([]identity.FaceTemplate, error) {
	return nil, nil
}
func (f *fakeIdentityRepo) CreateCredential(ctx context.Context, c *identity.Credential) error {
	return nil
}
func (f *fakeIdentityRepo) FindCredential(ctx context.Context, credentialID string) (*identity.Credential, error) {
	return f.findCredentialFn(ctx, credentialID)
}
func (f *fakeIdentityRepo) AdvanceSignCount(ctx context.Context, id string, newCount int64) (bool, error) {
	return f.advanceSignCountFn(ctx, id, newCount)
}

type fakeOutbox struct {
	created []kafka.OutboxEvent
}

func (f *fakeOutbox) WithTx(tx *sql.Tx) kafka.OutboxRepository { return f }
func (f *fakeOutbox) Create(ctx context.Context, event kafka.OutboxEvent) error {
	f.created = append(f.created, event)
	return nil
}
func (f *fakeOutbox) ListPending(ctx context.Context, limit int) ([]kafka.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkSent(ctx context.Context, id string) error               { return nil }
func (f *fakeOutbox) MarkFailed(ctx context.Context, id string, reason string) error { return nil }

type fakeExtractor struct {
	embedding []float64
	err       error
}

func (f *fakeExtractor) ExtractEmbedding(ctx context.Context, imageData string) ([]float64, error) {
	return f.embedding, f.err
}

type fakeGallery struct {
	candidates []matcher.Candidate
}

func (f *fakeGallery) Candidates(ctx context.Context) ([]matcher.Candidate, error) {
	return f.candidates, nil
}

type fakeChallenges struct {
	issued    string
	consumeFn func(ctx context.Context, credentialID string) (string, error)
}

func (f *fakeChallenges) Issue(ctx context.Context, credentialID string) (string, error) {
	return f.issued, nil
}
func (f *fakeChallenges) Consume(ctx context.Context, credentialID string) (string, error) {
	return f.consumeFn(ctx, credentialID)
}

func flatVec(x float64) []float64 {
	v := make([]float64, matcher.EmbeddingDim)
	for i := range v {
		v[i] = x
	}
	return v
}

func newTestService(
	db *sql.DB,
	repo Repository,
	identityRepo identity.Repository,
	gallery CandidateSource,
	outbox kafka.OutboxRepository,
	extractor *fakeExtractor,
	challenges ChallengeSource,
) Service {
	return NewService(
		db,
		repo,
		identityRepo,
		gallery,
		outbox,
		extractor,
		photostore.Noop{},
		challenges,
		notify.NewLinkBuilder(""),
		Config{Location: time.UTC},
	)
}

func TestService_MarkByFace_AutoToggle(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	identityID := uuid.New()
	ctx := context.Background()

	var saved *Entry
	repo := &fakeRepo{}
	repo.createFn = func(ctx context.Context, e *Entry) error { c := *e; saved = &c; return nil }
	repo.closeFn = func(ctx context.Context, id string, timeOut time.Time) error {
		saved.TimeOut = &timeOut
		return nil
	}
	repo.findByIdentityAndDayFn = func(ctx context.Context, id string, day time.Time) (*Entry, error) {
		if saved == nil {
			return nil, gorm.ErrRecordNotFound
		}
		return saved, nil
	}

	outbox := &fakeOutbox{}
	gallery := &fakeGallery{candidates: []matcher.Candidate{
		{IdentityID: identityID.String(), Vector: flatVec(0.5)},
	}}
	extractor := &fakeExtractor{embedding: flatVec(0.5)}

	svc := newTestService(db, repo, &fakeIdentityRepo{}, gallery, outbox, extractor, &fakeChallenges{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	first, err := svc.MarkByFace(ctx, MarkFaceRequest{Photo: "aGVsbG8="})
	assert.NoError(t, err)
	assert.Equal(t, string(TransitionLogin), first.Transition)
	assert.Equal(t, identityID.String(), first.Entry.IdentityID)
	assert.InDelta(t, 1.0, first.Entry.Confidence, 1e-9)

	mock.ExpectBegin()
	mock.ExpectCommit()
	second, err := svc.MarkByFace(ctx, MarkFaceRequest{Photo: "aGVsbG8="})
	assert.NoError(t, err)
	assert.Equal(t, string(TransitionLogout), second.Transition)
	assert.NotNil(t, second.Entry.TimeOut)

	// both transitions were staged for publication
	assert.Len(t, outbox.created, 2)
	assert.Equal(t, "logged_in", outbox.created[0].EventType)
	assert.Equal(t, "logged_out", outbox.created[1].EventType)

	// third mark of the day is terminal
	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.MarkByFace(ctx, MarkFaceRequest{Photo: "aGVsbG8="})
	assert.ErrorIs(t, err, attendanceerrors.ErrAlreadyCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_MarkByFace_NoMatch(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	gallery := &fakeGallery{candidates: []matcher.Candidate{
		{IdentityID: uuid.New().String(), Vector: flatVec(0.9)},
	}}
	extractor := &fakeExtractor{embedding: flatVec(0.1)}

	svc := newTestService(db, &fakeRepo{}, &fakeIdentityRepo{}, gallery, &fakeOutbox{}, extractor, &fakeChallenges{})

	_, err := svc.MarkByFace(context.Background(), MarkFaceRequest{Photo: "aGVsbG8="})
	assert.ErrorIs(t, err, attendanceerrors.ErrNoMatch)
}

func TestService_MarkByFace_ConcurrentFirstMark(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	identityID := uuid.New()

	repo := &fakeRepo{}
	repo.findByIdentityAndDayFn = func(ctx context.Context, id string, day time.Time) (*Entry, error) {
		return nil, gorm.ErrRecordNotFound
	}
	// another request won the insert between our read and our write
	repo.createFn = func(ctx context.Context, e *Entry) error {
		return errors.New(`ERROR: duplicate key value violates unique constraint "uq_attendance_identity_day" (SQLSTATE 23505)`)
	}

	gallery := &fakeGallery{candidates: []matcher.Candidate{
		{IdentityID: identityID.String(), Vector: flatVec(0.5)},
	}}
	extractor := &fakeExtractor{embedding: flatVec(0.5)}

	svc := newTestService(db, repo, &fakeIdentityRepo{}, gallery, &fakeOutbox{}, extractor, &fakeChallenges{})

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.MarkByFace(context.Background(), MarkFaceRequest{Photo: "aGVsbG8="})
	assert.ErrorIs(t, err, attendanceerrors.ErrAlreadyLoggedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// assertionFixture signs a fresh P-256 assertion whose authenticator data
// embeds signedCounter, and returns the wire-shaped request plus the stored
// credential (at storedCount) it verifies against.
func assertionFixture(t *testing.T, challenge string, signedCounter uint32, storedCount int64) (MarkAssertionRequest, *identity.Credential) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	assert.NoError(t, err)

	cdJSON, err := json.Marshal(map[string]string{
		"type":      assertion.ExpectedType,
		"challenge": challenge,
		"origin":    "https://attendance.local",
	})
	assert.NoError(t, err)

	authData := make([]byte, 37)
	authData[32] = 0x01
	binary.BigEndian.PutUint32(authData[33:], signedCounter)

	cdHash := sha256.Sum256(cdJSON)
	signed := append(append([]byte{}, authData...), cdHash[:]...)
	digest := sha256.Sum256(signed)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	assert.NoError(t, err)

	credentialID := base64.RawURLEncoding.EncodeToString(make([]byte, 32))
	cred := &identity.Credential{
		ID:           uuid.New(),
		IdentityID:   uuid.New(),
		CredentialID: credentialID,
		PublicKey:    der,
		SignCount:    storedCount,
	}

	req := MarkAssertionRequest{
		CredentialID:      credentialID,
		AuthenticatorData: base64.RawURLEncoding.EncodeToString(authData),
		ClientDataJSON:    base64.RawURLEncoding.EncodeToString(cdJSON),
		Signature:         base64.RawURLEncoding.EncodeToString(sig),
	}
	return req, cred
}

func TestService_MarkByAssertion_Login(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	req, cred := assertionFixture(t, "c2VjcmV0", 5, 4)

	repo := &fakeRepo{}
	repo.findByIdentityAndDayFn = func(ctx context.Context, id string, day time.Time) (*Entry, error) {
		return nil, gorm.ErrRecordNotFound
	}
	repo.createFn = func(ctx context.Context, e *Entry) error { return nil }

	identityRepo := &fakeIdentityRepo{
		findCredentialFn: func(ctx context.Context, credentialID string) (*identity.Credential, error) {
			assert.Equal(t, cred.CredentialID, credentialID)
			return cred, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*identity.Identity, error) {
			return &identity.Identity{ID: cred.IdentityID, FullName: "Sinta Dewi", Active: true}, nil
		},
		advanceSignCountFn: func(ctx context.Context, id string, newCount int64) (bool, error) {
			assert.Equal(t, int64(5), newCount)
			return true, nil
		},
	}

	challenges := &fakeChallenges{
		consumeFn: func(ctx context.Context, credentialID string) (string, error) {
			return "c2VjcmV0", nil
		},
	}

	svc := newTestService(db, repo, identityRepo, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, challenges)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.MarkByAssertion(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, string(TransitionLogin), resp.Transition)
	assert.InDelta(t, CertainConfidence, resp.Entry.Confidence, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_MarkByAssertion_StaleCounterIsReplay(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	req, cred := assertionFixture(t, "c2VjcmV0", 5, 4)

	identityRepo := &fakeIdentityRepo{
		findCredentialFn: func(ctx context.Context, credentialID string) (*identity.Credential, error) {
			return cred, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*identity.Identity, error) {
			return &identity.Identity{ID: cred.IdentityID, Active: true}, nil
		},
		advanceSignCountFn: func(ctx context.Context, id string, newCount int64) (bool, error) {
			return false, nil
		},
	}
	challenges := &fakeChallenges{
		consumeFn: func(ctx context.Context, credentialID string) (string, error) {
			return "c2VjcmV0", nil
		},
	}

	svc := newTestService(db, &fakeRepo{}, identityRepo, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, challenges)

	_, err := svc.MarkByAssertion(context.Background(), req)
	assert.ErrorIs(t, err, attendanceerrors.ErrReplayDetected)
}

func TestService_MarkByAssertion_CounterBoundToSignedBytes(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	// A cloned authenticator replays old signed bytes carrying counter 0;
	// whatever counter the client claims elsewhere is irrelevant because
	// the CAS only ever sees the value embedded in the signature.
	req, cred := assertionFixture(t, "c2VjcmV0", 0, 100)

	var casSaw int64 = -1
	identityRepo := &fakeIdentityRepo{
		findCredentialFn: func(ctx context.Context, credentialID string) (*identity.Credential, error) {
			return cred, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*identity.Identity, error) {
			return &identity.Identity{ID: cred.IdentityID, Active: true}, nil
		},
		advanceSignCountFn: func(ctx context.Context, id string, newCount int64) (bool, error) {
			casSaw = newCount
			return newCount > cred.SignCount, nil
		},
	}
	challenges := &fakeChallenges{
		consumeFn: func(ctx context.Context, credentialID string) (string, error) {
			return "c2VjcmV0", nil
		},
	}

	svc := newTestService(db, &fakeRepo{}, identityRepo, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, challenges)

	_, err := svc.MarkByAssertion(context.Background(), req)
	assert.ErrorIs(t, err, attendanceerrors.ErrReplayDetected)
	assert.Equal(t, int64(0), casSaw)
}

func TestService_MarkByAssertion_ConsumedChallengeFails(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	req, cred := assertionFixture(t, "c2VjcmV0", 5, 4)

	identityRepo := &fakeIdentityRepo{
		findCredentialFn: func(ctx context.Context, credentialID string) (*identity.Credential, error) {
			return cred, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*identity.Identity, error) {
			return &identity.Identity{ID: cred.IdentityID, Active: true}, nil
		},
	}
	challenges := &fakeChallenges{
		consumeFn: func(ctx context.Context, credentialID string) (string, error) {
			return "", assertion.ErrChallengeNotFound
		},
	}

	svc := newTestService(db, &fakeRepo{}, identityRepo, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, challenges)

	_, err := svc.MarkByAssertion(context.Background(), req)
	assert.ErrorIs(t, err, attendanceerrors.ErrVerificationFailed)
}

func TestService_MarkByAssertion_DeactivatedIdentity(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	req, cred := assertionFixture(t, "c2VjcmV0", 5, 4)

	identityRepo := &fakeIdentityRepo{
		findCredentialFn: func(ctx context.Context, credentialID string) (*identity.Credential, error) {
			return cred, nil
		},
		findByIDFn: func(ctx context.Context, id string) (*identity.Identity, error) {
			return &identity.Identity{ID: cred.IdentityID, Active: false}, nil
		},
	}

	svc := newTestService(db, &fakeRepo{}, identityRepo, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, &fakeChallenges{})

	_, err := svc.MarkByAssertion(context.Background(), req)
	assert.ErrorIs(t, err, attendanceerrors.ErrVerificationFailed)
}

func TestService_ListAbsentees(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	present := identity.Identity{ID: uuid.New(), FullName: "Budi Santoso", Active: true}
	phone := "+62 812-3456-789"
	absent := identity.Identity{ID: uuid.New(), FullName: "Sinta Dewi", Phone: &phone, Active: true}

	identityRepo := &fakeIdentityRepo{
		listActiveEnrolledByFn: func(ctx context.Context, cutoff time.Time) ([]identity.Identity, error) {
			assert.Equal(t, day.Add(24*time.Hour), cutoff)
			return []identity.Identity{present, absent}, nil
		},
	}
	repo := &fakeRepo{
		findAllByDayFn: func(ctx context.Context, d time.Time) ([]Entry, error) {
			return []Entry{{ID: uuid.New(), IdentityID: present.ID, Day: d, TimeIn: d.Add(9 * time.Hour)}}, nil
		},
	}

	svc := newTestService(db, repo, identityRepo, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, &fakeChallenges{})

	absentees, err := svc.ListAbsentees(context.Background(), "2025-03-10")
	assert.NoError(t, err)
	assert.Len(t, absentees, 1)
	assert.Equal(t, absent.ID.String(), absentees[0].IdentityID)
	assert.Contains(t, absentees[0].NotifyLink, "https://wa.me/628123456789")
	assert.Contains(t, absentees[0].NotifyLink, "10+Mar+2025")
}

func TestService_ListByDay_InvalidDay(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	svc := newTestService(db, &fakeRepo{}, &fakeIdentityRepo{}, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, &fakeChallenges{})

	_, _, err := svc.ListByDay(context.Background(), "10-03-2025", 1, 20)
	assert.ErrorIs(t, err, attendanceerrors.ErrInvalidDay)
}

func TestService_ListByDay_PushesPageIntoQuery(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	repo := &fakeRepo{
		findPageByDayFn: func(ctx context.Context, day time.Time, limit, offset int) ([]Entry, int64, error) {
			assert.Equal(t, 20, limit)
			assert.Equal(t, 40, offset)
			return []Entry{{ID: uuid.New(), IdentityID: uuid.New(), Day: day, TimeIn: day.Add(9 * time.Hour)}}, 41, nil
		},
	}

	svc := newTestService(db, repo, &fakeIdentityRepo{}, &fakeGallery{}, &fakeOutbox{}, &fakeExtractor{}, &fakeChallenges{})

	rows, total, err := svc.ListByDay(context.Background(), "2025-03-10", 3, 20)
	assert.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(41), total)
}
