// Package contract implements the immutable fact contract: a frozen,
// integrity-checked snapshot of a candidate's declared facts, and the verifier
// that checks generated utterances against it.
package contract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-interview-service/internal/models"
)

var (
	// ErrNotFound means no registration record exists for the candidate.
	ErrNotFound = errors.New("candidate registration not found")
	// ErrValidation means the registration record is missing required fields.
	ErrValidation = errors.New("registration record invalid")
	// ErrIntegrity means the contract digest no longer matches its fields.
	ErrIntegrity = errors.New("contract integrity check failed")
)

// digestLen is the number of hex characters kept from the SHA-256 digest.
// Enough for tamper detection, not cryptographic non-repudiation.
const digestLen = 12

// FactContract is a frozen snapshot of a candidate's declared facts, scoped to
// one interview session. All fields are set at construction and never mutated.
type FactContract struct {
	candidateID string
	sessionID   string

	fullName           string
	targetRole         string
	yearsOfExperience  int
	expectedSalary     int
	hasFieldExperience bool

	proximityToBranch   string
	canStartImmediately string
	academicStatus      string

	createdAt time.Time
	digest    string
}

// New constructs a frozen contract from a registration record.
func New(rec *models.RegistrationRecord, sessionID string) (*FactContract, error) {
	if strings.TrimSpace(rec.FullName) == "" {
		return nil, fmt.Errorf("%w: missing full name", ErrValidation)
	}
	if strings.TrimSpace(rec.TargetRole) == "" {
		return nil, fmt.Errorf("%w: missing target role", ErrValidation)
	}
	if rec.YearsOfExperience < 0 {
		return nil, fmt.Errorf("%w: negative years of experience", ErrValidation)
	}
	if rec.ExpectedSalary < 0 {
		return nil, fmt.Errorf("%w: negative expected salary", ErrValidation)
	}

	c := &FactContract{
		candidateID:         rec.CandidateID,
		sessionID:           sessionID,
		fullName:            rec.FullName,
		targetRole:          rec.TargetRole,
		yearsOfExperience:   rec.YearsOfExperience,
		expectedSalary:      rec.ExpectedSalary,
		hasFieldExperience:  rec.HasFieldExperience,
		proximityToBranch:   rec.ProximityToBranch,
		canStartImmediately: rec.CanStartImmediately,
		academicStatus:      rec.AcademicStatus,
		createdAt:           time.Now().UTC(),
	}
	c.digest = c.computeDigest()
	return c, nil
}

// computeDigest hashes the core scalar facts with a fixed field order. The
// serialization must never vary between construction and later checks.
func (c *FactContract) computeDigest() string {
	payload := fmt.Sprintf("candidateId=%s|yearsOfExperience=%d|expectedSalary=%d|hasFieldExperience=%t",
		c.candidateID, c.yearsOfExperience, c.expectedSalary, c.hasFieldExperience)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// VerifyIntegrity recomputes the digest from the current field values and
// compares it against the digest recorded at construction. Called at the start
// of every turn; a mismatch is fatal to the session.
func (c *FactContract) VerifyIntegrity() bool {
	return c.digest == c.computeDigest()
}

func (c *FactContract) CandidateID() string         { return c.candidateID }
func (c *FactContract) SessionID() string           { return c.sessionID }
func (c *FactContract) FullName() string            { return c.fullName }
func (c *FactContract) TargetRole() string          { return c.targetRole }
func (c *FactContract) YearsOfExperience() int      { return c.yearsOfExperience }
func (c *FactContract) ExpectedSalary() int         { return c.expectedSalary }
func (c *FactContract) HasFieldExperience() bool    { return c.hasFieldExperience }
func (c *FactContract) ProximityToBranch() string   { return c.proximityToBranch }
func (c *FactContract) CanStartImmediately() string { return c.canStartImmediately }
func (c *FactContract) AcademicStatus() string      { return c.academicStatus }
func (c *FactContract) CreatedAt() time.Time        { return c.createdAt }
func (c *FactContract) Digest() string              { return c.digest }

// FactSummary renders the contract facts as the Arabic block embedded verbatim
// in the system prompt.
func (c *FactContract) FactSummary() string {
	fieldExp := "لا"
	if c.hasFieldExperience {
		fieldExp = "نعم"
	}
	proximity := c.proximityToBranch
	if proximity == "" {
		proximity = "غير محدد"
	}
	return fmt.Sprintf(`# حقائق المتقدم (من قاعدة البيانات - لا يمكن تغييرها)

- الاسم: %s
- الوظيفة المطلوبة: %s
- عدد سنوات الخبرة: %d سنة (بالضبط)
- الراتب المتوقع: %d دينار (بالضبط)
- خبرة في المجال: %s
- قرب السكن: %s

هذه الأرقام دقيقة من قاعدة البيانات. إذا ذكرتها، استخدم الأرقام الدقيقة.`,
		c.fullName, c.targetRole, c.yearsOfExperience, c.expectedSalary, fieldExp, proximity)
}

// RegistrationReader fetches one registration record by candidate identifier.
type RegistrationReader interface {
	GetRegistration(ctx context.Context, candidateID string) (*models.RegistrationRecord, error)
}

// Loader reads declared-facts records and freezes them into contracts.
type Loader struct {
	store RegistrationReader
}

// NewLoader returns a Loader backed by the given registration reader.
func NewLoader(store RegistrationReader) *Loader {
	return &Loader{store: store}
}

// Load fetches the candidate's registration record and returns a frozen
// contract. Fails with ErrNotFound when no record exists and ErrValidation
// when required fields are missing or malformed.
func (l *Loader) Load(ctx context.Context, candidateID, sessionID string) (*FactContract, error) {
	rec, err := l.store.GetRegistration(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: candidate %s", ErrNotFound, candidateID)
	}

	c, err := New(rec, sessionID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("candidateId", candidateID).
		Str("sessionId", sessionID).
		Int("yearsOfExperience", c.yearsOfExperience).
		Str("digest", c.digest).
		Msg("Fact contract created")

	return c, nil
}
