// Package token issues and verifies the gate pass: a signed, time-boxed
// credential embedding the approval status it was issued under, rendered
// as a QR image for presentation at the gate.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	qrcode "github.com/skip2/go-qrcode"

	"gatepass/visits/internal/db"
)

const (
	KindGatePass = "gatepass"

	DefaultTTL    = 48 * time.Hour
	defaultQRSize = 256
)

var (
	ErrMalformed = errors.New("token malformed")
	ErrExpired   = errors.New("token expired")
)

// Payload is the wire record embedded in every pass. Field order is fixed;
// the serialized form is persisted verbatim alongside the rendered image.
type Payload struct {
	Kind           string            `json:"kind"`
	PreApprovalID  string            `json:"pre_approval_id"`
	VisitID        string            `json:"visit_id"`
	VisitorName    string            `json:"visitor_name"`
	VisitorPhone   string            `json:"visitor_phone"`
	VisitorEmail   string            `json:"visitor_email"`
	Purpose        string            `json:"purpose"`
	ExpectedDate   string            `json:"expected_date"`
	ExpectedTime   string            `json:"expected_time"`
	FlatNumber     string            `json:"flat_number"`
	ResidentID     string            `json:"resident_id"`
	BuildingID     string            `json:"building_id"`
	ApprovalStatus db.ApprovalStatus `json:"approval_status"`
	IssuedAt       int64             `json:"issued_at"`
	ExpiresAt      int64             `json:"expires_at"`
}

type claims struct {
	Payload
	jwt.RegisteredClaims
}

// Pass is one issued credential. Values are never mutated after issuance;
// rotation produces a new Pass and archives the old one.
type Pass struct {
	Payload   Payload
	Data      []byte
	String    string
	Image     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	qrSize int
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, qrSize: defaultQRSize}
}

// Issue stamps the payload with kind, issuance and expiry, signs it and
// renders the QR image. Callers pass the payload by value; the input is
// never written back.
func (i *Issuer) Issue(payload Payload, now time.Time) (*Pass, error) {
	now = now.UTC()
	expiresAt := now.Add(i.ttl)

	payload.Kind = KindGatePass
	payload.IssuedAt = now.Unix()
	payload.ExpiresAt = expiresAt.Unix()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.VisitID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(signed, qrcode.Medium, i.qrSize)
	if err != nil {
		return nil, err
	}

	return &Pass{
		Payload:   payload,
		Data:      data,
		String:    signed,
		Image:     base64.StdEncoding.EncodeToString(png),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse checks the signature and returns the embedded payload. Expiry is
// not enforced here so verification can report it as a distinct reason.
func (i *Issuer) Parse(tokenString string) (Payload, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return Payload{}, ErrMalformed
	}
	parsed, ok := token.Claims.(*claims)
	if !ok || parsed.Kind != KindGatePass {
		return Payload{}, ErrMalformed
	}
	return parsed.Payload, nil
}

func (p Payload) Expired(now time.Time) bool {
	return now.UTC().Unix() >= p.ExpiresAt
}
