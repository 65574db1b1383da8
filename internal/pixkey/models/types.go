package models

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "pixkey/pkg/domain-errors"
)

// KeyType is the kind of alias a key represents.
type KeyType string

const (
	KeyTypeDocument KeyType = "DOCUMENT"
	KeyTypeEmail    KeyType = "EMAIL"
	KeyTypePhone    KeyType = "PHONE"
	KeyTypeEVP      KeyType = "EVP"
)

func (t KeyType) IsValid() bool {
	switch t {
	case KeyTypeDocument, KeyTypeEmail, KeyTypePhone, KeyTypeEVP:
		return true
	}
	return false
}

func (t KeyType) String() string { return string(t) }

// ParseKeyType accepts the type names case-insensitively; RANDOM is an alias of EVP.
func ParseKeyType(raw string) (KeyType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "RANDOM" {
		return KeyTypeEVP, nil
	}
	t := KeyType(normalized)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid key type")
	}
	return t, nil
}

var (
	documentPattern = regexp.MustCompile(`^(\d{11}|\d{14})$`)
	phonePattern    = regexp.MustCompile(`^\+55\d{10,11}$`)
)

// NormalizeKeyValue validates value against the rules of t and returns the
// canonical form that is stored and sent to the Directory. An empty EVP value
// yields a freshly generated random key.
func NormalizeKeyValue(t KeyType, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch t {
	case KeyTypeDocument:
		digits := strings.NewReplacer(".", "", "-", "", "/", "").Replace(value)
		if !documentPattern.MatchString(digits) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "document key must have 11 or 14 digits")
		}
		if !validCheckDigits(digits) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid document check digits")
		}
		return digits, nil
	case KeyTypeEmail:
		if len(value) > 77 {
			return "", dErrors.New(dErrors.CodeInvalidInput, "email key is too long")
		}
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid email key")
		}
		return strings.ToLower(value), nil
	case KeyTypePhone:
		if !phonePattern.MatchString(value) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "phone key must be in +55DDNNNNNNNNN format")
		}
		return value, nil
	case KeyTypeEVP:
		if value == "" {
			return uuid.NewString(), nil
		}
		parsed, err := uuid.Parse(value)
		if err != nil || parsed == uuid.Nil {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid random key")
		}
		return parsed.String(), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid key type")
	}
}

var (
	cpfWeights  = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// validCheckDigits verifies the two mod-11 check digits of a CPF (11 digits)
// or CNPJ (14 digits). Repeated-digit numbers are rejected.
func validCheckDigits(digits string) bool {
	if strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}
	weights := cpfWeights
	if len(digits) == 14 {
		weights = cnpjWeights
	}
	n := len(digits)
	for pos := n - 2; pos < n; pos++ {
		// the first check digit uses the weights without their leading entry
		w := weights[len(weights)-pos:]
		sum := 0
		for i := 0; i < pos; i++ {
			sum += int(digits[i]-'0') * w[i]
		}
		want := 0
		if r := sum % 11; r >= 2 {
			want = 11 - r
		}
		if int(digits[pos]-'0') != want {
			return false
		}
	}
	return true
}

// ClaimType distinguishes the two claim processes the Directory arbitrates.
type ClaimType string

const (
	ClaimTypeOwnership   ClaimType = "OWNERSHIP"
	ClaimTypePortability ClaimType = "PORTABILITY"
)

func (t ClaimType) IsValid() bool {
	return t == ClaimTypeOwnership || t == ClaimTypePortability
}

func (t ClaimType) String() string { return string(t) }

// ClaimReason records why a claim was opened or canceled.
type ClaimReason string

const (
	ReasonUserRequested    ClaimReason = "USER_REQUESTED"
	ReasonAccountClosure   ClaimReason = "ACCOUNT_CLOSURE"
	ReasonFraud            ClaimReason = "FRAUD"
	ReasonDefaultOperation ClaimReason = "DEFAULT_OPERATION"
)

func (r ClaimReason) IsValid() bool {
	switch r {
	case ReasonUserRequested, ReasonAccountClosure, ReasonFraud, ReasonDefaultOperation:
		return true
	}
	return false
}

func (r ClaimReason) String() string { return string(r) }

// ParseClaimReason defaults an empty reason to USER_REQUESTED.
func ParseClaimReason(raw string) (ClaimReason, error) {
	if strings.TrimSpace(raw) == "" {
		return ReasonUserRequested, nil
	}
	r := ClaimReason(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid claim reason")
	}
	return r, nil
}
