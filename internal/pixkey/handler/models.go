package handler

import (
	"time"

	"pixkey/internal/pixkey/models"
	dErrors "pixkey/pkg/domain-errors"
)

// CreateKeyRequest registers a new key. An empty value with type EVP asks
// for a generated random key.
type CreateKeyRequest struct {
	KeyType  string `json:"key_type"`
	KeyValue string `json:"key_value"`
}

func (r *CreateKeyRequest) Validate() (models.KeyType, error) {
	if r.KeyType == "" {
		return "", dErrors.New(dErrors.CodeValidation, "key_type is required")
	}
	return models.ParseKeyType(r.KeyType)
}

// ReasonRequest carries the optional cancel reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r *ReasonRequest) Validate() (models.ClaimReason, error) {
	return models.ParseClaimReason(r.Reason)
}

type ClaimResponse struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	OpenedAt time.Time `json:"opened_at"`
}

type KeyResponse struct {
	ID        string         `json:"id"`
	KeyType   string         `json:"key_type"`
	KeyValue  string         `json:"key_value"`
	State     string         `json:"state"`
	Claim     *ClaimResponse `json:"claim,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type ListKeysResponse struct {
	Keys []KeyResponse `json:"keys"`
}

func toKeyResponse(k *models.Key) KeyResponse {
	resp := KeyResponse{
		ID:        k.ID.String(),
		KeyType:   string(k.KeyType),
		KeyValue:  k.KeyValue,
		State:     string(k.State),
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
	if k.Claim != nil {
		resp.Claim = &ClaimResponse{
			ID:       k.Claim.ID.String(),
			Type:     string(k.Claim.Type),
			Reason:   string(k.Claim.Reason),
			OpenedAt: k.Claim.OpenedAt,
		}
	}
	return resp
}
