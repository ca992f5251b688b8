package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/pkg/cryptox"
)

const DefaultCodeLength = 6

// VerificationCodeStore issues short numeric one-time codes over the
// ephemeral store. Codes are namespaced by purpose, so an activation code can
// never be redeemed as a password reset.
type VerificationCodeStore struct {
	KV store.Ephemeral
}

func NewVerificationCodeStore(kv store.Ephemeral) *VerificationCodeStore {
	return &VerificationCodeStore{KV: kv}
}

// CodeKey is the ephemeral store key for a code.
func CodeKey(purpose domain.CodePurpose, code string) string {
	return "verification:" + string(purpose) + ":" + code
}

// Create stores payload under a fresh code and returns the code. The purpose
// comes from the payload type.
func (s *VerificationCodeStore) Create(
	ctx context.Context,
	payload domain.CodePayload,
	length int,
	ttl time.Duration,
) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	code, err := cryptox.GenerateNumericCode(length)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", payload.Purpose(), err)
	}

	key := CodeKey(payload.Purpose(), code)
	if err := s.KV.Delete(ctx, key); err != nil {
		return "", err
	}
	if err := s.KV.Set(ctx, key, data, ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Get decodes the payload for code into dst without consuming it. dst must
// be a pointer to a payload type; its purpose picks the namespace. Unknown
// and expired codes both report false.
func (s *VerificationCodeStore) Get(ctx context.Context, code string, dst domain.CodePayload) (bool, error) {
	if !cryptox.IsNumericCode(code) {
		return false, nil
	}
	data, err := s.KV.Get(ctx, CodeKey(dst.Purpose(), code))
	return decodePayload(data, err, dst)
}

// Take is Get and Delete as one atomic step. Of any number of concurrent
// callers with the same code, at most one sees true.
func (s *VerificationCodeStore) Take(ctx context.Context, code string, dst domain.CodePayload) (bool, error) {
	if !cryptox.IsNumericCode(code) {
		return false, nil
	}
	data, err := s.KV.GetDelete(ctx, CodeKey(dst.Purpose(), code))
	return decodePayload(data, err, dst)
}

func (s *VerificationCodeStore) Delete(ctx context.Context, purpose domain.CodePurpose, code string) error {
	return s.KV.Delete(ctx, CodeKey(purpose, code))
}

func decodePayload(data []byte, err error, dst domain.CodePayload) (bool, error) {
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s payload: %w", dst.Purpose(), err)
	}
	return true, nil
}
