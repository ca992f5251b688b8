package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/pkg/cryptox"
	"github.com/aussiebroadwan/tavern/pkg/idx"
	"github.com/aussiebroadwan/tavern/pkg/jwtx"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

// PasswordHasher hashes and checks passwords. *cryptox.Argon2Hasher
// implements it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// CodeConfig sets verification code length and lifetimes per purpose.
type CodeConfig struct {
	Length           int
	ActivationTTL    time.Duration
	PasswordResetTTL time.Duration
	EmailChangeTTL   time.Duration
}

var DefaultCodeConfig = CodeConfig{
	Length:           DefaultCodeLength,
	ActivationTTL:    24 * time.Hour,
	PasswordResetTTL: 30 * time.Minute,
	EmailChangeTTL:   time.Hour,
}

// AuthService runs the account flows: registration, login, refresh,
// revocation, verification codes and federated linking.
type AuthService struct {
	Store         store.Store
	Hasher        PasswordHasher
	AccessTokens  *TokenService
	RefreshTokens *TokenService
	Scopes        *ScopeResolver
	Codes         *VerificationCodeStore
	Federated     *FederatedService
	Observer      Observer
	CodeConfig    CodeConfig
	Now           func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// RegisterResult carries the new account and the activation code to deliver.
// The code is empty for accounts created already active.
type RegisterResult struct {
	User           domain.User
	ActivationCode string
}

// LoginResult is a token pair and the account it was issued to.
type LoginResult struct {
	User   domain.User
	Tokens domain.TokenPair
}

// Register creates an inactive member account and issues its activation code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	user, err := s.createUser(ctx, in, domain.RoleUser, false)
	if err != nil {
		return RegisterResult{}, err
	}

	code, err := s.Codes.Create(ctx, domain.ActivationPayload{UserID: user.ID},
		s.CodeConfig.Length, s.CodeConfig.ActivationTTL)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("issue activation code: %w", err)
	}

	s.notify(ctx, Event{
		Type:     EventUserRegistered,
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Code:     code,
		CodeTTL:  s.CodeConfig.ActivationTTL,
	})
	return RegisterResult{User: user, ActivationCode: code}, nil
}

// RegisterSuperuser creates an active admin account. It is the bootstrap
// path and issues no activation code.
func (s *AuthService) RegisterSuperuser(ctx context.Context, in RegisterInput) (domain.User, error) {
	user, err := s.createUser(ctx, in, domain.RoleAdmin, true)
	if err != nil {
		return domain.User{}, err
	}

	s.notify(ctx, Event{Type: EventUserRegistered, UserID: user.ID, Username: user.Username, Email: user.Email})
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, roleTag string, superuser bool) (domain.User, error) {
	l := slogx.FromContext(ctx)

	in.normalize()
	if err := in.Validate(); err != nil {
		return domain.User{}, invalidInput(err)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	salt, err := newSecretSalt()
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		SecretSalt:   salt,
		IsActivated:  superuser,
		IsSuperuser:  superuser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := tx.Roles().GetRoleByTag(ctx, roleTag)
		if err != nil {
			return fmt.Errorf("load %s role: %w", roleTag, err)
		}
		user.Roles = []domain.Role{role}
		return tx.Users().CreateUser(ctx, user)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		l.Info("registration collided with an existing account")
		return domain.User{}, ErrUserAlreadyExists
	}
	if err != nil {
		return domain.User{}, err
	}

	l.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", roleTag),
	)
	return user, nil
}

// Authenticate checks a username and password and issues a token pair.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		// Spend the same hashing time as a real check.
		s.Hasher.Verify(password, s.dummy())
		l.Info("login failed", slog.String("reason", "unknown_user"))
		return LoginResult{}, ErrIncorrectCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		l.Info("login failed", slog.String("reason", "bad_password"), slog.String("user_id", user.ID))
		return LoginResult{}, ErrIncorrectCredentials
	}
	if !user.IsActivated {
		return LoginResult{}, ErrInactiveUser
	}

	return s.login(ctx, user)
}

// LoginFederated issues a token pair to the account linked to a verified
// provider assertion.
func (s *AuthService) LoginFederated(ctx context.Context, a openidx.Assertion) (LoginResult, error) {
	user, err := s.Federated.Resolve(ctx, a)
	if err != nil {
		return LoginResult{}, err
	}
	if !user.IsActivated {
		return LoginResult{}, ErrInactiveUser
	}
	return s.login(ctx, user)
}

func (s *AuthService) login(ctx context.Context, user domain.User) (LoginResult, error) {
	pair, err := s.issuePair(user)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.Store.Users().TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		return LoginResult{}, fmt.Errorf("touch last login: %w", err)
	}

	slogx.FromContext(ctx).Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("session_id", pair.SessionID),
	)
	s.notify(ctx, Event{Type: EventUserLoggedIn, UserID: user.ID, Username: user.Username, SessionID: pair.SessionID})
	return LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) issuePair(user domain.User) (domain.TokenPair, error) {
	scopes := s.Scopes.EffectiveScopes(user.Roles)
	sessionID := idx.New().String()
	claims := jwtx.NewClaims(user.ID, sessionID, user.SecretSalt, scopes)

	access, accessExp, err := s.AccessTokens.Issue(claims, 0)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := s.RefreshTokens.Issue(claims, 0)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		Scopes:           scopes,
		SessionID:        sessionID,
	}, nil
}

// Refresh mints a new access token from a refresh token. Scopes are
// recomputed from the account's current roles and the refresh token is
// returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.RefreshTokens.Decode(refreshToken)
	if err != nil {
		l.Info("refresh rejected", slog.Any("error", err))
		return domain.TokenPair{}, ErrInvalidCredentials
	}
	if err := claims.ValidateExpiryAt(s.now()); err != nil || claims.Subject == "" {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.liveUser(ctx, claims.Subject, claims.Secret)
	if err != nil {
		return domain.TokenPair{}, err
	}

	scopes := s.Scopes.EffectiveScopes(user.Roles)
	access, accessExp, err := s.AccessTokens.Issue(jwtx.NewClaims(user.ID, claims.SID, user.SecretSalt, scopes), 0)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if err := s.Store.Users().TouchLastSeen(ctx, user.ID, s.now()); err != nil {
		l.Warn("failed to touch last seen", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: claims.ExpiresAt.Time,
		Scopes:           scopes,
		SessionID:        claims.SID,
	}, nil
}

// Authorize is the bearer check behind every protected route. The token must
// decode, its salt must match the account's live salt, and it must carry
// every required scope.
func (s *AuthService) Authorize(ctx context.Context, accessToken string, required ...string) (domain.Principal, error) {
	p, err := s.AccessTokens.DecodePrincipal(accessToken)
	if err != nil {
		return domain.Principal{}, ErrInvalidCredentials
	}

	user, err := s.liveUser(ctx, p.UserID, p.Secret)
	if err != nil {
		return domain.Principal{}, err
	}

	if !p.HasScopes(required...) {
		return domain.Principal{}, ErrNoPermissions
	}

	if err := s.Store.Users().TouchLastSeen(ctx, user.ID, s.now()); err != nil {
		slogx.FromContext(ctx).Warn("failed to touch last seen", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	return p, nil
}

// liveUser loads the token's subject and checks the token's salt snapshot
// against the stored one.
func (s *AuthService) liveUser(ctx context.Context, userID, secret string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}

	if subtle.ConstantTimeCompare([]byte(secret), []byte(user.SecretSalt)) != 1 {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Logout revokes every token issued to the account.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.rotateSalt(ctx, userID); err != nil {
		return err
	}
	s.notify(ctx, Event{Type: EventUserLoggedOut, UserID: userID})
	return nil
}

// ChangePassword replaces the password after checking the current one and
// revokes every outstanding token.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.Hasher.Verify(current, user.PasswordHash) {
		return ErrIncorrectCredentials
	}

	if err := s.setPassword(ctx, user.ID, next); err != nil {
		return err
	}
	s.notify(ctx, Event{Type: EventPasswordChanged, UserID: user.ID, Username: user.Username, Email: user.Email})
	return nil
}

// Ban assigns the banned role, which empties the account's scopes, and
// revokes every outstanding token.
func (s *AuthService) Ban(ctx context.Context, userID string) error {
	salt, err := newSecretSalt()
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := tx.Roles().GetRoleByTag(ctx, domain.RoleBanned)
		if err != nil {
			return fmt.Errorf("load banned role: %w", err)
		}
		if err := tx.Users().UpdateSecretSalt(ctx, userID, salt); err != nil {
			return err
		}
		return tx.Users().AssignRole(ctx, userID, role.ID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user banned", slog.String("user_id", userID))
	s.notify(ctx, Event{Type: EventUserBanned, UserID: userID})
	return nil
}

// Unban removes the banned role. Tokens are revoked again so the account has
// to log in to pick up its restored scopes.
func (s *AuthService) Unban(ctx context.Context, userID string) error {
	salt, err := newSecretSalt()
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := tx.Roles().GetRoleByTag(ctx, domain.RoleBanned)
		if err != nil {
			return fmt.Errorf("load banned role: %w", err)
		}
		if err := tx.Users().UpdateSecretSalt(ctx, userID, salt); err != nil {
			return err
		}
		err = tx.Users().RemoveRole(ctx, userID, role.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil // not banned
		}
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user unbanned", slog.String("user_id", userID))
	s.notify(ctx, Event{Type: EventUserUnbanned, UserID: userID})
	return nil
}

// Activate redeems an activation code.
func (s *AuthService) Activate(ctx context.Context, code string) error {
	var payload domain.ActivationPayload
	ok, err := s.Codes.Take(ctx, code, &payload)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}

	user, err := s.Store.Users().GetUserByID(ctx, payload.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidOrExpiredCode
	}
	if err != nil {
		return err
	}
	if user.IsActivated {
		return ErrAlreadyActivated
	}

	if err := s.Store.Users().SetActivated(ctx, user.ID, true); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user activated", slog.String("user_id", user.ID))
	s.notify(ctx, Event{Type: EventUserActivated, UserID: user.ID, Username: user.Username, Email: user.Email})
	return nil
}

// ResendActivation issues a fresh activation code for an inactive account.
// Unknown and already active addresses succeed silently.
func (s *AuthService) ResendActivation(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.IsActivated {
		return nil
	}

	// Housekeeping prunes on updated_at, so the account outlives the new code.
	if err := s.Store.Users().TouchUpdated(ctx, user.ID, s.now()); err != nil {
		return err
	}

	code, err := s.Codes.Create(ctx, domain.ActivationPayload{UserID: user.ID},
		s.CodeConfig.Length, s.CodeConfig.ActivationTTL)
	if err != nil {
		return fmt.Errorf("issue activation code: %w", err)
	}

	s.notify(ctx, Event{
		Type:     EventActivationRequested,
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Code:     code,
		CodeTTL:  s.CodeConfig.ActivationTTL,
	})
	return nil
}

// RequestPasswordReset issues a reset code for the account with email.
// Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	code, err := s.Codes.Create(ctx, domain.PasswordResetPayload{Email: user.Email},
		s.CodeConfig.Length, s.CodeConfig.PasswordResetTTL)
	if err != nil {
		return fmt.Errorf("issue password reset code: %w", err)
	}

	s.notify(ctx, Event{
		Type:     EventPasswordResetRequested,
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Code:     code,
		CodeTTL:  s.CodeConfig.PasswordResetTTL,
	})
	return nil
}

// CheckPasswordResetCode reports the masked address a reset code belongs to
// without consuming it. The full address is never returned, so guessing a
// live code does not reveal who it belongs to.
func (s *AuthService) CheckPasswordResetCode(ctx context.Context, code string) (string, error) {
	var payload domain.PasswordResetPayload
	ok, err := s.Codes.Get(ctx, code, &payload)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidOrExpiredCode
	}
	return maskEmail(payload.Email), nil
}

// ResetPassword redeems a reset code, sets the new password and revokes every
// outstanding token.
func (s *AuthService) ResetPassword(ctx context.Context, code, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	var payload domain.PasswordResetPayload
	ok, err := s.Codes.Take(ctx, code, &payload)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, payload.Email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidOrExpiredCode
	}
	if err != nil {
		return err
	}

	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset", slog.String("user_id", user.ID))
	s.notify(ctx, Event{Type: EventPasswordChanged, UserID: user.ID, Username: user.Username, Email: user.Email})
	return nil
}

// RequestEmailChange issues a code that moves the account to newEmail once
// redeemed.
func (s *AuthService) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	newEmail = normalizeEmail(newEmail)
	if err := validateEmail(newEmail); err != nil {
		return err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Email == newEmail {
		return ErrEmailUnchanged
	}

	_, err = s.Store.Users().GetUserByEmail(ctx, newEmail)
	switch {
	case err == nil:
		return ErrUserAlreadyExists
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	code, err := s.Codes.Create(ctx, domain.EmailChangePayload{UserID: user.ID, NewEmail: newEmail},
		s.CodeConfig.Length, s.CodeConfig.EmailChangeTTL)
	if err != nil {
		return fmt.Errorf("issue email change code: %w", err)
	}

	s.notify(ctx, Event{
		Type:     EventEmailChangeRequested,
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		NewEmail: newEmail,
		Code:     code,
		CodeTTL:  s.CodeConfig.EmailChangeTTL,
	})
	return nil
}

// ConfirmEmailChange redeems an email change code.
func (s *AuthService) ConfirmEmailChange(ctx context.Context, code string) error {
	var payload domain.EmailChangePayload
	ok, err := s.Codes.Take(ctx, code, &payload)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}

	err = s.Store.Users().UpdateEmail(ctx, payload.UserID, payload.NewEmail)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrUserAlreadyExists
	case errors.Is(err, store.ErrNotFound):
		return ErrInvalidOrExpiredCode
	case err != nil:
		return err
	}

	slogx.FromContext(ctx).Info("email changed", slog.String("user_id", payload.UserID))
	s.notify(ctx, Event{Type: EventEmailChanged, UserID: payload.UserID, Email: payload.NewEmail})
	return nil
}

// ConnectFederatedIdentity links a verified provider identity to userID.
func (s *AuthService) ConnectFederatedIdentity(
	ctx context.Context,
	userID string,
	a openidx.Assertion,
) (domain.FederatedIdentity, error) {
	fi, err := s.Federated.Authenticate(ctx, userID, a)
	if err != nil {
		return domain.FederatedIdentity{}, err
	}
	s.notify(ctx, Event{Type: EventFederatedIdentityLinked, UserID: userID})
	return fi, nil
}

func (s *AuthService) getUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	salt, err := newSecretSalt()
	if err != nil {
		return err
	}

	err = s.Store.Users().UpdatePassword(ctx, userID, hash, salt)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *AuthService) rotateSalt(ctx context.Context, userID string) error {
	salt, err := newSecretSalt()
	if err != nil {
		return err
	}

	err = s.Store.Users().UpdateSecretSalt(ctx, userID, salt)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *AuthService) notify(ctx context.Context, e Event) {
	if s.Observer == nil {
		return
	}
	e.At = s.now()
	if err := s.Observer.Notify(ctx, e); err != nil {
		slogx.FromContext(ctx).Warn("observer failed",
			slog.String("event", string(e.Type)),
			slog.String("user_id", e.UserID),
			slog.Any("error", err),
		)
	}
}

// dummy is a real digest for a random password, checked against when the
// login username does not exist.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		pw, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return
		}
		s.dummyDigest, _ = s.Hasher.Hash(pw)
	})
	return s.dummyDigest
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func newSecretSalt() (string, error) {
	salt, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("generate secret salt: %w", err)
	}
	return salt, nil
}
