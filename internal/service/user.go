package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"neco/internal/identity"
	"neco/internal/store"

	"github.com/google/uuid"
)

const minPasswordLength = 6

// IdentityProvider is the external authority for accounts and tokens.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*identity.User, *identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
}

// Caller is the authenticated user behind a request.
type Caller struct {
	Auth    *identity.User
	Profile *store.User // nil when no local profile exists
}

// ID returns the provider-issued user id.
func (c *Caller) ID() uuid.UUID { return c.Auth.ID }

// SignUpParams holds the sign-up form.
type SignUpParams struct {
	Email    string
	Password string
	Username *string
	Role     string
}

// UserService couples identity provider accounts to local user profiles.
type UserService struct {
	identity IdentityProvider
	users    store.UserStore
}

func NewUserService(idp IdentityProvider, users store.UserStore) *UserService {
	return &UserService{identity: idp, users: users}
}

// SignUp creates the provider account and then the local profile under the
// same id. The session is nil when the provider wants email confirmation.
func (s *UserService) SignUp(ctx context.Context, p SignUpParams) (*store.User, *identity.Session, error) {
	email := strings.TrimSpace(p.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, BadRequest("invalid email address")
	}
	if len(p.Password) < minPasswordLength {
		return nil, nil, BadRequest("password must be at least %d characters", minPasswordLength)
	}

	account, session, err := s.identity.SignUp(ctx, email, p.Password)
	if err != nil {
		return nil, nil, identityFailure(err)
	}

	role := p.Role
	if role == "" {
		role = store.DefaultUserRole
	}
	user := &store.User{
		ID:       account.ID,
		Email:    email,
		Username: p.Username,
		Role:     role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, Conflict("email already registered")
		}
		return nil, nil, storeFailure(err)
	}
	return user, session, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*identity.Session, error) {
	if email == "" || password == "" {
		return nil, BadRequest("email and password are required")
	}
	session, err := s.identity.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, identityFailure(err)
	}
	return session, nil
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*identity.Session, error) {
	if refreshToken == "" {
		return nil, BadRequest("refresh_token is required")
	}
	session, err := s.identity.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, identityFailure(err)
	}
	return session, nil
}

func (s *UserService) Logout(ctx context.Context, accessToken string) error {
	if err := s.identity.SignOut(ctx, accessToken); err != nil {
		return identityFailure(err)
	}
	return nil
}

// Authenticate resolves an access token to the caller and their profile.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*Caller, error) {
	if accessToken == "" {
		return nil, Unauthenticated(errors.New("missing bearer token"))
	}

	account, err := s.identity.GetUser(ctx, accessToken)
	if err != nil {
		return nil, identityFailure(err)
	}

	profile, err := s.users.GetUserByEmail(ctx, account.Email)
	if err != nil {
		return nil, storeFailure(err)
	}
	return &Caller{Auth: account, Profile: profile}, nil
}

func identityFailure(err error) error {
	if errors.Is(err, identity.ErrUpstream) {
		return Upstream(err)
	}
	return Unauthenticated(err)
}
