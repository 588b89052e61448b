package warehouse

import (
	"time"

	"github.com/google/uuid"

	"github.com/kvasst/depot/internal/storage/types"
)

// User is an operator account. Users are not tracked in the history store.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
}

// CreateUserRequest describes a new user. An empty ID gets a generated one.
type CreateUserRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func userFromRecord(rec types.Record) User {
	return User{
		ID:        rec.ID(),
		CreatedAt: rec.CreatedAt(),
		Name:      str(rec, "name"),
		Role:      str(rec, "role"),
	}
}

// CreateUser creates a user.
func (s *Service) CreateUser(req CreateUserRequest) (User, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	user := User{ID: id, CreatedAt: s.now(), Name: req.Name, Role: req.Role}
	rec := types.NewRecord(id, user.CreatedAt)
	if user.Name != "" {
		rec["name"] = user.Name
	}
	if user.Role != "" {
		rec["role"] = user.Role
	}
	if err := s.engine.Put(types.KindUser, id, rec); err != nil {
		return User{}, wrapOp("create user", id, err)
	}
	return user, nil
}

// GetUser returns one user.
func (s *Service) GetUser(id string) (User, error) {
	rec, err := s.engine.Get(types.KindUser, id)
	if err != nil {
		return User{}, err
	}
	return userFromRecord(rec), nil
}

// ListUsers returns all users.
func (s *Service) ListUsers() ([]User, error) {
	recs, err := s.engine.List(types.KindUser)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, userFromRecord(rec))
	}
	return users, nil
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(id string) error {
	if err := s.engine.Delete(types.KindUser, id); err != nil {
		return wrapOp("delete user", id, err)
	}
	return nil
}
