package devapi

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goTodo/credential"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errDuplicateEmail = errors.New("email already registered")
	errUserNotFound   = errors.New("user not found")
	errNotCommon      = errors.New("only common users can be promoted")
	errTodoNotFound   = errors.New("todo not found")
	errTodoLimit      = errors.New("todo limit reached")
)

type user struct {
	ID           string
	Email        string
	UserName     string
	PasswordHash []byte
	Role         credential.Role
	JoinedAt     time.Time
}

// Todo is one item of a user's list.
type Todo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// TodoList is the body of every to-do reply.
type TodoList struct {
	Todos []Todo `json:"todos"`
}

// state holds users and their to-dos.
type state struct {
	mu         sync.RWMutex
	usersByID  map[string]*user
	emailIndex map[string]string
	todos      map[string][]Todo
	bcryptCost int
}

func newState(cost int) *state {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &state{
		usersByID:  map[string]*user{},
		emailIndex: map[string]string{},
		todos:      map[string][]Todo{},
		bcryptCost: cost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *state) emailTaken(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emailIndex[normalizeEmail(email)]
	return ok
}

func (s *state) createUser(email, password, userName string, role credential.Role) (user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return user{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(email)
	if _, ok := s.emailIndex[key]; ok {
		return user{}, errDuplicateEmail
	}
	u := &user{
		ID:           uuid.New().String(),
		Email:        strings.TrimSpace(email),
		UserName:     userName,
		PasswordHash: hash,
		Role:         role,
		JoinedAt:     time.Now().UTC(),
	}
	s.usersByID[u.ID] = u
	s.emailIndex[key] = u.ID
	return *u, nil
}

// authenticate returns the user when password matches. Unknown emails still
// pay for a bcrypt comparison.
func (s *state) authenticate(email, password string) (user, bool) {
	s.mu.RLock()
	id, ok := s.emailIndex[normalizeEmail(email)]
	var u user
	if ok {
		u = *s.usersByID[id]
	}
	s.mu.RUnlock()

	hash := u.PasswordHash
	if !ok {
		hash = dummyHash
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || !ok {
		return user{}, false
	}
	return u, true
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.MinCost)

func (s *state) user(id string) (user, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return user{}, errUserNotFound
	}
	return *u, nil
}

func (s *state) promote(id string) (user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[id]
	if !ok {
		return user{}, errUserNotFound
	}
	if u.Role != credential.RoleCommon {
		return user{}, errNotCommon
	}
	u.Role = credential.RolePremium
	return *u, nil
}

func (s *state) list(userID string) TodoList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(userID)
}

func (s *state) listLocked(userID string) TodoList {
	out := make([]Todo, len(s.todos[userID]))
	copy(out, s.todos[userID])
	return TodoList{Todos: out}
}

// addTodo appends an item. limit > 0 caps the list length.
func (s *state) addTodo(userID, title string, limit int) (TodoList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > 0 && len(s.todos[userID]) >= limit {
		return TodoList{}, errTodoLimit
	}
	s.todos[userID] = append(s.todos[userID], Todo{ID: uuid.New().String(), Title: title})
	return s.listLocked(userID), nil
}

func (s *state) deleteTodo(userID, id string) (TodoList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.todos[userID]
	for i, t := range items {
		if t.ID == id {
			s.todos[userID] = append(items[:i:i], items[i+1:]...)
			return s.listLocked(userID), nil
		}
	}
	return TodoList{}, errTodoNotFound
}

// setDone updates item id when it exists; unknown ids leave the list as is.
func (s *state) setDone(userID, id string, done bool) TodoList {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.todos[userID] {
		if s.todos[userID][i].ID == id {
			s.todos[userID][i].Done = done
		}
	}
	return s.listLocked(userID)
}
