package devapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/goTodo/credential"
	"github.com/MrEthical07/goTodo/internal/rate"
	"github.com/MrEthical07/goTodo/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserName string `json:"userName"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	Email        string `json:"email"`
	UserName     string `json:"userName"`
	Role         string `json:"role"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (s *Server) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if !strings.Contains(req.Email, "@") || len(req.Password) < 4 {
		abort(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	u, err := s.state.createUser(req.Email, req.Password, req.UserName, credential.RoleCommon)
	switch {
	case errors.Is(err, errDuplicateEmail):
		abort(c, http.StatusBadRequest, msgDuplicateEmail)
		return
	case err != nil:
		s.logger.Error("create user failed", zap.Error(err))
		abort(c, http.StatusInternalServerError, msgInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":    u.Email,
		"userName": u.UserName,
		"joinDate": u.JoinedAt,
	})
}

func (s *Server) checkEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		abort(c, http.StatusBadRequest, msgEmailRequired)
		return
	}
	c.JSON(http.StatusOK, s.state.emailTaken(email))
}

func (s *Server) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	ctx := c.Request.Context()
	ip := c.ClientIP()

	if err := s.limiter.CheckSignIn(ctx, req.Email, ip); err != nil {
		s.abortLimited(c, err)
		return
	}

	u, ok := s.state.authenticate(req.Email, req.Password)
	if !ok {
		if err := s.limiter.FailSignIn(ctx, req.Email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			s.logger.Warn("sign-in counter failed", zap.Error(err))
		}
		abort(c, http.StatusBadRequest, msgBadCredentials)
		return
	}
	if err := s.limiter.ResetSignIn(ctx, req.Email, ip); err != nil {
		s.logger.Warn("sign-in counter reset failed", zap.Error(err))
	}

	resp, err := s.issue(c, u, true)
	if err != nil {
		return
	}
	s.logger.Info("signed in", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		abort(c, http.StatusUnauthorized, msgInvalidRefresh)
		return
	}
	ctx := c.Request.Context()

	userID, sid, err := s.sessions.Verify(ctx, req.RefreshToken)
	if err != nil {
		if !errors.Is(err, errInvalidRefresh) {
			s.logger.Warn("refresh session lookup failed", zap.Error(err))
		}
		abort(c, http.StatusUnauthorized, msgInvalidRefresh)
		return
	}
	if err := s.limiter.AllowRefresh(ctx, sid); err != nil {
		s.abortLimited(c, err)
		return
	}

	u, err := s.state.user(userID)
	if err != nil {
		abort(c, http.StatusUnauthorized, msgInvalidRefresh)
		return
	}
	access, err := s.jwt.CreateAccess(u.ID, u.Email, string(u.Role))
	if err != nil {
		s.logger.Error("sign access token failed", zap.Error(err))
		abort(c, http.StatusInternalServerError, msgInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access})
}

func (s *Server) logout(c *gin.Context) {
	cl := claims(c)
	if err := s.sessions.RevokeUser(c.Request.Context(), cl.Subject); err != nil {
		s.logger.Error("revoke refresh sessions failed", zap.Error(err))
		abort(c, http.StatusInternalServerError, msgInternal)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "LOGGED_OUT"})
}

func (s *Server) promote(c *gin.Context) {
	u, err := s.state.promote(claims(c).Subject)
	switch {
	case errors.Is(err, errNotCommon):
		abort(c, http.StatusBadRequest, msgNotCommon)
		return
	case err != nil:
		abort(c, http.StatusUnauthorized, middleware.MessageInvalidAuth)
		return
	}

	resp, err := s.issue(c, u, false)
	if err != nil {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// issue signs an access token and, when withRefresh is set, opens a refresh
// session. On failure the reply is already written.
func (s *Server) issue(c *gin.Context, u user, withRefresh bool) (loginResponse, error) {
	access, err := s.jwt.CreateAccess(u.ID, u.Email, string(u.Role))
	if err != nil {
		s.logger.Error("sign access token failed", zap.Error(err))
		abort(c, http.StatusInternalServerError, msgInternal)
		return loginResponse{}, err
	}
	resp := loginResponse{
		Email:    u.Email,
		UserName: u.UserName,
		Role:     string(u.Role),
		Token:    access,
	}
	if withRefresh {
		resp.RefreshToken, err = s.sessions.Issue(c.Request.Context(), u.ID)
		if err != nil {
			s.logger.Error("open refresh session failed", zap.Error(err))
			abort(c, http.StatusInternalServerError, msgInternal)
			return loginResponse{}, err
		}
	}
	return resp, nil
}

func (s *Server) abortLimited(c *gin.Context, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		abort(c, http.StatusTooManyRequests, msgTooManyAttempts)
		return
	}
	s.logger.Error("rate limiter failed", zap.Error(err))
	abort(c, http.StatusInternalServerError, msgInternal)
}
