package devapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/goTodo/credential"
	"github.com/gin-gonic/gin"
)

type createTodoRequest struct {
	Title string `json:"title"`
}

type checkTodoRequest struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

func (s *Server) listTodos(c *gin.Context) {
	c.JSON(http.StatusOK, s.state.list(claims(c).Subject))
}

func (s *Server) createTodo(c *gin.Context) {
	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		abort(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	cl := claims(c)
	limit := 0
	if u, err := s.state.user(cl.Subject); err == nil && u.Role == credential.RoleCommon {
		limit = s.config.CommonLimit
	}

	list, err := s.state.addTodo(cl.Subject, strings.TrimSpace(req.Title), limit)
	if errors.Is(err, errTodoLimit) {
		abort(c, http.StatusForbidden, msgCommonLimit)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) deleteTodo(c *gin.Context) {
	list, err := s.state.deleteTodo(claims(c).Subject, c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, msgTodoNotFound)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) checkTodo(c *gin.Context) {
	var req checkTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		abort(c, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	c.JSON(http.StatusOK, s.state.setDone(claims(c).Subject, req.ID, req.Done))
}
