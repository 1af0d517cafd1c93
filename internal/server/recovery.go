package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetGenerationRecovery(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	conversationID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_conversation_id", "invalid value"))
		return
	}

	state, err := s.generationSvc.Recovery(c.Request.Context(), conversationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}
