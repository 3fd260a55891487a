package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docassist/internal/ai"
	"github.com/xxxsen/docassist/internal/model"
	"github.com/xxxsen/docassist/internal/pkg/response"
	"github.com/xxxsen/docassist/internal/service"
)

type AssistantHandler struct {
	assistant *service.AssistantService
	feedback  *service.FeedbackService
}

func NewAssistantHandler(assistant *service.AssistantService, feedback *service.FeedbackService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, feedback: feedback}
}

type chatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required,max=6000"`
}

type assistantRequest struct {
	Question string        `json:"question" binding:"required,max=4000"`
	History  []chatMessage `json:"history" binding:"omitempty,dive"`
	TopK     int           `json:"top_k" binding:"omitempty,min=1,max=12"`
}

type assistantResponse struct {
	Answer    string         `json:"answer"`
	Sources   []model.Source `json:"sources"`
	Followups []string       `json:"followups"`
	AnswerID  string         `json:"answer_id"`
}

type feedbackRequest struct {
	AnswerID string `json:"answer_id" binding:"required"`
	Vote     string `json:"vote" binding:"required,oneof=up down"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (r assistantRequest) toAskRequest() service.AskRequest {
	history := make([]ai.Message, 0, len(r.History))
	for _, turn := range r.History {
		history = append(history, ai.Message{Role: turn.Role, Content: turn.Content})
	}
	return service.AskRequest{
		Question: r.Question,
		History:  history,
		TopK:     r.TopK,
	}
}

func toResponse(answer *service.Answer) assistantResponse {
	sources := answer.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	return assistantResponse{
		Answer:    answer.Text,
		Sources:   sources,
		Followups: answer.Followups,
		AnswerID:  answer.AnswerID,
	}
}

func (h *AssistantHandler) Ask(c *gin.Context) {
	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	answer, err := h.assistant.Ask(c.Request.Context(), req.toAskRequest())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(answer))
}

func (h *AssistantHandler) Stream(c *gin.Context) {
	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}

	wrote := false
	emit := func(ev service.StreamEvent) error {
		if !wrote {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			wrote = true
		}
		switch ev.Type {
		case "delta":
			c.SSEvent("delta", gin.H{"delta": ev.Delta})
		case "final":
			c.SSEvent("final", toResponse(ev.Answer))
		}
		c.Writer.Flush()
		return nil
	}

	if err := h.assistant.StreamAnswer(c.Request.Context(), req.toAskRequest(), emit); err != nil {
		if !wrote {
			handleError(c, err)
			return
		}
		// Headers are out the door; all we can do is tell the client.
		c.SSEvent("error", gin.H{"message": "assistant unavailable"})
		c.Writer.Flush()
	}
}

func (h *AssistantHandler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	err := h.feedback.Save(c.Request.Context(), model.Feedback{
		AnswerID: req.AnswerID,
		Vote:     req.Vote,
		Question: req.Question,
		Answer:   req.Answer,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
