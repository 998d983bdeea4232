package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/janhq/sql-agent/internal/domain/ask"
	"github.com/janhq/sql-agent/internal/domain/status"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver/handlers"
	"github.com/janhq/sql-agent/internal/interfaces/httpserver/responses"
	"github.com/janhq/sql-agent/internal/utils/platformerrors"
)

type askRequest struct {
	Question   string `json:"question" binding:"required" example:"How many orders were placed last month?"`
	StepBudget int    `json:"step_budget,omitempty" binding:"omitempty,min=1" example:"50"`
}

type askResponse struct {
	RunID   string        `json:"run_id" example:"7f1c2d9e-2b1a-4c55-a0f4-5d1e9b3c8a77"`
	Status  status.Status `json:"status" example:"completed"`
	Steps   int           `json:"steps" example:"8"`
	Outputs []string      `json:"outputs"`
	Final   string        `json:"final" example:"There were 42 orders last month."`
}

type legacyAskResponse struct {
	Outputs []string `json:"outputs"`
	Final   string   `json:"final"`
}

type runErrorResponse struct {
	responses.ErrorResponse
	Run *askResponse `json:"run,omitempty"`
}

func registerAskRoutes(router gin.IRoutes, handler *handlers.AskHandler) {
	router.POST("/ask", postAsk(handler))
	router.POST("/ask/stream", postAskStream(handler))
}

func toAskResponse(answer *ask.Answer) *askResponse {
	if answer == nil {
		return nil
	}
	return &askResponse{
		RunID:   answer.RunID,
		Status:  answer.Status,
		Steps:   answer.Steps,
		Outputs: answer.Outputs,
		Final:   answer.Final,
	}
}

func bindAsk(c *gin.Context) (ask.Request, bool) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "question is required and step_budget must be positive", "3c8e5f1a-7b24-4d9e-a6c0-1f5b2e8d7a43")
		return ask.Request{}, false
	}
	return ask.Request{Question: req.Question, StepBudget: req.StepBudget}, true
}

func writeRunError(c *gin.Context, err error, answer *ask.Answer) {
	var platformErr *platformerrors.PlatformError
	if !errors.As(err, &platformErr) {
		responses.HandleError(c, err, "run failed")
		return
	}
	platformerrors.LogError(log.Logger, platformErr)
	_ = c.Error(platformErr)

	message := platformErr.Message
	if platformErr.Err != nil && platformErr.Type != platformerrors.ErrorTypeUnavailable {
		message = platformErr.Err.Error()
	}
	c.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(platformErr.Type), runErrorResponse{
		ErrorResponse: responses.ErrorResponse{
			Code:      platformErr.UUID,
			Error:     message,
			RequestID: platformErr.RequestID,
		},
		Run: toAskResponse(answer),
	})
}

// postAsk godoc
// @Summary      Ask a question
// @Description  Runs the text-to-SQL workflow to completion. Outputs holds the content of the last message after every step, starting with the question.
// @Tags         ask
// @Accept       json
// @Produce      json
// @Param        request  body      askRequest  true  "Question and optional step budget"
// @Success      200      {object}  askResponse
// @Failure      400      {object}  responses.ErrorResponse  "Missing question or invalid step budget"
// @Failure      422      {object}  runErrorResponse         "Step budget exhausted"
// @Failure      502      {object}  runErrorResponse         "Language model unavailable"
// @Failure      503      {object}  responses.ErrorResponse  "Too many concurrent runs"
// @Router       /v1/ask [post]
func postAsk(handler *handlers.AskHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindAsk(c)
		if !ok {
			return
		}
		answer, err := handler.Ask(c.Request.Context(), req)
		if err != nil {
			writeRunError(c, err, answer)
			return
		}
		c.JSON(http.StatusOK, toAskResponse(answer))
	}
}

// legacyAsk godoc
// @Summary      Ask a question (legacy)
// @Description  Same workflow as /v1/ask returning only outputs and final.
// @Tags         ask
// @Accept       json
// @Produce      json
// @Param        request  body      askRequest  true  "Question"
// @Success      200      {object}  legacyAskResponse
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      422      {object}  runErrorResponse
// @Router       /ask [post]
func legacyAsk(handler *handlers.AskHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindAsk(c)
		if !ok {
			return
		}
		answer, err := handler.Ask(c.Request.Context(), req)
		if err != nil {
			writeRunError(c, err, answer)
			return
		}
		c.JSON(http.StatusOK, legacyAskResponse{Outputs: answer.Outputs, Final: answer.Final})
	}
}

// postAskStream godoc
// @Summary      Ask a question and stream every step
// @Description  Emits one "step" event per executed node, then a "result" event with the final answer or an "error" event.
// @Tags         ask
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      askRequest  true  "Question and optional step budget"
// @Success      200      {string}  string  "Server-sent events"
// @Failure      400      {object}  responses.ErrorResponse  "Missing question or invalid step budget"
// @Failure      503      {object}  responses.ErrorResponse  "Too many concurrent runs"
// @Router       /v1/ask/stream [post]
func postAskStream(handler *handlers.AskHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindAsk(c)
		if !ok {
			return
		}

		// Headers are sent with the first event so failures before any step
		// still get a regular status code.
		started := false
		ctx := c.Request.Context()
		answer, err := handler.Stream(ctx, req, func(ev ask.Event) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !started {
				startEventStream(c)
				started = true
			}
			c.SSEvent("step", ev)
			c.Writer.Flush()
			return nil
		})
		if err != nil && !started {
			writeRunError(c, err, answer)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var platformErr *platformerrors.PlatformError
			body := gin.H{"error": err.Error(), "run": toAskResponse(answer)}
			if errors.As(err, &platformErr) {
				platformerrors.LogError(log.Logger, platformErr)
				body["code"] = platformErr.UUID
				body["type"] = platformErr.Type
			}
			c.SSEvent("error", body)
			c.Writer.Flush()
			return
		}
		if !started {
			startEventStream(c)
		}
		c.SSEvent("result", toAskResponse(answer))
		c.Writer.Flush()
	}
}

func startEventStream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}
