// Package webhook receives inbound chat messages: the Evolution gateway
// callback and a direct message endpoint for integrations and testing.
package webhook

import (
	"context"
	"net/http"
	"strings"

	"github.com/lawjfmiranda/jurbot1/internal/whatsapp"
	"github.com/lawjfmiranda/jurbot1/platform/httpkit"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
	"github.com/lawjfmiranda/jurbot1/platform/phone"
	"github.com/lawjfmiranda/jurbot1/platform/validator"

	"github.com/gin-gonic/gin"
)

// MessageHandler processes one inbound message and returns the reply.
type MessageHandler interface {
	HandleMessage(ctx context.Context, identity, text string) (string, error)
}

// evolutionPayload is the Evolution API message callback shape. Only the
// fields the intake flow needs are mapped.
type evolutionPayload struct {
	Event string `json:"event"`
	Data  struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
		} `json:"key"`
		PushName    string `json:"pushName"`
		MessageType string `json:"messageType"`
		Message     struct {
			Conversation        string `json:"conversation"`
			ExtendedTextMessage struct {
				Text string `json:"text"`
			} `json:"extendedTextMessage"`
		} `json:"message"`
	} `json:"data"`
}

func (p *evolutionPayload) text() string {
	if p.Data.Message.Conversation != "" {
		return p.Data.Message.Conversation
	}
	return p.Data.Message.ExtendedTextMessage.Text
}

type directMessageRequest struct {
	Identity string `json:"identity" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

// Handler wires inbound payloads into the conversation engine.
type Handler struct {
	engine MessageHandler
	sender whatsapp.Sender
	val    *validator.Validator
	log    *logger.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(engine MessageHandler, sender whatsapp.Sender, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{engine: engine, sender: sender, val: val, log: log}
}

// HandleEvolution processes the gateway callback. Non-text and group
// messages are acknowledged and ignored; the gateway retries on non-2xx, so
// only store failures surface as 500.
func (h *Handler) HandleEvolution(c *gin.Context) {
	var payload evolutionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "bad_payload"})
		return
	}

	jid := payload.Data.Key.RemoteJid
	if payload.Data.Key.FromMe || strings.HasSuffix(jid, "@g.us") {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "not_inbound"})
		return
	}

	text := strings.TrimSpace(payload.text())
	identity := phone.FromJID(jid)
	if identity == "" || text == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "missing_data"})
		return
	}

	reply, err := h.engine.HandleMessage(c.Request.Context(), identity, text)
	if err != nil {
		h.log.Error("message processing failed", "identity", logger.Redact(identity), "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	sent := false
	if reply != "" && h.sender != nil {
		if err := h.sender.SendMessage(c.Request.Context(), identity, reply); err != nil {
			h.log.ExternalCallFailed("whatsapp", err)
		} else {
			sent = true
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "sent": sent})
}

// HandleDirectMessage processes a message without the gateway envelope and
// returns the reply in the response body.
func (h *Handler) HandleDirectMessage(c *gin.Context) {
	var req directMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	reply, err := h.engine.HandleMessage(c.Request.Context(), phone.NormalizeE164(req.Identity), req.Message)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, gin.H{"reply": reply})
}
