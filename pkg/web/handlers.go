package web

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-mimi/pkg/companion"
	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/hub"
	"github.com/teslashibe/go-mimi/pkg/reaction"
)

// PauseRequest is the body of POST /api/pause. A missing field toggles.
type PauseRequest struct {
	Paused *bool `json:"paused"`
}

// VoiceRequest is the body of POST /api/voice. A missing field toggles.
type VoiceRequest struct {
	Enabled *bool `json:"enabled"`
}

// SayRequest is the body of POST /api/say.
type SayRequest struct {
	Text string `json:"text"`
}

// SayResponse reports the outcome of a chat message.
type SayResponse struct {
	TaskID string             `json:"task_id"`
	Status reaction.Status    `json:"status"`
	Reply  *decision.Decision `json:"reply,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// handleStatus returns the companion snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.backend.Snapshot())
}

// handleHistory returns recent transcript entries; ?n= limits the count.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	n := c.QueryInt("n", 50)
	return c.JSON(s.backend.History(n))
}

func (s *Server) handlePause(c *fiber.Ctx) error {
	var req PauseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err)
		}
	}
	paused := !s.backend.Snapshot().Paused
	if req.Paused != nil {
		paused = *req.Paused
	}
	s.backend.SetPaused(paused)
	return c.JSON(fiber.Map{"paused": paused})
}

func (s *Server) handleVoice(c *fiber.Ctx) error {
	var req VoiceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err)
		}
	}
	enabled := !s.backend.Snapshot().VoiceEnabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	s.backend.SetVoice(enabled)
	return c.JSON(fiber.Map{"voice_enabled": enabled})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	s.backend.StopSpeaking()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSay queues a chat message and waits up to SayTimeout for the
// reply. A reply that takes longer is reported as 202 with the task ID.
func (s *Server) handleSay(c *fiber.Ctx) error {
	var req SayRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	task, err := s.backend.Say(req.Text)
	switch {
	case errors.Is(err, companion.ErrEmptyMessage):
		return errorJSON(c, fiber.StatusBadRequest, err)
	case err != nil:
		return errorJSON(c, fiber.StatusServiceUnavailable, err)
	}

	timer := time.NewTimer(s.config.SayTimeout)
	defer timer.Stop()
	select {
	case <-task.Done():
	case <-timer.C:
		return c.Status(fiber.StatusAccepted).JSON(SayResponse{TaskID: task.ID, Status: task.Status()})
	}

	resp := SayResponse{TaskID: task.ID, Status: task.Status()}
	if d, ok := task.Result().(*decision.Decision); ok {
		resp.Reply = d
	}
	if err := task.Err(); err != nil {
		resp.Error = err.Error()
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
	return c.JSON(resp)
}

// handleFrame serves the latest captured frame as JPEG. With
// ?annotated=1 the last analysis is drawn on it.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	frameJPEG := s.backend.FrameJPEG
	if c.QueryBool("annotated") {
		frameJPEG = s.backend.AnnotatedFrameJPEG
	}
	data, err := frameJPEG(s.config.FrameQuality)
	switch {
	case errors.Is(err, companion.ErrNoFrame):
		return errorJSON(c, fiber.StatusNotFound, err)
	case err != nil:
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// handleStatusWS streams snapshots, starting with the current one.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	var initial []hub.Message
	if data, err := json.Marshal(s.backend.Snapshot()); err == nil {
		initial = append(initial, hub.NewJSONMessage(data))
	}
	hub.Serve(s.statusHub, conn, initial...)
}

// handleTranscriptWS streams transcript entries, replaying recent ones.
func (s *Server) handleTranscriptWS(conn *websocket.Conn) {
	var initial []hub.Message
	if s.config.HistoryReplay > 0 {
		for _, e := range s.backend.History(s.config.HistoryReplay) {
			if data, err := json.Marshal(e); err == nil {
				initial = append(initial, hub.NewJSONMessage(data))
			}
		}
	}
	hub.Serve(s.transcriptHub, conn, initial...)
}
