package gateway

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/comms-gateway/internal/models"
	"github.com/example/comms-gateway/internal/providers"
	"github.com/example/comms-gateway/internal/providers/email"
	"github.com/example/comms-gateway/internal/providers/voice"
)

func (s *Server) createConversation(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Conversation.CreateConversation(c.Request().Context(), fields)
	if err != nil {
		return err
	}
	return writeResult(c, res)
}

func (s *Server) deleteConversation(c echo.Context) error {
	if err := s.deps.Conversation.DeleteConversation(c.Request().Context(), c.Param("conversation_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) createMessage(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Conversation.CreateMessage(c.Request().Context(), c.Param("conversation_id"), fields)
	if err != nil {
		return err
	}
	return writeResult(c, res)
}

func (s *Server) listMessages(c echo.Context) error {
	res, err := s.deps.Conversation.ListMessages(c.Request().Context(), c.Param("conversation_id"))
	if err != nil {
		return err
	}
	return writeResult(c, res)
}

func (s *Server) deleteMessage(c echo.Context) error {
	err := s.deps.Conversation.DeleteMessage(c.Request().Context(), c.Param("conversation_id"), c.Param("message_id"))
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// uploadMedia streams the file named by the file_path query parameter. A
// missing file_name defaults to the base name of the path.
func (s *Server) uploadMedia(c echo.Context) error {
	handle, err := models.NewMediaHandle(c.QueryParam("file_path"), c.QueryParam("file_name"))
	if err != nil {
		return providers.Invalid(fmt.Errorf("gateway: file_path: %w", err))
	}
	res, err := s.deps.Conversation.UploadMedia(c.Request().Context(), c.Param("service_id"), handle)
	if err != nil {
		return err
	}
	return writeResult(c, res)
}

func (s *Server) retrieveMedia(c echo.Context) error {
	ref := models.MediaRef{ServiceID: c.Param("service_id"), MediaID: c.Param("media_id")}
	res, err := s.deps.Conversation.RetrieveMedia(c.Request().Context(), ref)
	if err != nil {
		return err
	}
	return writeResult(c, res)
}

func (s *Server) sendSMS(c echo.Context) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}
	res, err := s.deps.SMS.CreateMessage(c.Request().Context(), fields)
	if err != nil {
		return err
	}
	return writeResult(c, res)
}

func (s *Server) createCall(c echo.Context) error {
	var call voice.Call
	if err := (&echo.DefaultBinder{}).BindBody(c, &call); err != nil {
		return providers.Invalid(fmt.Errorf("gateway: decode call: %w", err))
	}
	res, err := s.deps.Voice.CreateCall(c.Request().Context(), call)
	if err != nil {
		return err
	}
	return writeResult(c, res)
}

// sendEmail validates the mail document before anything is sent.
func (s *Server) sendEmail(c echo.Context) error {
	data, err := email.DecodeMailData(c.Request().Body)
	if err != nil {
		return err
	}
	res, err := s.deps.Email.Send(c.Request().Context(), data)
	if err != nil {
		return err
	}
	return writeResult(c, res)
}
