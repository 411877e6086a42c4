package devserver

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/observability"
)

// Options configures the dev backend.
type Options struct {
	Store       Store
	Storage     FileStorage
	JWTSecret   string
	UploadMaxMB int
	AppName     string
}

// Server is a self-contained marketplace chat backend used for local
// development and integration tests. It speaks the same wire contract the
// client library consumes.
type Server struct {
	app       *fiber.App
	store     Store
	storage   FileStorage
	files     *MemoryStorage
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// New builds the fiber application with all chat routes registered.
func New(opts Options, logger zerolog.Logger) *Server {
	if opts.UploadMaxMB <= 0 {
		opts.UploadMaxMB = 10
	}
	if opts.AppName == "" {
		opts.AppName = "Lokapasar Chat Dev"
	}

	s := &Server{
		store:     opts.Store,
		storage:   opts.Storage,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "devserver").Logger(),
	}
	if s.storage == nil {
		memory := NewMemoryStorage()
		s.storage = memory
		s.files = memory
	} else if memory, ok := opts.Storage.(*MemoryStorage); ok {
		s.files = memory
	}

	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ServerHeader: opts.AppName,
		BodyLimit:    (opts.UploadMaxMB + 1) * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(correlationMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return sendSuccess(c, fiber.StatusOK, "ok", fiber.Map{"app": opts.AppName})
	})
	app.Get("/metrics", observability.MetricsHandler())
	app.Get("/files/:ref", s.serveFile)

	api := app.Group("/api/v1", jwtProtected(opts.JWTSecret))
	api.Get("/chats", s.listThreads)
	api.Get("/chats/:chatId/messages", s.pageMessages)
	api.Post("/chats/:chatId/messages", s.sendMessage)
	api.Post("/chats/:chatId/read", s.markRead)
	api.Post("/chats/:chatId/attachments", s.uploadAttachment)
	api.Post("/inquiries", s.startInquiry)

	s.app = app
	return s
}

// App exposes the underlying fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP on the given address.
func (s *Server) Listen(address string) error {
	return s.app.Listen(address)
}

func (s *Server) listThreads(c *fiber.Ctx) error {
	role := strings.ToLower(c.Query("role"))
	if role == "" {
		role = callerRole(c)
	}

	threads, err := s.store.ListThreads(c.UserContext(), callerID(c), role)
	if err != nil {
		return s.internalError(c, err)
	}

	out := make([]dto.Thread, 0, len(threads))
	for _, thread := range threads {
		out = append(out, thread.ToThread(role))
	}
	return sendSuccess(c, fiber.StatusOK, "threads retrieved", out)
}

func (s *Server) pageMessages(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	if _, err := s.requireParticipant(c, chatID); err != nil {
		return err
	}

	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", 30)

	messages, last, err := s.store.PageMessages(c.UserContext(), chatID, page, size)
	if err != nil {
		return s.internalError(c, err)
	}

	return sendSuccess(c, fiber.StatusOK, "messages retrieved", dto.MessagePage{
		Content: toMessages(messages),
		Page:    page,
		Size:    size,
		Last:    last,
	})
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	if _, err := s.requireParticipant(c, chatID); err != nil {
		return err
	}

	var payload dto.SendMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return sendError(c, fiber.StatusBadRequest, "invalid message payload")
	}
	if err := s.validate.Struct(payload); err != nil {
		return sendError(c, fiber.StatusBadRequest, err.Error())
	}
	if payload.MessageType == dto.MessageTypeFile && payload.AttachmentURL == "" {
		return sendError(c, fiber.StatusBadRequest, "file messages require an attachment url")
	}

	message := InquiryMessage{
		ChatID:        chatID,
		SenderID:      callerID(c),
		MessageType:   payload.MessageType,
		MessageText:   s.sanitizer.Sanitize(payload.MessageText),
		AttachmentURL: payload.AttachmentURL,
		FileName:      payload.FileName,
		FileType:      payload.FileMimeType,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.SaveMessage(c.UserContext(), &message); err != nil {
		return s.internalError(c, err)
	}

	observability.MessagesSent().WithLabelValues(message.MessageType).Inc()
	return sendSuccess(c, fiber.StatusCreated, "message sent", message.ToMessage())
}

func (s *Server) markRead(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	if _, err := s.requireParticipant(c, chatID); err != nil {
		return err
	}

	if err := s.store.MarkRead(c.UserContext(), chatID, callerID(c)); err != nil {
		return s.internalError(c, err)
	}
	return sendSuccess(c, fiber.StatusOK, "thread marked read", nil)
}

func (s *Server) uploadAttachment(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	if _, err := s.requireParticipant(c, chatID); err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, "multipart field 'file' missing")
	}

	file, err := header.Open()
	if err != nil {
		return s.internalError(c, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return s.internalError(c, err)
	}

	ref, err := s.storage.Upload(c.UserContext(), header.Filename, bytes.NewReader(data))
	if err != nil {
		observability.Uploads().WithLabelValues("failure").Inc()
		return s.internalError(c, err)
	}

	fileURL := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		fileURL = c.BaseURL() + "/files/" + ref
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	observability.Uploads().WithLabelValues("success").Inc()
	return sendSuccess(c, fiber.StatusCreated, "attachment uploaded", dto.UploadResult{
		FileURL:      fileURL,
		FileName:     header.Filename,
		FileMimeType: mimeType,
	})
}

func (s *Server) startInquiry(c *fiber.Ctx) error {
	var payload dto.StartInquiryRequest
	if err := c.BodyParser(&payload); err != nil {
		return sendError(c, fiber.StatusBadRequest, "invalid inquiry payload")
	}
	if err := s.validate.Struct(payload); err != nil {
		return sendError(c, fiber.StatusBadRequest, err.Error())
	}

	buyerID := callerID(c)
	thread, err := s.store.EnsureInquiry(c.UserContext(), payload.ProductID, buyerID, "Buyer "+buyerID)
	if err != nil {
		return s.internalError(c, err)
	}

	return sendSuccess(c, fiber.StatusCreated, "inquiry ready", dto.Inquiry{ChatID: thread.ChatID})
}

func (s *Server) serveFile(c *fiber.Ctx) error {
	if s.files == nil {
		return sendError(c, fiber.StatusNotFound, "file not found")
	}

	name, reader, ok := s.files.Get(c.Params("ref"))
	if !ok {
		return sendError(c, fiber.StatusNotFound, "file not found")
	}

	c.Attachment(name)
	return c.SendStream(reader)
}

// requireParticipant rejects callers that are not part of the thread.
func (s *Server) requireParticipant(c *fiber.Ctx, chatID string) (InquiryThread, error) {
	thread, err := s.store.GetThread(c.UserContext(), chatID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return InquiryThread{}, sendError(c, fiber.StatusNotFound, "thread not found")
		}
		return InquiryThread{}, s.internalError(c, err)
	}

	caller := callerID(c)
	if caller != thread.BuyerID && caller != thread.SellerID {
		return InquiryThread{}, sendError(c, fiber.StatusForbidden, "not a participant of this thread")
	}
	return thread, nil
}

func (s *Server) internalError(c *fiber.Ctx, err error) error {
	s.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return sendError(c, fiber.StatusInternalServerError, "internal server error")
}

func sendSuccess(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(dto.Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func sendError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.Envelope{
		Success: false,
		Message: message,
	})
}
