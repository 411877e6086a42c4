package chat

import (
	"context"
	"sync"

	"github.com/lokapasar/chatsync/internal/dto"
)

// stubTransport scripts backend behavior per operation and counts calls.
type stubTransport struct {
	mu sync.Mutex

	listCalls    int
	pageCalls    int
	sendCalls    int
	readCalls    int
	uploadCalls  int
	inquiryCalls int

	listFn    func(role string) ([]dto.Thread, error)
	pageFn    func(chatID string, page, size int) (dto.MessagePage, error)
	sendFn    func(chatID string, req dto.SendMessageRequest) (dto.Message, error)
	readFn    func(chatID string) error
	uploadFn  func(chatID, fileName string, data []byte) (dto.UploadResult, error)
	inquiryFn func(productID string) (dto.Inquiry, error)
}

func (s *stubTransport) ListThreads(_ context.Context, role string) ([]dto.Thread, error) {
	s.mu.Lock()
	s.listCalls++
	fn := s.listFn
	s.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(role)
}

func (s *stubTransport) GetMessages(_ context.Context, chatID string, page, size int) (dto.MessagePage, error) {
	s.mu.Lock()
	s.pageCalls++
	fn := s.pageFn
	s.mu.Unlock()
	if fn == nil {
		return dto.MessagePage{Last: true}, nil
	}
	return fn(chatID, page, size)
}

func (s *stubTransport) SendMessage(_ context.Context, chatID string, req dto.SendMessageRequest) (dto.Message, error) {
	s.mu.Lock()
	s.sendCalls++
	fn := s.sendFn
	s.mu.Unlock()
	if fn == nil {
		return dto.Message{}, nil
	}
	return fn(chatID, req)
}

func (s *stubTransport) MarkRead(_ context.Context, chatID string) error {
	s.mu.Lock()
	s.readCalls++
	fn := s.readFn
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(chatID)
}

func (s *stubTransport) UploadAttachment(_ context.Context, chatID, fileName string, data []byte) (dto.UploadResult, error) {
	s.mu.Lock()
	s.uploadCalls++
	fn := s.uploadFn
	s.mu.Unlock()
	if fn == nil {
		return dto.UploadResult{}, nil
	}
	return fn(chatID, fileName, data)
}

func (s *stubTransport) StartInquiry(_ context.Context, productID string) (dto.Inquiry, error) {
	s.mu.Lock()
	s.inquiryCalls++
	fn := s.inquiryFn
	s.mu.Unlock()
	if fn == nil {
		return dto.Inquiry{}, nil
	}
	return fn(productID)
}

func (s *stubTransport) calls() (list, page, send, read, upload, inquiry int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls, s.pageCalls, s.sendCalls, s.readCalls, s.uploadCalls, s.inquiryCalls
}
