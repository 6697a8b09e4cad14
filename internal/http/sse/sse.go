// Package sse пишет поток server-sent events в http.ResponseWriter.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupported ответ не поддерживает сброс буфера.
var ErrUnsupported = errors.New("sse: streaming unsupported")

// Writer поток событий одного клиента.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// New выставляет заголовки потока и отправляет их клиенту.
func New(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{w: w, flusher: flusher}, nil
}

// Send отправляет событие event с data в JSON.
func (s *Writer) Send(event string, data any) error {
	const op = "sse.Send"
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.flusher.Flush()
	return nil
}

// Ping отправляет комментарий, чтобы прокси не закрывали простаивающее соединение.
func (s *Writer) Ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
