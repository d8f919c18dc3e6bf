package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StreamStreakSSE streams streak countdown updates for the authenticated spotter.
func (r *SessionRegistry) StreamStreakSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrUnauthenticated.Error()})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	updates, cancel := r.Subscribe(userID)
	initial, active := r.Get(userID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		w.WriteString(":\n\n")
		if active {
			writeStreakEvent(w, initial.Streak)
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case state := <-updates:
				writeStreakEvent(w, state)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})

	return nil
}

func writeStreakEvent(w *bufio.Writer, state StreakState) {
	payload, _ := json.Marshal(state)
	fmt.Fprintf(w, "event: streak\ndata: %s\n\n", payload)
}
